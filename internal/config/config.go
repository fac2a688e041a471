// Package config reads ticketdrop settings from config files, environment
// variables and built-in defaults through a process-wide viper instance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DirName is the per-project configuration directory.
const DirName = ".ticketdrop"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
//
// Precedence: explicit Set > environment > config file > defaults.
// The config file is the first of:
//  1. .ticketdrop/config.yaml in the working directory or any parent
//  2. $XDG_CONFIG_HOME/ticketdrop/config.yaml
//  3. ~/.config/ticketdrop/config.yaml
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// TICKETDROP_LINEAR_CLIENT_ID overrides linear.client-id.
	v.SetEnvPrefix("TICKETDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, k := range Keys {
		if k.Default != nil {
			v.SetDefault(k.Key, k.Default)
		}
		if k.EnvVar != "" {
			// Provider variables win over the prefixed form.
			if err := v.BindEnv(k.Key, k.EnvVar, envName(k.Key)); err != nil {
				return fmt.Errorf("failed to bind %s: %w", k.Key, err)
			}
		}
	}

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return nil
}

// ResetForTesting clears the singleton so tests can start from scratch.
func ResetForTesting() {
	v = nil
}

func envName(key string) string {
	return "TICKETDROP_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// findConfigFile returns the config file to load, or "" if there is none.
func findConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			p := filepath.Join(dir, DirName, "config.yaml")
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	if dir := UserConfigDir(); dir != "" {
		p := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// UserConfigDir returns the per-user ticketdrop directory, or "" when no home
// directory can be determined.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ticketdrop")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "ticketdrop")
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a floating point configuration value
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value. A single
// comma-separated string is split.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	raw := v.GetStringSlice(key)
	var out []string
	for _, s := range raw {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Set sets a configuration value, overriding every other source.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
