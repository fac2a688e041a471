package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// State is CLI state that must survive between invocations, such as the
// verification nonce of an authorization that is still in progress.
type State struct {
	PendingNonce string    `yaml:"pending_nonce,omitempty"`
	NonceIssued  time.Time `yaml:"nonce_issued,omitempty"`
}

// StatePath returns the default state file location.
func StatePath() (string, error) {
	dir := UserConfigDir()
	if dir == "" {
		return "", fmt.Errorf("cannot determine a config directory for state.yaml")
	}
	return filepath.Join(dir, "state.yaml"), nil
}

// LoadState reads the state file. A missing file yields an empty State.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path from caller
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &st, nil
}

// SaveState writes the state file with owner-only permissions.
func SaveState(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
