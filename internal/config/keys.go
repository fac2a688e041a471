package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Key describes one configuration key.
type Key struct {
	Key         string
	Description string
	EnvVar      string // provider variable honoured besides TICKETDROP_*
	Secret      bool   // masked when settings are printed
	Default     interface{}
	Validate    func(string) error
}

// Config keys.
const (
	KeyLinearClientID     = "linear.client-id"
	KeyLinearClientSecret = "linear.client-secret"
	KeyLinearRedirectURI  = "linear.redirect-uri"
	KeyLinearScopes       = "linear.scopes"
	KeyLinearAuthURL      = "linear.auth-url"
	KeyLinearTokenURL     = "linear.token-url"
	KeyLinearGraphQLURL   = "linear.graphql-url"
	KeyExtractModel       = "extract.model"
	KeyExtractMaxTokens   = "extract.max-tokens"
	KeyAnthropicAPIKey    = "anthropic.api-key"
	KeyOpenAIAPIKey       = "openai.api-key"
	KeyTranscribeModel    = "transcribe.model"
	KeyTranscribeURL      = "transcribe.url"
	KeyTranscribeRetries  = "transcribe.max-retries"
	KeyRateLimitRequests  = "ratelimit.requests"
	KeyRateLimitWindow    = "ratelimit.window"
	KeyServeAddr          = "serve.addr"
	KeyServeAllowRemote   = "serve.allow-remote"
	KeyServeAuthToken     = "serve.auth-token"
	KeyLogLevel           = "log.level"
	KeyLogDev             = "log.dev"
	KeyHTTPTimeout        = "http.timeout"
	KeyTelemetryEnabled   = "telemetry.enabled"
	KeyTelemetryStdout    = "telemetry.stdout"
	KeyTelemetryEndpoint  = "telemetry.endpoint"
	KeyTelemetrySample    = "telemetry.sample-ratio"
)

// Keys lists every supported configuration key.
var Keys = []Key{
	// Linear OAuth application
	{Key: KeyLinearClientID, Description: "Linear OAuth client id", EnvVar: "LINEAR_CLIENT_ID"},
	{Key: KeyLinearClientSecret, Description: "Linear OAuth client secret (server side only)", EnvVar: "LINEAR_CLIENT_SECRET", Secret: true},
	{Key: KeyLinearRedirectURI, Description: "Redirect URI registered with the OAuth application", Default: "http://localhost:3000/callback", Validate: validateURL},
	{Key: KeyLinearScopes, Description: "Requested OAuth scopes", Default: "admin,write"},
	{Key: KeyLinearAuthURL, Description: "Authorization endpoint", Default: "https://linear.app/oauth/authorize", Validate: validateURL},
	{Key: KeyLinearTokenURL, Description: "Token endpoint", Default: "https://api.linear.app/oauth/token", Validate: validateURL},
	{Key: KeyLinearGraphQLURL, Description: "GraphQL endpoint", Default: "https://api.linear.app/graphql", Validate: validateURL},

	// Extraction
	{Key: KeyAnthropicAPIKey, Description: "Anthropic API key", EnvVar: "ANTHROPIC_API_KEY", Secret: true},
	{Key: KeyExtractModel, Description: "Model used to extract issues", Default: "claude-haiku-4-5"},
	{Key: KeyExtractMaxTokens, Description: "Response token budget for one extraction", Default: 2048, Validate: validatePositiveInt},

	// Speech-to-text
	{Key: KeyOpenAIAPIKey, Description: "OpenAI API key for transcription", EnvVar: "OPENAI_API_KEY", Secret: true},
	{Key: KeyTranscribeModel, Description: "Transcription model", Default: "gpt-4o-transcribe"},
	{Key: KeyTranscribeURL, Description: "Transcription endpoint", Default: "https://api.openai.com/v1/audio/transcriptions", Validate: validateURL},
	{Key: KeyTranscribeRetries, Description: "Retries on upstream 429/5xx", Default: 2, Validate: validateNonNegativeInt},

	// Rate limiting
	{Key: KeyRateLimitRequests, Description: "Requests allowed per window", Default: 10, Validate: validatePositiveInt},
	{Key: KeyRateLimitWindow, Description: "Rate limit window", Default: time.Minute, Validate: validateDuration},

	// HTTP service
	{Key: KeyServeAddr, Description: "Listen address for ticketdrop serve", Default: "127.0.0.1:3000", Validate: validateAddr},
	{Key: KeyServeAllowRemote, Description: "Allow binding to non-loopback addresses", Default: false, Validate: validateBool},
	{Key: KeyServeAuthToken, Description: "Bearer token required for the API when set", Secret: true},
	{Key: KeyHTTPTimeout, Description: "Upstream HTTP timeout", Default: 30 * time.Second, Validate: validateDuration},

	// Logging
	{Key: KeyLogLevel, Description: "Log level (debug, info, warn, error)", Default: "info", Validate: validateLogLevel},
	{Key: KeyLogDev, Description: "Human-readable text logs instead of JSON", Default: false, Validate: validateBool},

	// Telemetry
	{Key: KeyTelemetryEnabled, Description: "Export OpenTelemetry traces and metrics", EnvVar: "TD_OTEL_ENABLED", Default: false, Validate: validateBool},
	{Key: KeyTelemetryStdout, Description: "Print spans and metrics to stdout", EnvVar: "TD_OTEL_STDOUT", Default: false, Validate: validateBool},
	{Key: KeyTelemetryEndpoint, Description: "OTLP/HTTP collector host:port", EnvVar: "OTEL_EXPORTER_OTLP_ENDPOINT"},
	{Key: KeyTelemetrySample, Description: "Fraction of traces kept (0-1)", Default: 1.0, Validate: validateRatio},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the Key definition, or nil if key is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		sort.Strings(known)
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks the effective value of every key.
func Validate() error {
	var problems []string
	for _, k := range Keys {
		if k.Validate == nil {
			continue
		}
		value := GetString(k.Key)
		if value == "" {
			continue
		}
		if err := k.Validate(value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", k.Key, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Setting is one resolved key for display.
type Setting struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Settings returns the effective value of every key, masking secrets.
func Settings() []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		value := GetString(k.Key)
		if k.Secret && value != "" {
			value = "********"
		}
		out = append(out, Setting{Key: k.Key, Value: value, Description: k.Description})
	}
	return out
}

// Validation helpers

func validateAddr(value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("must be host:port, got %q", value)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %q", port)
	}
	return nil
}

func validateRatio(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("must be a number between 0 and 1, got %q", value)
	}
	return nil
}

func validateURL(value string) error {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("must be an http(s) URL, got %q", value)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 30s, got %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: debug, info, warn, error; got %q", value)
	}
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}
