package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a DSN or credential. Every rendering path (fmt, JSON,
// slog) prints a placeholder; only Unmask yields the raw value.
type SecretString string

func (s SecretString) String() string { return redactedPlaceholder }

func (s SecretString) GoString() string { return redactedPlaceholder }

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue keeps the secret out of structured logs even when a handler
// bypasses String.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw value, for handing to a driver.
func (s SecretString) Unmask() string { return string(s) }

// IsSet reports whether a non-empty value was configured.
func (s SecretString) IsSet() bool { return s != "" }
