package sambung

import "github.com/google/uuid"

// DebugConfig selects which client events are logged when debugging is
// enabled. Flags are independent so noisy concerns can be silenced.
type DebugConfig struct {
	Enabled     bool
	LogRequests bool
	LogRetries  bool
	LogCache    bool
	LogDedup    bool
	LogSession  bool
	// RequestIDGen produces the correlation ID attached to log lines and
	// errors for one logical call.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with every event class enabled but
// debugging itself off.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogDedup:     true,
		LogSession:   true,
		RequestIDGen: DefaultRequestIDGen,
	}
}

// DefaultRequestIDGen returns a random UUID string.
func DefaultRequestIDGen() string {
	return uuid.NewString()
}
