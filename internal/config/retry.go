package config

import "github.com/Lllllllleong/routeingest/internal/resilience"

// Policy converts the configured values into a retry policy, keeping defaults
// for anything left unset.
func (r RetryConfig) Policy() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoff > 0 {
		cfg.InitialBackoff = r.InitialBackoff
	}
	if r.MaxBackoff > 0 {
		cfg.MaxBackoff = r.MaxBackoff
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.Jitter >= 0 {
		cfg.JitterFraction = r.Jitter
	}
	return cfg
}
