package domain

import (
	"fmt"
	"time"
)

// Capability selects an optional checker for a target. The check engine
// is polymorphic over the capability set; adding a kind never changes
// engine control flow.
type Capability string

const (
	CapContentMatch    Capability = "content_match"
	CapSecurityHeaders Capability = "security_headers"
	CapTCP             Capability = "tcp"
	CapDNS             Capability = "dns"
	// CapDeep is reserved for browser-automation checks plugged in by an
	// external checker implementation.
	CapDeep Capability = "deep"
)

// Settings is the fully-resolved per-target configuration. Fields are
// never merged at call time; ApplyDefaults resolves zero values once when
// settings are loaded or registered.
type Settings struct {
	CheckInterval         time.Duration `json:"check_interval"`
	Timeout               time.Duration `json:"timeout"`
	RetryCount            int           `json:"retry_count"`
	ResponseTimeLimit     time.Duration `json:"response_time_limit"`
	ErrorAlertInterval    time.Duration `json:"error_alert_interval"`
	ResponseAlertInterval time.Duration `json:"response_alert_interval"`
	ExpiryAlertDays       int           `json:"expiry_alert_days"`
	ExpiryAlertInterval   time.Duration `json:"expiry_alert_interval"`
	ExpiryCheckInterval   time.Duration `json:"expiry_check_interval"`
	AlertsEnabled         bool          `json:"alerts_enabled"`
	WebhookURL            string        `json:"webhook_url,omitempty"`
	Capabilities          []Capability  `json:"capabilities,omitempty"`
	ContentMatch          string        `json:"content_match,omitempty"`
	TCPPort               int           `json:"tcp_port,omitempty"`
}

const MinCheckInterval = 10 * time.Second

func DefaultSettings() Settings {
	return Settings{
		CheckInterval:         5 * time.Minute,
		Timeout:               30 * time.Second,
		RetryCount:            3,
		ResponseTimeLimit:     5 * time.Second,
		ErrorAlertInterval:    10 * time.Minute,
		ResponseAlertInterval: 10 * time.Minute,
		ExpiryAlertDays:       30,
		ExpiryAlertInterval:   24 * time.Hour,
		ExpiryCheckInterval:   24 * time.Hour,
		AlertsEnabled:         true,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultSettings. Explicitly
// configured fields win; a partial update is expressed as a struct with
// only the changed fields set.
func (s Settings) ApplyDefaults() Settings {
	d := DefaultSettings()
	if s.CheckInterval == 0 {
		s.CheckInterval = d.CheckInterval
	}
	if s.Timeout == 0 {
		s.Timeout = d.Timeout
	}
	if s.RetryCount == 0 {
		s.RetryCount = d.RetryCount
	}
	if s.ResponseTimeLimit == 0 {
		s.ResponseTimeLimit = d.ResponseTimeLimit
	}
	if s.ErrorAlertInterval == 0 {
		s.ErrorAlertInterval = d.ErrorAlertInterval
	}
	if s.ResponseAlertInterval == 0 {
		s.ResponseAlertInterval = d.ResponseAlertInterval
	}
	if s.ExpiryAlertDays == 0 {
		s.ExpiryAlertDays = d.ExpiryAlertDays
	}
	if s.ExpiryAlertInterval == 0 {
		s.ExpiryAlertInterval = d.ExpiryAlertInterval
	}
	if s.ExpiryCheckInterval == 0 {
		s.ExpiryCheckInterval = d.ExpiryCheckInterval
	}
	return s
}

// ValidationError reports an invalid settings field. Configuration errors
// are rejected at register/update time, never silently clamped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings: %s %s", e.Field, e.Reason)
}

func (s Settings) Validate() error {
	if s.CheckInterval < MinCheckInterval {
		return &ValidationError{Field: "check_interval", Reason: fmt.Sprintf("must be at least %s", MinCheckInterval)}
	}
	if s.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if s.Timeout > s.CheckInterval {
		return &ValidationError{Field: "timeout", Reason: "must not exceed check_interval"}
	}
	if s.RetryCount < 1 {
		return &ValidationError{Field: "retry_count", Reason: "must be at least 1"}
	}
	if s.ResponseTimeLimit <= 0 {
		return &ValidationError{Field: "response_time_limit", Reason: "must be positive"}
	}
	if s.ExpiryAlertDays < 1 {
		return &ValidationError{Field: "expiry_alert_days", Reason: "must be at least 1"}
	}
	if s.ExpiryCheckInterval < time.Hour {
		return &ValidationError{Field: "expiry_check_interval", Reason: "must be at least 1h"}
	}
	for _, c := range s.Capabilities {
		switch c {
		case CapContentMatch, CapSecurityHeaders, CapTCP, CapDNS, CapDeep:
		default:
			return &ValidationError{Field: "capabilities", Reason: fmt.Sprintf("unknown capability %q", c)}
		}
	}
	if hasCap(s.Capabilities, CapContentMatch) && s.ContentMatch == "" {
		return &ValidationError{Field: "content_match", Reason: "required when content_match capability is set"}
	}
	if hasCap(s.Capabilities, CapTCP) && (s.TCPPort < 1 || s.TCPPort > 65535) {
		return &ValidationError{Field: "tcp_port", Reason: "must be 1-65535 when tcp capability is set"}
	}
	return nil
}

func (s Settings) HasCapability(c Capability) bool {
	return hasCap(s.Capabilities, c)
}

func hasCap(set []Capability, c Capability) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}
