package domain

import "time"

type TargetID string

// Target is a monitored endpoint. Immutable during a check cycle; settings
// updates take effect on the next scheduled tick.
type Target struct {
	ID        TargetID  `json:"id"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Availability is the durable up/down status of a target.
type Availability int

const (
	StatusUnknown Availability = iota
	StatusUp
	StatusDown
)

func (a Availability) String() string {
	switch a {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// ExpiryState classifies how close an SSL certificate or domain
// registration is to its expiry date.
type ExpiryState int

const (
	ExpiryValid ExpiryState = iota
	ExpiryWarning
	ExpiryExpired
)

func (e ExpiryState) String() string {
	switch e {
	case ExpiryWarning:
		return "warning"
	case ExpiryExpired:
		return "expired"
	default:
		return "valid"
	}
}

// SSLResult is the certificate portion of a check, present only on
// expiry-cadence ticks.
type SSLResult struct {
	Valid        bool       `json:"valid"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// DomainResult is the WHOIS registration portion of a check.
type DomainResult struct {
	Registered   bool       `json:"registered"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Registrar    string     `json:"registrar,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ProbeResult is the outcome of one optional capability checker
// (content match, security headers, deep check).
type ProbeResult struct {
	Kind    string `json:"kind"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CheckOutcome is the merged result of one check engine run for a target.
// It is ephemeral: the status tracker and the log store each derive what
// they need from it.
//
// ResponseTime is nil when the probe timed out (a timeout has no
// meaningful duration, not a zero one). StatusCode is nil on transport
// errors. Internal marks an engine fault rather than a probe failure.
type CheckOutcome struct {
	TargetID     TargetID       `json:"target_id"`
	CheckedAt    time.Time      `json:"checked_at"`
	Available    bool           `json:"available"`
	StatusCode   *int           `json:"status_code,omitempty"`
	ResponseTime *time.Duration `json:"response_time,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Internal     bool           `json:"internal,omitempty"`
	SSL          *SSLResult     `json:"ssl,omitempty"`
	Domain       *DomainResult  `json:"domain,omitempty"`
	Extra        []ProbeResult  `json:"extra,omitempty"`
}

// MonitoringLog is the persisted, append-only record of one CheckOutcome.
type MonitoringLog struct {
	ID           string         `json:"id"`
	TargetID     TargetID       `json:"target_id"`
	Available    bool           `json:"available"`
	StatusCode   *int           `json:"status_code"`
	ResponseTime *time.Duration `json:"response_time"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AlertType is the alert category; at most one unresolved alert per
// (target, type) exists at a time.
type AlertType string

const (
	AlertStatusError     AlertType = "status_error"
	AlertSSLError        AlertType = "ssl_error"
	AlertDomainExpiry    AlertType = "domain_expiry"
	AlertResponseTime    AlertType = "response_time"
	AlertMonitoringError AlertType = "monitoring_error"
)

// MonitoringAlert is a persisted alert. Mutated only to flip Resolved.
type MonitoringAlert struct {
	ID         string     `json:"id"`
	TargetID   TargetID   `json:"target_id"`
	Type       AlertType  `json:"alert_type"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertEvent is handed to the notification dispatcher, fire-and-forget.
type AlertEvent struct {
	TargetID   TargetID  `json:"target_id"`
	Type       AlertType `json:"alert_type"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`

	// WebhookURL overrides the dispatcher's default destination when the
	// target's settings name one. Not part of the payload itself.
	WebhookURL string `json:"-"`
}

// StatusChangedEvent is broadcast on every availability tick for
// real-time consumers (UI push). Best effort, not a durable queue.
type StatusChangedEvent struct {
	TargetID     TargetID       `json:"target_id"`
	Available    bool           `json:"available"`
	StatusCode   *int           `json:"status_code,omitempty"`
	ResponseTime *time.Duration `json:"response_time,omitempty"`
	CheckedAt    time.Time      `json:"checked_at"`
}
