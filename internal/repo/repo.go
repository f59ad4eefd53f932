// Package repo defines the persistence gateway ports. The core never
// retries a failed store call; it logs and proceeds so monitoring
// continuity wins over guaranteed persistence.
package repo

import (
	"context"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	List(ctx context.Context) ([]*domain.Target, error)
	Remove(ctx context.Context, id domain.TargetID) error
}

type LogStore interface {
	SaveLog(ctx context.Context, l *domain.MonitoringLog) error
	ListLogs(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringLog, error)
}

type AlertStore interface {
	// CreateAlert persists the alert and returns its id.
	CreateAlert(ctx context.Context, a *domain.MonitoringAlert) (string, error)
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) error
	// FindUnresolvedAlert returns nil, nil when no open alert exists for
	// the (target, type) pair.
	FindUnresolvedAlert(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*domain.MonitoringAlert, error)
	// LatestAlertAt returns the creation time of the most recent alert of
	// the given type, resolved or not; nil when none exists. Used for
	// throttle windows.
	LatestAlertAt(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*time.Time, error)
	ListAlerts(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringAlert, error)
}

type SettingsStore interface {
	// LoadSettings returns fully-resolved settings; defaults when the
	// target has none stored.
	LoadSettings(ctx context.Context, id domain.TargetID) (domain.Settings, error)
	SaveSettings(ctx context.Context, id domain.TargetID, s domain.Settings) error
}

// Gateway bundles every port; both the memory and postgres stores
// implement all of them.
type Gateway interface {
	TargetStore
	LogStore
	AlertStore
	SettingsStore
}
