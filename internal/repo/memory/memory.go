// Package memory is the in-process gateway used in tests and when no
// DATABASE_URL is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/repo"
)

var _ repo.Gateway = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	targets  map[domain.TargetID]*domain.Target
	logs     []*domain.MonitoringLog
	alerts   []*domain.MonitoringAlert
	settings map[domain.TargetID]domain.Settings
}

func New() *Store {
	return &Store{
		targets:  make(map[domain.TargetID]*domain.Target),
		settings: make(map[domain.TargetID]domain.Settings),
	}
}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.targets[t.ID] = t
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, fmt.Errorf("target %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *Store) List(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Store) Remove(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
	delete(m.settings, id)
	return nil
}

// ---- LogStore ----

func (m *Store) SaveLog(ctx context.Context, l *domain.MonitoringLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *Store) ListLogs(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*domain.MonitoringLog
	// newest first
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].TargetID == id {
			cp := *m.logs[i]
			matched = append(matched, &cp)
		}
	}
	return window(matched, limit, offset), nil
}

// ---- AlertStore ----

func (m *Store) CreateAlert(ctx context.Context, a *domain.MonitoringAlert) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	m.alerts = append(m.alerts, &cp)
	return a.ID, nil
}

func (m *Store) ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.Resolved = true
			at := resolvedAt
			a.ResolvedAt = &at
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", alertID)
}

func (m *Store) FindUnresolvedAlert(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*domain.MonitoringAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.TargetID == id && a.Type == typ && !a.Resolved {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) LatestAlertAt(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for _, a := range m.alerts {
		if a.TargetID != id || a.Type != typ {
			continue
		}
		if latest == nil || a.CreatedAt.After(*latest) {
			at := a.CreatedAt
			latest = &at
		}
	}
	return latest, nil
}

func (m *Store) ListAlerts(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*domain.MonitoringAlert
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].TargetID == id {
			cp := *m.alerts[i]
			matched = append(matched, &cp)
		}
	}
	return window(matched, limit, offset), nil
}

// ---- SettingsStore ----

func (m *Store) LoadSettings(ctx context.Context, id domain.TargetID) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[id]; ok {
		return s, nil
	}
	return domain.DefaultSettings(), nil
}

func (m *Store) SaveSettings(ctx context.Context, id domain.TargetID, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[id] = s
	return nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
