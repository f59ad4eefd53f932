package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/repo"
)

var _ repo.Gateway = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS monitoring_logs (
	id              TEXT PRIMARY KEY,
	target_id       TEXT NOT NULL,
	available       BOOLEAN NOT NULL,
	status_code     INT,
	response_time_ms DOUBLE PRECISION,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_target_created
	ON monitoring_logs (target_id, created_at DESC);
CREATE TABLE IF NOT EXISTS monitoring_alerts (
	id          TEXT PRIMARY KEY,
	target_id   TEXT NOT NULL,
	alert_type  TEXT NOT NULL,
	message     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_alerts_target_type
	ON monitoring_alerts (target_id, alert_type, created_at DESC);
CREATE TABLE IF NOT EXISTS monitoring_settings (
	target_id               TEXT PRIMARY KEY,
	check_interval_s        INT NOT NULL,
	timeout_s               INT NOT NULL,
	retry_count             INT NOT NULL,
	response_time_limit_ms  INT NOT NULL,
	error_alert_interval_s  INT NOT NULL,
	response_alert_interval_s INT NOT NULL,
	expiry_alert_days       INT NOT NULL,
	expiry_alert_interval_s INT NOT NULL,
	expiry_check_interval_s INT NOT NULL,
	alerts_enabled          BOOLEAN NOT NULL,
	webhook_url             TEXT NOT NULL DEFAULT '',
	capabilities            TEXT[] NOT NULL DEFAULT '{}',
	content_match           TEXT NOT NULL DEFAULT '',
	tcp_port                INT NOT NULL DEFAULT 0
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, name, url, created_at) VALUES ($1, $2, $3, $4)`,
		string(t.ID), t.Name, t.URL, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	var t domain.Target
	var rawID string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, url, created_at FROM targets WHERE id = $1`, string(id),
	).Scan(&rawID, &t.Name, &t.URL, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	t.ID = domain.TargetID(rawID)
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, created_at FROM targets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		var t domain.Target
		var rawID string
		if err := rows.Scan(&rawID, &t.Name, &t.URL, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ID = domain.TargetID(rawID)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM monitoring_settings WHERE target_id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("remove settings: %w", err)
	}
	return nil
}

// ---- LogStore ----

func (s *Store) SaveLog(ctx context.Context, l *domain.MonitoringLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var ms *float64
	if l.ResponseTime != nil {
		v := float64(l.ResponseTime.Microseconds()) / 1000.0
		ms = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitoring_logs
		   (id, target_id, available, status_code, response_time_ms, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, string(l.TargetID), l.Available, l.StatusCode, ms, l.ErrorMessage, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, available, status_code, response_time_ms, error_message, created_at
		   FROM monitoring_logs
		  WHERE target_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		string(id), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.MonitoringLog
	for rows.Next() {
		var l domain.MonitoringLog
		var rawID string
		var ms *float64
		if err := rows.Scan(&l.ID, &rawID, &l.Available, &l.StatusCode, &ms, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.TargetID = domain.TargetID(rawID)
		if ms != nil {
			d := time.Duration(*ms * float64(time.Millisecond))
			l.ResponseTime = &d
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ---- SettingsStore ----

func (s *Store) LoadSettings(ctx context.Context, id domain.TargetID) (domain.Settings, error) {
	var checkS, timeoutS, retry, limitMS, errS, respS, expDays, expAlertS, expChkS, tcpPort int
	var alertsEnabled bool
	var webhook, contentMatch string
	var caps []string
	err := s.pool.QueryRow(ctx,
		`SELECT check_interval_s, timeout_s, retry_count, response_time_limit_ms,
		        error_alert_interval_s, response_alert_interval_s, expiry_alert_days,
		        expiry_alert_interval_s, expiry_check_interval_s, alerts_enabled,
		        webhook_url, capabilities, content_match, tcp_port
		   FROM monitoring_settings WHERE target_id = $1`, string(id),
	).Scan(&checkS, &timeoutS, &retry, &limitMS, &errS, &respS, &expDays,
		&expAlertS, &expChkS, &alertsEnabled, &webhook, &caps, &contentMatch, &tcpPort)
	if err != nil {
		if isNoRows(err) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	st := domain.Settings{
		CheckInterval:         time.Duration(checkS) * time.Second,
		Timeout:               time.Duration(timeoutS) * time.Second,
		RetryCount:            retry,
		ResponseTimeLimit:     time.Duration(limitMS) * time.Millisecond,
		ErrorAlertInterval:    time.Duration(errS) * time.Second,
		ResponseAlertInterval: time.Duration(respS) * time.Second,
		ExpiryAlertDays:       expDays,
		ExpiryAlertInterval:   time.Duration(expAlertS) * time.Second,
		ExpiryCheckInterval:   time.Duration(expChkS) * time.Second,
		AlertsEnabled:         alertsEnabled,
		WebhookURL:            webhook,
		ContentMatch:          contentMatch,
		TCPPort:               tcpPort,
	}
	for _, c := range caps {
		st.Capabilities = append(st.Capabilities, domain.Capability(c))
	}
	return st, nil
}

func (s *Store) SaveSettings(ctx context.Context, id domain.TargetID, st domain.Settings) error {
	caps := make([]string, 0, len(st.Capabilities))
	for _, c := range st.Capabilities {
		caps = append(caps, string(c))
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitoring_settings
		   (target_id, check_interval_s, timeout_s, retry_count, response_time_limit_ms,
		    error_alert_interval_s, response_alert_interval_s, expiry_alert_days,
		    expiry_alert_interval_s, expiry_check_interval_s, alerts_enabled,
		    webhook_url, capabilities, content_match, tcp_port)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 ON CONFLICT (target_id) DO UPDATE SET
		   check_interval_s = EXCLUDED.check_interval_s,
		   timeout_s = EXCLUDED.timeout_s,
		   retry_count = EXCLUDED.retry_count,
		   response_time_limit_ms = EXCLUDED.response_time_limit_ms,
		   error_alert_interval_s = EXCLUDED.error_alert_interval_s,
		   response_alert_interval_s = EXCLUDED.response_alert_interval_s,
		   expiry_alert_days = EXCLUDED.expiry_alert_days,
		   expiry_alert_interval_s = EXCLUDED.expiry_alert_interval_s,
		   expiry_check_interval_s = EXCLUDED.expiry_check_interval_s,
		   alerts_enabled = EXCLUDED.alerts_enabled,
		   webhook_url = EXCLUDED.webhook_url,
		   capabilities = EXCLUDED.capabilities,
		   content_match = EXCLUDED.content_match,
		   tcp_port = EXCLUDED.tcp_port`,
		string(id),
		int(st.CheckInterval/time.Second),
		int(st.Timeout/time.Second),
		st.RetryCount,
		int(st.ResponseTimeLimit/time.Millisecond),
		int(st.ErrorAlertInterval/time.Second),
		int(st.ResponseAlertInterval/time.Second),
		st.ExpiryAlertDays,
		int(st.ExpiryAlertInterval/time.Second),
		int(st.ExpiryCheckInterval/time.Second),
		st.AlertsEnabled,
		st.WebhookURL,
		caps,
		st.ContentMatch,
		st.TCPPort,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
