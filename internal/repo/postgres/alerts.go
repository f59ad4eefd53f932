package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

func (s *Store) CreateAlert(ctx context.Context, a *domain.MonitoringAlert) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitoring_alerts (id, target_id, alert_type, message, created_at, is_resolved)
		 VALUES ($1, $2, $3, $4, $5, FALSE)`,
		a.ID, string(a.TargetID), string(a.Type), a.Message, a.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return a.ID, nil
}

func (s *Store) ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE monitoring_alerts SET is_resolved = TRUE, resolved_at = $2 WHERE id = $1`,
		alertID, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

func (s *Store) FindUnresolvedAlert(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*domain.MonitoringAlert, error) {
	var a domain.MonitoringAlert
	var rawTarget, rawType string
	err := s.pool.QueryRow(ctx,
		`SELECT id, target_id, alert_type, message, created_at, is_resolved, resolved_at
		   FROM monitoring_alerts
		  WHERE target_id = $1 AND alert_type = $2 AND is_resolved = FALSE
		  ORDER BY created_at DESC
		  LIMIT 1`,
		string(id), string(typ),
	).Scan(&a.ID, &rawTarget, &rawType, &a.Message, &a.CreatedAt, &a.Resolved, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find unresolved alert: %w", err)
	}
	a.TargetID = domain.TargetID(rawTarget)
	a.Type = domain.AlertType(rawType)
	return &a, nil
}

func (s *Store) LatestAlertAt(ctx context.Context, id domain.TargetID, typ domain.AlertType) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM monitoring_alerts
		  WHERE target_id = $1 AND alert_type = $2
		  ORDER BY created_at DESC
		  LIMIT 1`,
		string(id), string(typ),
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest alert: %w", err)
	}
	return &at, nil
}

func (s *Store) ListAlerts(ctx context.Context, id domain.TargetID, limit, offset int) ([]*domain.MonitoringAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, alert_type, message, created_at, is_resolved, resolved_at
		   FROM monitoring_alerts
		  WHERE target_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		string(id), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.MonitoringAlert
	for rows.Next() {
		var a domain.MonitoringAlert
		var rawTarget, rawType string
		if err := rows.Scan(&a.ID, &rawTarget, &rawType, &a.Message, &a.CreatedAt, &a.Resolved, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TargetID = domain.TargetID(rawTarget)
		a.Type = domain.AlertType(rawType)
		out = append(out, &a)
	}
	return out, rows.Err()
}
