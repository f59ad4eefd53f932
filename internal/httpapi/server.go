package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
	apimw "github.com/iammyeongho/pymonitor/internal/httpapi/middleware"
	"github.com/iammyeongho/pymonitor/internal/repo"
	"github.com/iammyeongho/pymonitor/internal/scheduler"
)

// Server wraps the scheduler's control surface in an HTTP API. All
// monitoring behavior lives in the scheduler; handlers only translate.
type Server struct {
	Logger *zap.Logger
	Store  repo.Gateway
	Sched  *scheduler.Scheduler
}

func NewServer(l *zap.Logger, store repo.Gateway, sched *scheduler.Scheduler) *Server {
	return &Server{Logger: l, Store: store, Sched: sched}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, readRPM, writeRPM int) http.Handler {
	r := chi.NewRouter()

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		}))
	} else {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// read surface
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Use(apimw.RateLimit(readRPM, readRPM/2))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/targets/{id}/logs", s.handleListLogs)
		r.Get("/api/targets/{id}/alerts", s.handleListAlerts)
	})

	// write surface
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(writeRPM, writeRPM/2))
		r.Post("/api/targets", s.handleAddTarget)
		r.Delete("/api/targets/{id}", s.handleRemoveTarget)
		r.Put("/api/targets/{id}/settings", s.handleUpdateSettings)
		r.Post("/api/targets/{id}/check", s.handleCheckNow)
		r.Post("/api/alerts/{id}/resolve", s.handleResolveAlert)
	})

	return r
}

// settingsPayload carries settings over the wire in seconds/ms, the way
// they are configured, not as Go durations.
type settingsPayload struct {
	CheckIntervalS         *int     `json:"check_interval"`
	TimeoutS               *int     `json:"timeout"`
	RetryCount             *int     `json:"retry_count"`
	ResponseTimeLimitMS    *int     `json:"response_time_limit_ms"`
	ErrorAlertIntervalS    *int     `json:"error_alert_interval"`
	ResponseAlertIntervalS *int     `json:"response_alert_interval"`
	ExpiryAlertDays        *int     `json:"expiry_alert_days"`
	ExpiryAlertIntervalS   *int     `json:"expiry_alert_interval"`
	ExpiryCheckIntervalS   *int     `json:"expiry_check_interval"`
	AlertsEnabled          *bool    `json:"alerts_enabled"`
	WebhookURL             *string  `json:"webhook_url"`
	Capabilities           []string `json:"capabilities"`
	ContentMatch           *string  `json:"content_match"`
	TCPPort                *int     `json:"tcp_port"`
}

// merge overlays the payload's set fields onto base.
func (p settingsPayload) merge(base domain.Settings) domain.Settings {
	secs := func(dst *time.Duration, src *int) {
		if src != nil {
			*dst = time.Duration(*src) * time.Second
		}
	}
	secs(&base.CheckInterval, p.CheckIntervalS)
	secs(&base.Timeout, p.TimeoutS)
	secs(&base.ErrorAlertInterval, p.ErrorAlertIntervalS)
	secs(&base.ResponseAlertInterval, p.ResponseAlertIntervalS)
	secs(&base.ExpiryAlertInterval, p.ExpiryAlertIntervalS)
	secs(&base.ExpiryCheckInterval, p.ExpiryCheckIntervalS)
	if p.ResponseTimeLimitMS != nil {
		base.ResponseTimeLimit = time.Duration(*p.ResponseTimeLimitMS) * time.Millisecond
	}
	if p.RetryCount != nil {
		base.RetryCount = *p.RetryCount
	}
	if p.ExpiryAlertDays != nil {
		base.ExpiryAlertDays = *p.ExpiryAlertDays
	}
	if p.AlertsEnabled != nil {
		base.AlertsEnabled = *p.AlertsEnabled
	}
	if p.WebhookURL != nil {
		base.WebhookURL = *p.WebhookURL
	}
	if p.Capabilities != nil {
		base.Capabilities = nil
		for _, c := range p.Capabilities {
			base.Capabilities = append(base.Capabilities, domain.Capability(c))
		}
	}
	if p.ContentMatch != nil {
		base.ContentMatch = *p.ContentMatch
	}
	if p.TCPPort != nil {
		base.TCPPort = *p.TCPPort
	}
	return base
}

type addPayload struct {
	URL      string           `json:"url"`
	Name     string           `json:"name"`
	Settings *settingsPayload `json:"settings"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if u, err := url.ParseRequestURI(p.URL); err != nil || u.Hostname() == "" {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	settings := domain.DefaultSettings()
	if p.Settings != nil {
		settings = p.Settings.merge(settings)
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &domain.Target{URL: p.URL, Name: p.Name, CreatedAt: time.Now().UTC()}
	if err := s.Store.Add(r.Context(), t); err != nil {
		s.Logger.Warn("target_add_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add target")
		return
	}
	if err := s.Store.SaveSettings(r.Context(), t.ID, settings); err != nil {
		s.Logger.Warn("settings_save_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}
	if err := s.Sched.Register(*t, settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// One synchronous check for immediate feedback; the loop itself
	// starts at the next interval boundary.
	outcome, err := s.Sched.CheckNow(r.Context(), t.ID)
	resp := map[string]any{"target": t}
	if err == nil {
		resp["result"] = outcome
	}

	s.Logger.Info("target_added", zap.String("target_id", string(t.ID)), zap.String("url", t.URL))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Sched.Unregister(id); err != nil {
		if errors.Is(err, scheduler.ErrNotRegistered) {
			writeError(w, http.StatusNotFound, "target not registered")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Store.Remove(r.Context(), id); err != nil {
		s.Logger.Warn("target_remove_error", zap.String("target_id", string(id)), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))

	var p settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}

	current, err := s.Store.LoadSettings(r.Context(), id)
	if err != nil {
		s.Logger.Warn("settings_load_error", zap.String("target_id", string(id)), zap.Error(err))
		current = domain.DefaultSettings()
	}
	updated := p.merge(current)
	// Explicit values are rejected, not defaulted. The base is fully
	// resolved, so any invalid field here came from the payload.
	if err := updated.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Sched.UpdateSettings(id, updated); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNotRegistered):
			writeError(w, http.StatusNotFound, "target not registered")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if err := s.Store.SaveSettings(r.Context(), id, updated.ApplyDefaults()); err != nil {
		s.Logger.Warn("settings_save_error", zap.String("target_id", string(id)), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, updated.ApplyDefaults())
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	outcome, err := s.Sched.CheckNow(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrCheckInProgress):
			writeError(w, http.StatusConflict, "check already in progress")
		case errors.Is(err, scheduler.ErrNotRegistered):
			writeError(w, http.StatusNotFound, "target not registered")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sched.Status())
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	limit, offset := pagination(r)
	logs, err := s.Store.ListLogs(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	limit, offset := pagination(r)
	alerts, err := s.Store.ListAlerts(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}
	if err := s.Store.ResolveAlert(r.Context(), id, time.Now().UTC()); err != nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
