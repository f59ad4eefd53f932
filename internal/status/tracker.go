// Package status derives durable per-target state from check outcomes.
// Availability uses asymmetric hysteresis: a target goes DOWN only after
// retry_count consecutive failures, and back UP on the first success.
package status

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// TargetState is the in-memory state for one target, owned exclusively
// by the tracker. Created on first check, discarded on Forget.
type TargetState struct {
	Availability         domain.Availability `json:"availability"`
	ConsecutiveFailures  int                 `json:"consecutive_failures"`
	ConsecutiveSuccesses int                 `json:"consecutive_successes"`
	SSLState             domain.ExpiryState  `json:"ssl_state"`
	SSLExpiresAt         *time.Time          `json:"ssl_expires_at,omitempty"`
	DomainState          domain.ExpiryState  `json:"domain_state"`
	DomainExpiresAt      *time.Time          `json:"domain_expires_at,omitempty"`
	LastCheckedAt        time.Time           `json:"last_checked_at"`
}

// ExpiryTransition reports one expiry track (ssl or domain) after an
// outcome that carried a sub-result.
type ExpiryTransition struct {
	From, To  domain.ExpiryState
	ExpiresAt *time.Time
	Message   string
}

// Transition is the result of applying one outcome.
type Transition struct {
	TargetID domain.TargetID
	From, To domain.Availability
	// Changed is true when the availability status flipped this tick.
	Changed             bool
	ConsecutiveFailures int
	SSL                 *ExpiryTransition
	Domain              *ExpiryTransition
	State               TargetState
}

const shardCount = 16

type shard struct {
	mu     sync.Mutex
	states map[domain.TargetID]TargetState
}

// Tracker holds state for all registered targets, sharded by target id
// so independent loops never contend on one lock.
type Tracker struct {
	shards [shardCount]*shard
	now    func() time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	for i := range t.shards {
		t.shards[i] = &shard{states: make(map[domain.TargetID]TargetState)}
	}
	return t
}

// SetNow overrides the clock, for tests.
func (t *Tracker) SetNow(now func() time.Time) { t.now = now }

func (t *Tracker) shardFor(id domain.TargetID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return t.shards[h.Sum32()%shardCount]
}

// Apply advances the target's state machine with one outcome. The
// scheduler guarantees outcomes for one target arrive serially, so the
// per-shard lock only guards the map, not ordering.
func (t *Tracker) Apply(outcome domain.CheckOutcome, settings domain.Settings) Transition {
	s := t.shardFor(outcome.TargetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.states[outcome.TargetID]
	next, tr := Advance(prev, outcome, settings, t.now())
	s.states[outcome.TargetID] = next
	return tr
}

// Snapshot returns a copy of the target's state, false if never checked.
func (t *Tracker) Snapshot(id domain.TargetID) (TargetState, bool) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// Forget drops the target's state on unregistration.
func (t *Tracker) Forget(id domain.TargetID) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

// Advance is the pure transition function: deterministic given the
// previous state, the outcome, the settings and "now".
func Advance(prev TargetState, outcome domain.CheckOutcome, settings domain.Settings, now time.Time) (TargetState, Transition) {
	next := prev
	next.LastCheckedAt = outcome.CheckedAt

	if outcome.Available {
		next.ConsecutiveSuccesses = prev.ConsecutiveSuccesses + 1
		next.ConsecutiveFailures = 0
		// Fast recovery: one success flips DOWN (or UNKNOWN) to UP.
		next.Availability = domain.StatusUp
	} else {
		next.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		next.ConsecutiveSuccesses = 0
		// Failures accumulate from the first check; DOWN is declared
		// only once retry_count consecutive failures are seen.
		if next.ConsecutiveFailures >= settings.RetryCount {
			next.Availability = domain.StatusDown
		}
	}

	tr := Transition{
		TargetID:            outcome.TargetID,
		From:                prev.Availability,
		To:                  next.Availability,
		Changed:             prev.Availability != next.Availability,
		ConsecutiveFailures: next.ConsecutiveFailures,
	}

	if outcome.SSL != nil {
		to, msg := classifyExpiry(outcome.SSL.Valid, outcome.SSL.ExpiresAt, outcome.SSL.ErrorMessage, settings.ExpiryAlertDays, now)
		tr.SSL = &ExpiryTransition{From: prev.SSLState, To: to, ExpiresAt: outcome.SSL.ExpiresAt, Message: msg}
		next.SSLState = to
		next.SSLExpiresAt = outcome.SSL.ExpiresAt
	}
	if outcome.Domain != nil {
		to, msg := classifyExpiry(outcome.Domain.Registered, outcome.Domain.ExpiresAt, outcome.Domain.ErrorMessage, settings.ExpiryAlertDays, now)
		tr.Domain = &ExpiryTransition{From: prev.DomainState, To: to, ExpiresAt: outcome.Domain.ExpiresAt, Message: msg}
		next.DomainState = to
		next.DomainExpiresAt = outcome.Domain.ExpiresAt
	}

	tr.State = next
	return next, tr
}

// classifyExpiry maps an expiry sub-result to VALID/WARNING/EXPIRED. A
// failed probe (invalid cert, unregistered domain) counts as EXPIRED for
// alerting purposes; expiry dates move monotonically so no hysteresis is
// needed.
func classifyExpiry(ok bool, expiresAt *time.Time, errMsg string, warnDays int, now time.Time) (domain.ExpiryState, string) {
	if !ok {
		if errMsg == "" {
			errMsg = "check failed"
		}
		return domain.ExpiryExpired, errMsg
	}
	if expiresAt == nil {
		return domain.ExpiryValid, ""
	}
	if !expiresAt.After(now) {
		return domain.ExpiryExpired, "expired " + expiresAt.Format("2006-01-02")
	}
	if expiresAt.Sub(now) <= time.Duration(warnDays)*24*time.Hour {
		return domain.ExpiryWarning, "expires " + expiresAt.Format("2006-01-02")
	}
	return domain.ExpiryValid, ""
}
