package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/present"
	"github.com/askmesh/askmesh/internal/query"
)

const DefaultTTL = 30 * time.Minute

var ErrNotFound = errors.New("session not found")

type Status string

const (
	StatusOK              Status = "ok"
	StatusNoData          Status = "no_data"
	StatusNoQuery         Status = "no_query"
	StatusExecutionFailed Status = "execution_failed"
	StatusInferenceFailed Status = "inference_failed"
)

// State is what one user sees between runs: the last executed query and its
// result, plus their chart choices.
type State struct {
	ID        string
	Question  string
	Raw       string
	Query     nl2query.Query
	Result    query.Result
	Chart     present.Options
	Status    Status
	RunID     string
	UpdatedAt time.Time
}

// Outcome is the result of one ask run, merged into State by Apply.
type Outcome struct {
	Question string
	Raw      string
	Query    nl2query.Query
	Result   query.Result
	Status   Status
	RunID    string
}

type entry struct {
	state    State
	lastSeen time.Time
}

type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, now: time.Now, sessions: map[string]*entry{}}
}

// Ensure returns the live session for id, creating a fresh one with a new id
// when id is empty, unknown or expired.
func (s *Store) Ensure(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	if e, ok := s.sessions[id]; ok && id != "" {
		e.lastSeen = s.now()
		return e.state, false
	}
	now := s.now()
	state := State{
		ID:        uuid.NewString(),
		Result:    query.Empty(),
		Chart:     present.Options{Kind: present.KindBar, Sort: present.SortDescending},
		UpdatedAt: now,
	}
	s.sessions[state.ID] = &entry{state: state, lastSeen: now}
	observability.SetActiveSessions(len(s.sessions))
	return state, true
}

func (s *Store) Get(id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	e.lastSeen = s.now()
	return e.state, nil
}

// Apply merges a run outcome. The question and raw output are always
// recorded. A successful execution replaces query and result and reconciles
// the chart axes; a failed execution keeps the query but clears the result;
// a missing query or an inference failure leaves query and result as they were.
func (s *Store) Apply(id string, outcome Outcome) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	state := e.state
	state.Question = outcome.Question
	state.Raw = outcome.Raw
	state.Status = outcome.Status

	switch outcome.Status {
	case StatusOK, StatusNoData:
		state.Query = outcome.Query
		state.Result = outcome.Result
		state.Chart = present.Reconcile(state.Chart, outcome.Result)
		state.RunID = outcome.RunID
	case StatusExecutionFailed:
		state.Query = outcome.Query
		state.Result = query.Empty()
		state.RunID = ""
	}

	state.UpdatedAt = s.now()
	e.state = state
	e.lastSeen = state.UpdatedAt
	return state, nil
}

// UpdateChart validates opts against the session's last result and stores the
// reconciled options.
func (s *Store) UpdateChart(id string, opts present.Options) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if err := opts.Validate(e.state.Result); err != nil {
		return State{}, err
	}
	e.state.Chart = present.Reconcile(opts, e.state.Result)
	e.state.UpdatedAt = s.now()
	e.lastSeen = e.state.UpdatedAt
	return e.state, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

func (s *Store) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	removed := false
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed = true
		}
	}
	if removed {
		observability.SetActiveSessions(len(s.sessions))
	}
}
