package app

import (
	"context"
	"sync"
	"time"

	"probloom-client/internal/action"
	"probloom-client/internal/state"
	"go.uber.org/zap"
)

// TagUndo marks snapshots produced by Store.Undo rather than by an action.
const TagUndo action.Tag = "UNDO"

// Snapshot is what subscribers and observers receive after every state change.
type Snapshot struct {
	Seq   uint64                 `json:"seq"`
	Tag   action.Tag             `json:"type"`
	State state.ApplicationState `json:"state"`
}

// Observer is notified in dispatch order after every change. Observers run
// outside the state lock, so a slow observer never blocks State or Subscribe.
type Observer interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Store owns the current state tree and is the only place actions are applied.
type Store struct {
	logger       *zap.Logger
	historyLimit int
	observers    []Observer
	publishWait  time.Duration

	mu          sync.RWMutex
	seq         uint64
	current     state.ApplicationState
	history     []state.ApplicationState
	subscribers map[chan Snapshot]struct{}
	pending     []Snapshot

	// publishMu serialises observer calls; pending is drained in seq order.
	publishMu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for precondition and observer warnings.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithHistoryLimit bounds how many previous trees are retained for Undo.
// Zero disables history.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) { s.historyLimit = n }
}

// WithObserver registers an observer such as a cross-instance publisher.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithInitialState seeds the store, mainly for tests.
func WithInitialState(st state.ApplicationState) StoreOption {
	return func(s *Store) { s.current = st }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger:       zap.NewNop(),
		historyLimit: 32,
		publishWait:  2 * time.Second,
		current:      state.Initial(),
		subscribers:  make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies a to the current tree and notifies subscribers.
// Calls are serialised, so actions land in the order Dispatch was called.
// Dispatch returns once observers have seen the resulting snapshot.
func (s *Store) Dispatch(a action.Action) state.ApplicationState {
	s.mu.Lock()

	if err := state.CheckPreconditions(&s.current, a); err != nil {
		s.logger.Warn("action partially applied", zap.String("type", string(a.Tag())), zap.Error(err))
	}

	s.pushHistoryLocked(s.current)
	s.current = state.Reduce(&s.current, a)
	s.logger.Debug("action dispatched",
		zap.String("type", string(a.Tag())),
		zap.Int("problemSets", len(s.current.ProblemSets)),
		zap.Int("solvers", len(s.current.Solvers)))
	s.broadcastLocked(a.Tag())
	next := s.current
	s.mu.Unlock()

	s.flushObservers()
	return next
}

// State returns the current tree.
func (s *Store) State() state.ApplicationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// History returns the retained previous trees, oldest first.
func (s *Store) History() []state.ApplicationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]state.ApplicationState, len(s.history))
	copy(out, s.history)
	return out
}

// Undo restores the most recent retained tree. It reports false when there is none.
func (s *Store) Undo() (state.ApplicationState, bool) {
	s.mu.Lock()
	if len(s.history) == 0 {
		current := s.current
		s.mu.Unlock()
		return current, false
	}
	last := len(s.history) - 1
	s.current = s.history[last]
	s.history = s.history[:last:last]
	s.broadcastLocked(TagUndo)
	restored := s.current
	s.mu.Unlock()

	s.flushObservers()
	return restored, true
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current one. The caller must invoke cancel to avoid leaks.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	ch <- Snapshot{Seq: s.seq, State: s.current}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) pushHistoryLocked(st state.ApplicationState) {
	if s.historyLimit <= 0 {
		return
	}
	if len(s.history) >= s.historyLimit {
		s.history = append(s.history[:0:0], s.history[len(s.history)-s.historyLimit+1:]...)
	}
	s.history = append(s.history, st)
}

func (s *Store) broadcastLocked(tag action.Tag) {
	s.seq++
	snap := Snapshot{Seq: s.seq, Tag: tag, State: s.current}
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is behind: drop its oldest snapshot so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}

	if len(s.observers) > 0 {
		s.pending = append(s.pending, snap)
	}
}

// flushObservers publishes queued snapshots in order. Whichever caller holds
// publishMu drains everything queued so far, including snapshots of other
// dispatches.
func (s *Store) flushObservers() {
	if len(s.observers) == 0 {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		snap := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.publish(snap)
	}
}

func (s *Store) publish(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.publishWait)
	defer cancel()
	for _, o := range s.observers {
		if err := o.Publish(ctx, snap); err != nil {
			s.logger.Warn("observer publish failed", zap.Uint64("seq", snap.Seq), zap.Error(err))
		}
	}
}
