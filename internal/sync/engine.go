package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/store"
)

// Status is one sync state of a record kind.
type Status string

// Sync statuses.
const (
	StatusIdle       Status = "idle"
	StatusSyncing    Status = "syncing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusDisabled   Status = "disabled"
	StatusRestricted Status = "restricted"
)

// StatusChange is published on every per-kind status transition.
type StatusChange struct {
	Kind   domain.RecordKind
	Status Status
}

// Engine reconciles local syncable records with a remote record store.
//
// A single Run may be in flight at a time; concurrent calls fail fast with
// CodeSyncInFlight rather than queueing.
type Engine struct {
	store   *store.Store
	records RecordStore
	account AccountProvider
	logger  *slog.Logger
	runners []runner

	inFlight atomic.Bool
	enabled  atomic.Bool

	mu       sync.RWMutex
	statuses map[domain.RecordKind]Status

	subMu sync.Mutex
	subs  []chan StatusChange
}

// NewEngine creates a sync engine over the given stores.
func NewEngine(s *store.Store, records RecordStore, account AccountProvider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	statuses := make(map[domain.RecordKind]Status, len(domain.SyncableKinds))
	for _, kind := range domain.SyncableKinds {
		statuses[kind] = StatusIdle
	}
	return &Engine{
		store:    s,
		records:  records,
		account:  account,
		logger:   logger,
		runners:  newRunners(s),
		statuses: statuses,
	}
}

// Initialize consults the account provider and gates sync accordingly.
// Without a usable account every kind is marked disabled or restricted and
// Run refuses to start.
func (e *Engine) Initialize(ctx context.Context) error {
	status, err := e.account.Status(ctx)
	if err != nil {
		e.setAll(StatusDisabled)
		e.enabled.Store(false)
		return errors.AccountUnavailable("sync account status check failed").Wrap(err)
	}

	switch status {
	case AccountAvailable:
		e.setAll(StatusIdle)
		e.enabled.Store(true)
		return nil
	case AccountRestricted:
		e.setAll(StatusRestricted)
		e.enabled.Store(false)
		return errors.AccountUnavailable("sync account is restricted")
	default:
		e.setAll(StatusDisabled)
		e.enabled.Store(false)
		return errors.AccountUnavailable("no sync account available")
	}
}

// Status returns the current status of one kind.
func (e *Engine) Status(kind domain.RecordKind) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statuses[kind]
}

// Subscribe returns a buffered channel of status transitions and a cancel
// function. Slow subscribers drop events instead of blocking the engine.
func (e *Engine) Subscribe() (<-chan StatusChange, func()) {
	ch := make(chan StatusChange, 16)

	e.subMu.Lock()
	e.subs = append(e.subs, ch)
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		for i, sub := range e.subs {
			if sub == ch {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (e *Engine) setStatus(kind domain.RecordKind, status Status) {
	e.mu.Lock()
	changed := e.statuses[kind] != status
	e.statuses[kind] = status
	e.mu.Unlock()

	if !changed {
		return
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, sub := range e.subs {
		select {
		case sub <- StatusChange{Kind: kind, Status: status}:
		default:
		}
	}
}

func (e *Engine) setAll(status Status) {
	for _, kind := range domain.SyncableKinds {
		e.setStatus(kind, status)
	}
}

// Run performs one full sync pass: per kind, push pending records then pull
// and merge remote ones. Kind failures are isolated; the pass reports an
// error only when some kind's primary stage failed.
func (e *Engine) Run(ctx context.Context) error {
	if !e.enabled.Load() {
		return errors.AccountUnavailable("sync is not enabled")
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return errors.SyncInFlight("a sync pass is already running")
	}
	defer e.inFlight.Store(false)

	var failed []domain.RecordKind
	for _, r := range e.runners {
		kind := r.kind()
		if err := ctx.Err(); err != nil {
			e.setStatus(kind, StatusError)
			return err
		}

		e.setStatus(kind, StatusSyncing)
		if err := e.runKind(ctx, r); err != nil {
			e.logger.Error("sync kind failed", "kind", kind, "error", err)
			e.setStatus(kind, StatusError)
			failed = append(failed, kind)
			continue
		}
		e.setStatus(kind, StatusCompleted)
	}

	if len(failed) > 0 {
		return errors.Internal("sync pass had failing kinds", nil).WithDetails(failed)
	}
	return nil
}

func (e *Engine) runKind(ctx context.Context, r runner) error {
	kind := r.kind()

	skip := func(stage string) func(string, error) {
		return func(recID string, err error) {
			e.logger.Warn("sync record skipped",
				"kind", kind,
				"stage", stage,
				"record", recID,
				"error", err,
			)
		}
	}

	if err := r.pushPending(ctx, e.records, skip("push")); err != nil {
		return err
	}
	return r.pullAll(ctx, e.records, skip("pull"))
}
