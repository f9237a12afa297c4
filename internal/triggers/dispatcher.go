// Package triggers runs the server-side reactions to account and profile
// lifecycle events off the request path.
package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/metrics"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventKind string

const (
	AccountCreated EventKind = "account_created"
	AccountDeleted EventKind = "account_deleted"
	ProfileUpdated EventKind = "profile_updated"
)

type Event struct {
	Kind      EventKind
	Account   *models.Account
	AccountID uuid.UUID
	Before    *models.User
	After     *models.User
}

type ProfileStore interface {
	Create(ctx context.Context, id uuid.UUID, email, displayName string, avatarURL *string) (*models.User, bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Propagator interface {
	PropagateIdentity(ctx context.Context, before, after *models.User) (services.PropagationResult, error)
}

type Notifier interface {
	BroadcastToUser(userID uuid.UUID, eventType string, data any)
}

// Handlers are the collaborators the dispatcher acts on. They are registered
// after construction because the services that emit events are built with
// the dispatcher as their sink.
type Handlers struct {
	Profiles         ProfileStore
	Propagator       Propagator
	Notifier         Notifier
	DefaultAvatarURL string
}

// Dispatcher queues lifecycle events and handles them on a single worker.
// Failures are logged and counted, never retried.
type Dispatcher struct {
	events  chan Event
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers Handlers
}

var _ services.LifecycleEvents = (*Dispatcher)(nil)

func New(buffer int, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		events:  make(chan Event, buffer),
		logger:  logger,
		metrics: m,
	}
}

func (d *Dispatcher) Register(h Handlers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = h
}

func (d *Dispatcher) AccountCreated(account *models.Account) {
	d.enqueue(Event{Kind: AccountCreated, Account: account, AccountID: account.ID})
}

func (d *Dispatcher) AccountDeleted(accountID uuid.UUID) {
	d.enqueue(Event{Kind: AccountDeleted, AccountID: accountID})
}

func (d *Dispatcher) ProfileUpdated(before, after *models.User) {
	d.enqueue(Event{Kind: ProfileUpdated, AccountID: after.ID, Before: before, After: after})
}

func (d *Dispatcher) enqueue(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Error("trigger queue full, event dropped",
			zap.String("event", string(ev.Kind)),
			zap.Stringer("account_id", ev.AccountID),
		)
		d.metrics.RecordTrigger(string(ev.Kind), "dropped")
	}
}

// Run handles queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			_ = d.Handle(ctx, ev)
		}
	}
}

// Handle processes one event synchronously and records its outcome.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	d.mu.RLock()
	h := d.handlers
	d.mu.RUnlock()

	var err error
	switch ev.Kind {
	case AccountCreated:
		err = d.accountCreated(ctx, h, ev)
	case AccountDeleted:
		err = d.accountDeleted(ctx, h, ev)
	case ProfileUpdated:
		err = d.profileUpdated(ctx, h, ev)
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Error("lifecycle trigger failed",
			zap.String("event", string(ev.Kind)),
			zap.Stringer("account_id", ev.AccountID),
			zap.Error(err),
		)
	}
	d.metrics.RecordTrigger(string(ev.Kind), outcome)
	return err
}

func (d *Dispatcher) accountCreated(ctx context.Context, h Handlers, ev Event) error {
	if h.Profiles == nil {
		return fmt.Errorf("no profile store registered")
	}
	a := ev.Account
	avatar := a.AvatarURL
	if avatar == nil && h.DefaultAvatarURL != "" {
		def := h.DefaultAvatarURL
		avatar = &def
	}
	_, _, err := h.Profiles.Create(ctx, a.ID, a.Email, a.DisplayName, avatar)
	return err
}

func (d *Dispatcher) accountDeleted(ctx context.Context, h Handlers, ev Event) error {
	if h.Profiles == nil {
		return fmt.Errorf("no profile store registered")
	}
	_, err := h.Profiles.Delete(ctx, ev.AccountID)
	return err
}

// profileUpdated propagates the profile's identity as currently stored, not
// the event's snapshot, so events handled out of order or lost from a full
// queue are corrected by whichever identity change is handled last.
func (d *Dispatcher) profileUpdated(ctx context.Context, h Handlers, ev Event) error {
	changed := ev.Before != nil && !ev.Before.SameIdentity(ev.After)

	current := ev.After
	if changed && h.Profiles != nil {
		latest, err := h.Profiles.GetByID(ctx, ev.After.ID)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				return nil
			}
			return err
		}
		current = latest
	}

	if h.Notifier != nil {
		h.Notifier.BroadcastToUser(current.ID, sse.EventProfileUpdated, current)
	}
	if !changed || h.Propagator == nil {
		return nil
	}

	start := time.Now()
	res, err := h.Propagator.PropagateIdentity(ctx, nil, current)
	d.metrics.ObservePropagation(time.Since(start))
	if err != nil {
		return err
	}
	d.logger.Debug("identity propagated",
		zap.Stringer("account_id", current.ID),
		zap.Int64("authored", res.Authored),
		zap.Int64("edited", res.Edited),
	)
	return nil
}
