// Package admin holds the event management side of the site: the CRUD
// controller that validates every write, the exports, and the session gate
// that hides the admin pages.
package admin

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/klabast/wb-services/plaza/internal/broker"
	"github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/metrics"
)

// DefaultSaveDelay is the simulated latency before every write
const DefaultSaveDelay = 800 * time.Millisecond

// Repository persists the collection. *store.EventStore implements it.
type Repository interface {
	Load(ctx context.Context) []event.Event
	Save(ctx context.Context, events []event.Event) error
	Clear(ctx context.Context) error
}

// Controller mediates create, update and delete against the repository.
// It holds the in-memory copy of the collection; mutations are serialized.
type Controller struct {
	repo      Repository
	ids       *event.IDGenerator
	now       func() time.Time
	saveDelay time.Duration
	logger    *zerolog.Logger

	mu     sync.Mutex
	events []event.Event
}

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the time source used for ids and the date range
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSaveDelay sets the simulated write latency; 0 disables it
func WithSaveDelay(d time.Duration) Option {
	return func(c *Controller) { c.saveDelay = d }
}

// WithLogger sets the logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller and loads the current collection
func NewController(ctx context.Context, repo Repository, opts ...Option) *Controller {
	nop := zerolog.Nop()
	c := &Controller{
		repo:      repo,
		now:       time.Now,
		saveDelay: DefaultSaveDelay,
		logger:    &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ids = event.NewIDGenerator(c.now)
	c.Reload(ctx)
	return c
}

// List returns a copy of the current collection in stored order
func (c *Controller) List() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return event.CloneAll(c.events)
}

// Get returns the event with id
func (c *Controller) Get(id int64) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := event.IndexOf(c.events, id)
	if i < 0 {
		return event.Event{}, notFound(id)
	}
	return c.events[i].Clone(), nil
}

// Create validates the draft, assigns a fresh id and saves. A validation
// failure writes nothing. When only the save fails the event is kept in
// memory and returned together with the *errors.StoreError.
func (c *Controller) Create(ctx context.Context, d event.Draft) (event.Event, error) {
	e, err := Build(d, c.now())
	if err != nil {
		metrics.TrackAdmin("create", err)
		return event.Event{}, err
	}

	c.simulateLatency()

	c.mu.Lock()
	defer c.mu.Unlock()

	e.ID = c.ids.Next()
	c.events = append(c.events, e)
	err = c.persist(ctx)
	metrics.TrackAdmin("create", err)

	c.logger.Info().Int64("id", e.ID).Str("title", e.Title).Err(err).Msg("Event created")
	return e.Clone(), err
}

// Update replaces every field of the event with id except the id itself.
// An unknown id fails with *errors.NotFoundError before the draft is
// validated.
func (c *Controller) Update(ctx context.Context, id int64, d event.Draft) (event.Event, error) {
	c.mu.Lock()
	exists := event.IndexOf(c.events, id) >= 0
	c.mu.Unlock()
	if !exists {
		metrics.TrackAdmin("update", errors.ErrNotFound)
		return event.Event{}, notFound(id)
	}

	e, err := Build(d, c.now())
	if err != nil {
		metrics.TrackAdmin("update", err)
		return event.Event{}, err
	}

	c.simulateLatency()

	c.mu.Lock()
	defer c.mu.Unlock()

	// deleted by a reload while we waited
	i := event.IndexOf(c.events, id)
	if i < 0 {
		metrics.TrackAdmin("update", errors.ErrNotFound)
		return event.Event{}, notFound(id)
	}
	e.ID = id
	c.events[i] = e
	err = c.persist(ctx)
	metrics.TrackAdmin("update", err)

	c.logger.Info().Int64("id", id).Str("title", e.Title).Err(err).Msg("Event updated")
	return e.Clone(), err
}

// Delete removes the event with id. Deleting an unknown id fails with
// *errors.NotFoundError.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	c.simulateLatency()

	c.mu.Lock()
	defer c.mu.Unlock()

	i := event.IndexOf(c.events, id)
	if i < 0 {
		metrics.TrackAdmin("delete", errors.ErrNotFound)
		return notFound(id)
	}
	c.events = append(c.events[:i:i], c.events[i+1:]...)
	err := c.persist(ctx)
	metrics.TrackAdmin("delete", err)

	c.logger.Info().Int64("id", id).Err(err).Msg("Event deleted")
	return err
}

// ClearAll removes the persisted collection and empties the in-memory copy
func (c *Controller) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.Clear(ctx); err != nil {
		metrics.TrackAdmin("clear", err)
		return err
	}
	c.events = []event.Event{}
	metrics.TrackAdmin("clear", nil)
	c.logger.Warn().Msg("All events cleared")
	return nil
}

// Reload replaces the in-memory copy with the persisted collection
func (c *Controller) Reload(ctx context.Context) []event.Event {
	events := c.repo.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(events)
	return event.CloneAll(c.events)
}

func (c *Controller) replaceLocked(events []event.Event) {
	c.events = event.CloneAll(events)
	c.ids.Observe(c.events)
}

// Subscriber keeps the in-memory copy in step with changes made by other
// writers.
func (c *Controller) Subscriber() broker.Subscriber {
	return broker.NewFunc(func(e broker.Event) error {
		if e.Type != broker.StorageChanged {
			return nil
		}
		events, ok := e.Data.([]event.Event)
		if !ok {
			return nil
		}
		c.mu.Lock()
		c.replaceLocked(events)
		c.mu.Unlock()
		c.logger.Debug().Int("count", len(events)).Msg("Reloaded events after external change")
		return nil
	})
}

// persist saves the collection (caller must hold mu)
func (c *Controller) persist(ctx context.Context) error {
	return c.repo.Save(ctx, c.events)
}

// simulateLatency waits out the configured save delay. It is not
// cancellable.
func (c *Controller) simulateLatency() {
	if c.saveDelay > 0 {
		time.Sleep(c.saveDelay)
	}
}

func notFound(id int64) error {
	return errors.NewNotFoundError("event", strconv.FormatInt(id, 10))
}
