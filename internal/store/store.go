// Package store is the single source of truth for the events collection.
// The canonical copy lives in a kv.Store under one key; everything held in
// memory elsewhere is a cache that reloads on change.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/klabast/wb-services/plaza/internal/broker"
	"github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/metrics"
)

// Key is the kv key holding the JSON array of events
const Key = "plazaEvents"

// Publisher receives change notifications. *broker.Broker implements it.
type Publisher interface {
	Publish(eventType broker.EventType, data any)
}

// EventStore loads and saves the events collection.
type EventStore struct {
	kv        kv.Store
	key       string
	publisher Publisher
	logger    *zerolog.Logger
	defaults  func() []event.Event
}

// Option configures an EventStore
type Option func(*EventStore)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *EventStore) { s.key = key }
}

// WithPublisher sets where change notifications go
func WithPublisher(p Publisher) Option {
	return func(s *EventStore) { s.publisher = p }
}

// WithLogger sets the logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *EventStore) { s.logger = logger }
}

// WithDefaults replaces the seed collection returned when nothing usable
// is persisted.
func WithDefaults(fn func() []event.Event) Option {
	return func(s *EventStore) { s.defaults = fn }
}

// New creates an EventStore on top of backend
func New(backend kv.Store, opts ...Option) *EventStore {
	nop := zerolog.Nop()
	s := &EventStore{
		kv:       backend,
		key:      Key,
		logger:   &nop,
		defaults: event.Defaults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted collection. It never fails: when the value is
// absent, unreadable or not an array of event objects the default seed
// events are returned and the reason is logged.
func (s *EventStore) Load(ctx context.Context) []event.Event {
	raw, ok, err := s.kv.Get(ctx, s.key)
	metrics.TrackStore("load", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to read events, using defaults")
		return s.fallback()
	}
	if !ok {
		s.logger.Debug().Str("key", s.key).Msg("No saved events, using defaults")
		return s.fallback()
	}

	events, err := Decode([]byte(raw))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Saved events are malformed, using defaults")
		return s.fallback()
	}
	return events
}

func (s *EventStore) fallback() []event.Event {
	metrics.TrackFallback()
	return s.defaults()
}

// Save writes the whole collection. A failed write returns a
// *errors.StoreError; on success an events-updated notification carrying a
// copy of the collection is published.
func (s *EventStore) Save(ctx context.Context, events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		metrics.TrackStore("save", err)
		return errors.NewStoreError(s.key, err)
	}

	err = s.kv.Set(ctx, s.key, string(data))
	metrics.TrackStore("save", err)
	if err != nil {
		storeErr := errors.NewStoreError(s.key, err)
		s.logger.Error().Err(err).Str("kind", string(storeErr.Kind)).Int("count", len(events)).Msg("Failed to save events")
		return storeErr
	}

	s.logger.Info().Int("count", len(events)).Msg("Events saved")
	s.updated(broker.EventsUpdated, events)
	return nil
}

// Clear removes the persisted collection. Later loads return the defaults.
func (s *EventStore) Clear(ctx context.Context) error {
	err := s.kv.Remove(ctx, s.key)
	metrics.TrackStore("clear", err)
	if err != nil {
		return errors.NewStoreError(s.key, err)
	}
	s.logger.Info().Str("key", s.key).Msg("All events cleared")
	s.updated(broker.EventsUpdated, []event.Event{})
	return nil
}

// Watch republishes changes made by other writers as storage-changed
// notifications carrying the freshly loaded collection.
func (s *EventStore) Watch(ctx context.Context) error {
	return s.kv.Watch(ctx, s.key, func() {
		events := s.Load(ctx)
		s.logger.Info().Int("count", len(events)).Msg("Events changed by another writer")
		s.updated(broker.StorageChanged, events)
	})
}

func (s *EventStore) updated(typ broker.EventType, events []event.Event) {
	counts := make(map[string]int)
	for status, n := range event.CountByStatus(events) {
		counts[string(status)] = n
	}
	metrics.SetEventCounts(counts)

	if s.publisher != nil {
		s.publisher.Publish(typ, event.CloneAll(events))
	}
}

// Decode parses a persisted value. Anything other than a JSON array of
// objects that each carry an id is rejected.
func Decode(data []byte) ([]event.Event, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("not an array: %w", err)
	}
	if items == nil {
		// literal null
		return nil, errors.New("not an array: null")
	}

	events := make([]event.Event, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if _, ok := fields["id"]; !ok {
			return nil, fmt.Errorf("element %d has no id", i)
		}

		var e event.Event
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}
