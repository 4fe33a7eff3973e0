package admin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/plaza/internal/broker"
	"github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/render"
	"github.com/klabast/wb-services/plaza/internal/store"
	"github.com/klabast/wb-services/plaza/internal/validate"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newController(t *testing.T, backend kv.Store) (*Controller, *store.EventStore) {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemoryStore(0)
	}
	s := store.New(backend)
	c := NewController(context.Background(), s, WithSaveDelay(0), WithClock(func() time.Time { return fixedNow }))
	return c, s
}

func validDraft() event.Draft {
	return event.Draft{Title: "Test", Date: "2025-06-01", Venue: "small-hall", Status: "upcoming"}
}

func fieldCode(t *testing.T, err error, field string) string {
	t.Helper()
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve), "expected a validation error, got %v", err)
	fe, ok := ve.Field(field)
	require.True(t, ok, "no error for field %s in %v", field, err)
	return fe.Code
}

func TestNewControllerLoadsDefaults(t *testing.T) {
	c, _ := newController(t, nil)
	assert.Equal(t, event.Defaults(), c.List())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	c, s := newController(t, nil)

	d := validDraft()
	d.Price = "12.50"
	d.Capacity = "40"
	d.Time = "19:30"

	e, err := c.Create(ctx, d)
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, "Test", e.Title)
	assert.Equal(t, 12.5, *e.Price)
	assert.Equal(t, 40, *e.Capacity)
	require.NotNil(t, e.ShowBooking)
	assert.True(t, *e.ShowBooking)

	persisted := s.Load(ctx)
	require.Len(t, persisted, 3)
	assert.Equal(t, e, persisted[2])
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*event.Draft)
		field string
		code  string
	}{
		{"empty title", func(d *event.Draft) { d.Title = "" }, "title", validate.CodeEmptyField},
		{"blank title", func(d *event.Draft) { d.Title = "   " }, "title", validate.CodeEmptyField},
		{"impossible date", func(d *event.Draft) { d.Date = "2024-13-40" }, "date", validate.CodeInvalidDate},
		{"date before 1900", func(d *event.Draft) { d.Date = "1899-01-01" }, "date", validate.CodeDateOutOfRange},
		{"date too far ahead", func(d *event.Draft) { d.Date = "2036-01-01" }, "date", validate.CodeDateOutOfRange},
		{"missing date", func(d *event.Draft) { d.Date = "" }, "date", validate.CodeEmptyField},
		{"missing venue", func(d *event.Draft) { d.Venue = "" }, "venue", validate.CodeEmptyField},
		{"bad status", func(d *event.Draft) { d.Status = "postponed" }, "status", validate.CodeInvalidChoice},
		{"bad time", func(d *event.Draft) { d.Time = "25:00" }, "time", validate.CodeInvalidFormat},
		{"negative price", func(d *event.Draft) { d.Price = "-1" }, "price", validate.CodeOutOfRange},
		{"price not a number", func(d *event.Draft) { d.Price = "ten" }, "price", validate.CodeInvalidNumber},
		{"zero capacity", func(d *event.Draft) { d.Capacity = "0" }, "capacity", validate.CodeOutOfRange},
		{"fractional capacity", func(d *event.Draft) { d.Capacity = "1.5" }, "capacity", validate.CodeInvalidNumber},
		{"price NaN", func(d *event.Draft) { d.Price = "NaN" }, "price", validate.CodeInvalidNumber},
		{"price infinite", func(d *event.Draft) { d.Price = "+Inf" }, "price", validate.CodeInvalidNumber},
		{"hex capacity", func(d *event.Draft) { d.Capacity = "0x10" }, "capacity", validate.CodeInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := kv.NewMemoryStore(0)
			c, _ := newController(t, backend)

			d := validDraft()
			tt.edit(&d)
			_, err := c.Create(ctx, d)
			require.Error(t, err)
			assert.Equal(t, tt.code, fieldCode(t, err, tt.field))

			// nothing was written
			_, ok, _ := backend.Get(ctx, store.Key)
			assert.False(t, ok)
			assert.Len(t, c.List(), 2)
		})
	}
}

func TestRejectedNaNPriceDoesNotBlockLaterSaves(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore(0)
	c, _ := newController(t, backend)

	d := validDraft()
	d.Price = "NaN"
	_, err := c.Create(ctx, d)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.False(t, errors.IsStoreError(err))

	created, err := c.Create(ctx, validDraft())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, ok, err := backend.Get(ctx, store.Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, c.List(), 3)
}

func TestCreateEmptyTitleReportsOnlyTitle(t *testing.T) {
	c, _ := newController(t, nil)
	_, err := c.Create(context.Background(), event.Draft{Title: "", Date: "2024-12-15", Venue: "small-hall", Status: "upcoming"})

	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "title", ve.Fields[0].Field)
	assert.Equal(t, validate.CodeEmptyField, ve.Fields[0].Code)
}

func TestCreateIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, nil)

	seen := map[int64]bool{}
	for _, e := range c.List() {
		seen[e.ID] = true
	}
	for i := 0; i < 20; i++ {
		e, err := c.Create(ctx, validDraft())
		require.NoError(t, err)
		assert.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true

		if i%3 == 0 {
			require.NoError(t, c.Delete(ctx, e.ID))
		}
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	c, s := newController(t, nil)

	d := event.Draft{
		Title: "Carols by Candlelight", Date: "2025-12-14", Time: "18:00",
		Venue: "large-hall", Description: "Mince pies after", Price: "5",
		Capacity: "150", Status: "upcoming", ShowBooking: ptr(false),
	}
	e, err := c.Update(ctx, 1, d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, "Carols by Candlelight", e.Title)
	assert.Equal(t, event.VenueLargeHall, e.Venue)
	assert.Equal(t, 5.0, *e.Price)
	assert.Equal(t, 150, *e.Capacity)
	assert.False(t, *e.ShowBooking)

	got, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, e, s.Load(ctx)[0])

	// clearing optional fields removes them
	d.Price, d.Capacity, d.Time, d.Description = "", "", "", ""
	e, err = c.Update(ctx, 1, d)
	require.NoError(t, err)
	assert.Nil(t, e.Price)
	assert.Nil(t, e.Capacity)
	assert.Empty(t, e.Time)
}

func TestUpdateNotFoundBeforeValidation(t *testing.T) {
	c, _ := newController(t, nil)
	_, err := c.Update(context.Background(), 999, event.Draft{})
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsValidationError(err))
}

func TestUpdateValidationLeavesRecord(t *testing.T) {
	c, _ := newController(t, nil)
	before, _ := c.Get(2)

	_, err := c.Update(context.Background(), 2, event.Draft{Title: "x", Date: "2024-02-30", Venue: "v", Status: "upcoming"})
	assert.Equal(t, validate.CodeInvalidDate, fieldCode(t, err, "date"))

	after, _ := c.Get(2)
	assert.Equal(t, before, after)
}

func TestDeleteTwice(t *testing.T) {
	ctx := context.Background()
	c, s := newController(t, nil)

	require.NoError(t, c.Delete(ctx, 1))
	assert.Len(t, s.Load(ctx), 1)

	err := c.Delete(ctx, 1)
	assert.True(t, errors.IsNotFound(err))

	var nf *errors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "1", nf.ID)
}

func TestStoreFailureKeepsInMemoryChange(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, kv.NewMemoryStore(600))

	var lastErr error
	created := 0
	for i := 0; i < 10 && lastErr == nil; i++ {
		d := validDraft()
		d.Description = "A long description to fill the small quota quickly."
		_, lastErr = c.Create(ctx, d)
		created++
	}
	require.Error(t, lastErr)
	assert.True(t, errors.IsStoreError(lastErr))
	assert.True(t, errors.IsQuotaExceeded(lastErr))

	var se *errors.StoreError
	require.True(t, errors.As(lastErr, &se))
	assert.Equal(t, "Storage quota exceeded. Please delete some old events.", se.UserMessage())

	// the failed create is still held in memory
	assert.Len(t, c.List(), 2+created)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	c, s := newController(t, nil)
	_, err := c.Create(ctx, validDraft())
	require.NoError(t, err)

	require.NoError(t, c.ClearAll(ctx))
	assert.Empty(t, c.List())
	assert.Equal(t, event.Defaults(), s.Load(ctx))
}

func TestCorruptStoreFileAllowsSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), kv.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	backend, err := kv.NewFileStore(path)
	require.NoError(t, err)

	c, s := newController(t, backend)
	assert.Len(t, c.List(), 2)

	created, err := c.Create(ctx, validDraft())
	require.NoError(t, err)
	saved := s.Load(ctx)
	require.Len(t, saved, 3)
	assert.NotEqual(t, -1, event.IndexOf(saved, created.ID))

	require.NoError(t, c.ClearAll(ctx))
	assert.Equal(t, event.Defaults(), s.Load(ctx))
}

func TestSubscriberReloadsOnExternalChange(t *testing.T) {
	c, _ := newController(t, nil)
	sub := c.Subscriber()

	external := []event.Event{{ID: 9_999_999_999_999, Title: "Remote", Date: "2025-01-01", Venue: "small-hall", Status: event.StatusUpcoming}}
	require.NoError(t, sub.Send(broker.Event{Type: broker.EventsUpdated, Data: []event.Event{}}))
	assert.Len(t, c.List(), 2)

	require.NoError(t, sub.Send(broker.Event{Type: broker.StorageChanged, Data: external}))
	assert.Equal(t, external, c.List())

	// new ids stay above everything observed
	e, err := c.Create(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Greater(t, e.ID, external[0].ID)
}

func TestSaveDelay(t *testing.T) {
	s := store.New(kv.NewMemoryStore(0))
	c := NewController(context.Background(), s, WithSaveDelay(30*time.Millisecond))

	start := time.Now()
	require.NoError(t, c.Delete(context.Background(), 1))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestCreateThenRender(t *testing.T) {
	ctx := context.Background()
	c, s := newController(t, nil)

	e, err := c.Create(ctx, event.Draft{Title: "Test", Date: "2025-06-01", Venue: "small-hall", Status: "upcoming"})
	require.NoError(t, err)

	view := render.New().Render(s.Load(ctx), render.Options{})

	var card *render.Card
	for i := range view.Upcoming {
		if view.Upcoming[i].Event.ID == e.ID {
			card = &view.Upcoming[i]
		}
	}
	require.NotNil(t, card)
	assert.Equal(t, "Sunday 1 June 2025", card.DateLabel)
	assert.Equal(t, "Small Hall", card.VenueLabel)
	for _, p := range view.Past {
		assert.NotEqual(t, e.ID, p.Event.ID)
	}
}

func ptr[T any](v T) *T { return &v }
