// Package render turns the events collection into the ordered, labelled
// view-model shown on the public pages. It does not produce markup.
package render

import (
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/klabast/wb-services/plaza/internal/event"
)

const (
	// DefaultBookingPhone is dialled by the Book Now action
	DefaultBookingPhone = "0877538317"

	// DefaultPreviewLimit is the number of upcoming events on the home page
	DefaultPreviewLimit = 3

	// DatePlaceholder replaces dates that do not parse
	DatePlaceholder = "Date to be confirmed"

	// EmptyMessage is shown when nothing is upcoming
	EmptyMessage = "No upcoming events at the moment."
)

var (
	enIE = language.MustParse("en-IE")

	supported = []language.Tag{enIE, language.BritishEnglish, language.AmericanEnglish}
	matcher   = language.NewMatcher(supported)

	dateLayouts = map[language.Tag]layouts{
		enIE:                     {long: "Monday 2 January 2006", short: "Mon 2 Jan"},
		language.BritishEnglish:  {long: "Monday 2 January 2006", short: "Mon 2 Jan"},
		language.AmericanEnglish: {long: "Monday, January 2, 2006", short: "Mon, Jan 2"},
	}

	statusLabels = map[event.Status]string{
		event.StatusUpcoming:  "Upcoming",
		event.StatusOngoing:   "Happening Now",
		event.StatusCompleted: "Completed",
		event.StatusCancelled: "Cancelled",
	}
)

type layouts struct {
	long  string
	short string
}

// Options are per-call view parameters
type Options struct {
	// Preview limits the upcoming group and leaves out past events
	Preview bool
}

// Card is one display-ready event
type Card struct {
	Event         event.Event `json:"event"`
	DateLabel     string      `json:"dateLabel"`
	DateValid     bool        `json:"dateValid"`
	TimeLabel     string      `json:"timeLabel,omitempty"`
	VenueLabel    string      `json:"venueLabel"`
	StatusLabel   string      `json:"statusLabel"`
	PriceLabel    string      `json:"priceLabel,omitempty"`
	CapacityLabel string      `json:"capacityLabel,omitempty"`
	Bookable      bool        `json:"bookable"`
	BookingURL    string      `json:"bookingUrl,omitempty"`
}

// View is the rendered collection
type View struct {
	Upcoming     []Card `json:"upcoming"`
	Past         []Card `json:"past"`
	Empty        bool   `json:"empty"`
	EmptyMessage string `json:"emptyMessage,omitempty"`

	// Unlisted counts ongoing and cancelled events, which appear in
	// neither group.
	Unlisted int `json:"unlisted"`
}

// Renderer formats events for one locale
type Renderer struct {
	locale       language.Tag
	layouts      layouts
	printer      *message.Printer
	titler       cases.Caser
	bookingPhone string
	previewLimit int
	logger       *zerolog.Logger
}

// Option configures a Renderer
type Option func(*Renderer)

// WithLocale picks the closest supported locale to a BCP 47 tag
func WithLocale(locale string) Option {
	return func(r *Renderer) {
		tag, err := language.Parse(locale)
		if err != nil {
			tag = enIE
		}
		_, idx, _ := matcher.Match(tag)
		r.locale = supported[idx]
	}
}

// WithBookingPhone sets the number behind the booking link
func WithBookingPhone(phone string) Option {
	return func(r *Renderer) { r.bookingPhone = phone }
}

// WithPreviewLimit sets how many upcoming events the preview keeps
func WithPreviewLimit(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.previewLimit = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// New creates a Renderer, en-IE unless configured otherwise
func New(opts ...Option) *Renderer {
	nop := zerolog.Nop()
	r := &Renderer{
		locale:       enIE,
		bookingPhone: DefaultBookingPhone,
		previewLimit: DefaultPreviewLimit,
		logger:       &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.layouts = dateLayouts[r.locale]
	r.printer = message.NewPrinter(r.locale)
	r.titler = cases.Title(r.locale)
	return r
}

// Locale returns the locale in use
func (r *Renderer) Locale() language.Tag {
	return r.locale
}

// Render partitions, orders and labels events. The input is not modified.
func (r *Renderer) Render(events []event.Event, opts Options) View {
	upcoming, past, unlisted := Partition(events)
	if unlisted > 0 {
		r.logger.Debug().Int("unlisted", unlisted).Msg("Ongoing or cancelled events are not listed")
	}

	if opts.Preview && len(upcoming) > r.previewLimit {
		upcoming = upcoming[:r.previewLimit]
	}

	v := View{
		Upcoming: r.cards(upcoming, opts.Preview),
		Past:     []Card{},
		Unlisted: unlisted,
	}
	if !opts.Preview {
		v.Past = r.cards(past, false)
	}
	if len(v.Upcoming) == 0 {
		v.Empty = true
		v.EmptyMessage = EmptyMessage
	}
	return v
}

func (r *Renderer) cards(events []event.Event, short bool) []Card {
	cards := make([]Card, 0, len(events))
	for _, e := range events {
		cards = append(cards, r.Card(e, short))
	}
	return cards
}

// Card labels a single event. short selects the compact date form.
func (r *Renderer) Card(e event.Event, short bool) Card {
	c := Card{
		Event:       e.Clone(),
		TimeLabel:   e.Time,
		VenueLabel:  e.Venue.DisplayName(),
		StatusLabel: r.StatusLabel(e.Status),
		Bookable:    e.Bookable(),
	}
	c.DateLabel, c.DateValid = r.DateLabel(e.Date, short)
	if e.Price != nil && *e.Price > 0 {
		c.PriceLabel = PriceLabel(*e.Price)
	}
	if e.Capacity != nil && *e.Capacity > 0 {
		c.CapacityLabel = r.printer.Sprintf("Up to %d people", *e.Capacity)
	}
	if c.Bookable && r.bookingPhone != "" {
		c.BookingURL = "tel:" + r.bookingPhone
	}
	return c
}

// DateLabel formats an ISO date for the locale. Dates that do not parse
// yield the placeholder and false.
func (r *Renderer) DateLabel(date string, short bool) (string, bool) {
	t, err := time.Parse(event.DateLayout, date)
	if err != nil {
		r.logger.Warn().Str("date", date).Msg("Invalid event date")
		return DatePlaceholder, false
	}
	if short {
		return t.Format(r.layouts.short), true
	}
	return t.Format(r.layouts.long), true
}

// StatusLabel returns the badge text for a status
func (r *Renderer) StatusLabel(s event.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return r.titler.String(string(s))
}

// PriceLabel formats a euro amount, dropping cents when whole
func PriceLabel(price float64) string {
	d := decimal.NewFromFloat(price)
	if d.IsInteger() {
		return "€" + d.String()
	}
	return "€" + d.StringFixed(2)
}

// Partition splits events into upcoming (ascending by date) and completed
// (descending by date). Ongoing and cancelled events are only counted.
func Partition(events []event.Event) (upcoming, past []event.Event, unlisted int) {
	for _, e := range events {
		switch e.Status {
		case event.StatusUpcoming:
			upcoming = append(upcoming, e)
		case event.StatusCompleted:
			past = append(past, e)
		default:
			unlisted++
		}
	}
	SortByDate(upcoming, true)
	SortByDate(past, false)
	return upcoming, past, unlisted
}

// SortByDate stably orders events by date. Unparseable dates go after all
// valid dates when ascending and before them when descending.
func SortByDate(events []event.Event, ascending bool) {
	type keyed struct {
		e  event.Event
		t  time.Time
		ok bool
	}
	ks := make([]keyed, len(events))
	for i, e := range events {
		t, ok := e.ParsedDate()
		ks[i] = keyed{e: e, t: t, ok: ok}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return 0
		case !a.ok:
			if ascending {
				return 1
			}
			return -1
		case !b.ok:
			if ascending {
				return -1
			}
			return 1
		}
		c := a.t.Compare(b.t)
		if !ascending {
			c = -c
		}
		return c
	})

	for i := range ks {
		events[i] = ks[i].e
	}
}
