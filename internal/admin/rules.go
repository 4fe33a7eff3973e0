package admin

import (
	"regexp"
	"strconv"
	"time"

	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/validate"
)

const (
	// MaxDescription is the description length limit, in characters
	MaxDescription = 1000
	// MaxTitle is the title length limit, in characters
	MaxTitle = 200
	// MaxVenue is the free-text venue length limit
	MaxVenue = 100

	maxPrice    = 100000
	maxCapacity = 100000
)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// EarliestDate is the lower bound for event dates
var EarliestDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// LatestDate is the upper bound for event dates: 31 December ten years
// after the current year.
func LatestDate(now time.Time) time.Time {
	return time.Date(now.Year()+10, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// DraftFields declares the constraints of the event form
func DraftFields(d event.Draft, now time.Time) []validate.Field {
	statuses := make([]string, len(event.Statuses))
	for i, s := range event.Statuses {
		statuses[i] = string(s)
	}

	return []validate.Field{
		{Name: "title", Label: "Title", Value: d.Title, Required: true, MaxLength: MaxTitle},
		{Name: "date", Label: "Date", Value: d.Date, Required: true,
			Date: &validate.DateRange{Min: EarliestDate, Max: LatestDate(now)}},
		{Name: "time", Label: "Time", Value: d.Time,
			Pattern: timePattern, PatternMessage: "Time must be in HH:MM format"},
		{Name: "venue", Label: "Venue", Value: d.Venue, Required: true, MaxLength: MaxVenue},
		{Name: "description", Label: "Description", Value: d.Description, MaxLength: MaxDescription},
		{Name: "price", Label: "Price", Value: string(d.Price),
			Numeric: true, Range: &validate.Range{Min: 0, Max: maxPrice}},
		{Name: "capacity", Label: "Capacity", Value: string(d.Capacity),
			Integer: true, Range: &validate.Range{Min: 1, Max: maxCapacity}},
		{Name: "status", Label: "Status", Value: d.Status, Required: true, Choices: statuses},
	}
}

// Build validates d and returns the event it describes, without an id.
// The error is a *errors.ValidationError listing every failing field.
func Build(d event.Draft, now time.Time) (event.Event, error) {
	d = d.Normalize()
	if err := validate.Form(DraftFields(d, now)...); err != nil {
		return event.Event{}, err
	}

	e := event.Event{
		Title:       d.Title,
		Date:        d.Date,
		Time:        d.Time,
		Venue:       event.Venue(d.Venue),
		Description: d.Description,
		Status:      event.Status(d.Status),
	}
	if d.Price != "" {
		p, _ := strconv.ParseFloat(string(d.Price), 64)
		e.Price = &p
	}
	if d.Capacity != "" {
		f, _ := strconv.ParseFloat(string(d.Capacity), 64)
		n := int(f)
		e.Capacity = &n
	}
	show := d.ShowBooking == nil || *d.ShowBooking
	e.ShowBooking = &show
	return e, nil
}
