// Package event defines the venue event record, the draft submitted by the
// admin form, and the built-in seed events.
package event

import (
	"time"
)

// DateLayout is the ISO calendar date format used on the wire
const DateLayout = "2006-01-02"

// Status is the lifecycle state of an event
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Venue is one of the known halls or free text
type Venue string

const (
	VenueSmallHall Venue = "small-hall"
	VenueLargeHall Venue = "large-hall"
	VenueYouthClub Venue = "youth-club"
	VenueBothHalls Venue = "both-halls"
)

// VenueNames maps venue keys to their display names
var VenueNames = map[Venue]string{
	VenueSmallHall: "Small Hall",
	VenueLargeHall: "Large Hall",
	VenueYouthClub: "Youth Club",
	VenueBothHalls: "Both Halls",
}

// Known reports whether v is one of the enumerated halls
func (v Venue) Known() bool {
	_, ok := VenueNames[v]
	return ok
}

// DisplayName returns the hall name, or the free text as entered
func (v Venue) DisplayName() string {
	if name, ok := VenueNames[v]; ok {
		return name
	}
	return string(v)
}

// Event is the sole persisted entity
type Event struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Time        string   `json:"time,omitempty"`
	Venue       Venue    `json:"venue"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price"`
	Capacity    *int     `json:"capacity"`
	Status      Status   `json:"status"`
	ShowBooking *bool    `json:"showBooking,omitempty"`
}

// ParsedDate returns the event date, or false when it does not parse
func (e Event) ParsedDate() (time.Time, bool) {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Bookable reports whether the booking action is offered.
// An absent showBooking counts as true.
func (e Event) Bookable() bool {
	if e.Status != StatusUpcoming {
		return false
	}
	return e.ShowBooking == nil || *e.ShowBooking
}

// Clone returns a deep copy of the event
func (e Event) Clone() Event {
	c := e
	if e.Price != nil {
		p := *e.Price
		c.Price = &p
	}
	if e.Capacity != nil {
		n := *e.Capacity
		c.Capacity = &n
	}
	if e.ShowBooking != nil {
		b := *e.ShowBooking
		c.ShowBooking = &b
	}
	return c
}

// CloneAll deep-copies a collection
func CloneAll(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// IndexOf returns the position of the event with id, or -1
func IndexOf(events []Event, id int64) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

// CountByStatus tallies events per status
func CountByStatus(events []Event) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, e := range events {
		counts[e.Status]++
	}
	return counts
}
