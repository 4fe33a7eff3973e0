package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// FormValue is a raw submitted value. JSON strings, numbers and null all
// decode into it so API clients and HTML forms share one draft shape.
type FormValue string

// UnmarshalJSON implements json.Unmarshaler
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("form value must be a string or number: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}

// Draft is the user-submitted, not yet validated field set for an event
type Draft struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	Price       FormValue `json:"price"`
	Capacity    FormValue `json:"capacity"`
	Status      string    `json:"status"`
	ShowBooking *bool     `json:"showBooking"`
}

// DraftFromForm reads a draft from url-encoded form values.
// The showBooking checkbox is "on" when ticked and missing otherwise.
func DraftFromForm(form url.Values) Draft {
	show := form.Get("showBooking") == "on" || form.Get("showBooking") == "true"
	return Draft{
		Title:       form.Get("title"),
		Date:        form.Get("date"),
		Time:        form.Get("time"),
		Venue:       form.Get("venue"),
		Description: form.Get("description"),
		Price:       FormValue(form.Get("price")),
		Capacity:    FormValue(form.Get("capacity")),
		Status:      form.Get("status"),
		ShowBooking: &show,
	}
}

// Draft returns the editable fields of an existing event, used to
// prefill the edit form.
func (e Event) Draft() Draft {
	d := Draft{
		Title:       e.Title,
		Date:        e.Date,
		Time:        e.Time,
		Venue:       string(e.Venue),
		Description: e.Description,
		Status:      string(e.Status),
		ShowBooking: e.Clone().ShowBooking,
	}
	if e.Price != nil {
		d.Price = FormValue(fmt.Sprint(*e.Price))
	}
	if e.Capacity != nil {
		d.Capacity = FormValue(fmt.Sprint(*e.Capacity))
	}
	return d
}

// Normalize trims surrounding whitespace from every text field
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Date = strings.TrimSpace(d.Date)
	d.Time = strings.TrimSpace(d.Time)
	d.Venue = strings.TrimSpace(d.Venue)
	d.Description = strings.TrimSpace(d.Description)
	d.Price = FormValue(strings.TrimSpace(string(d.Price)))
	d.Capacity = FormValue(strings.TrimSpace(string(d.Capacity)))
	d.Status = strings.TrimSpace(d.Status)
	return d
}
