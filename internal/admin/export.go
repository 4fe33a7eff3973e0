package admin

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/klabast/wb-services/plaza/internal/event"
)

// Format is an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatICS  Format = "ics"
	FormatYAML Format = "yaml"
)

// Formats lists every supported export format
var Formats = []Format{FormatJSON, FormatCSV, FormatICS, FormatYAML}

const (
	icsProductID = "-//The Plaza//Events//EN"
	icsTimezone  = "Europe/Dublin"
	icsUIDDomain = "events.theplaza.ie"
)

// ParseFormat validates a format name; empty means json
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatJSON, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	case FormatYAML:
		return "application/yaml; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// ExportFilename is plaza-events-<YYYY-MM-DD>.<ext> for the given day
func ExportFilename(f Format, day time.Time) string {
	return fmt.Sprintf("plaza-events-%s.%s", day.Format(event.DateLayout), f)
}

// Export writes the current collection in format f
func (c *Controller) Export(w io.Writer, f Format) error {
	return Write(w, f, c.List(), c.now())
}

// Write serializes events in format f. now stamps the calendar export.
func Write(w io.Writer, f Format, events []event.Event, now time.Time) error {
	if events == nil {
		events = []event.Event{}
	}
	switch f {
	case FormatJSON:
		return WriteJSON(w, events)
	case FormatCSV:
		return WriteCSV(w, events)
	case FormatICS:
		return WriteICS(w, events, now)
	case FormatYAML:
		return WriteYAML(w, events)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteJSON writes the collection as a 2-space indented JSON array
func WriteJSON(w io.Writer, events []event.Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// WriteYAML writes the collection as YAML using the JSON field names
func WriteYAML(w io.Writer, events []event.Event) error {
	data, err := yaml.MarshalWithOptions(events,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteCSV writes one row per event with a header row
func WriteCSV(w io.Writer, events []event.Event) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "title", "date", "time", "venue", "description", "price", "capacity", "status", "showBooking"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range events {
		var price, capacity string
		if e.Price != nil {
			price = strconv.FormatFloat(*e.Price, 'f', -1, 64)
		}
		if e.Capacity != nil {
			capacity = strconv.Itoa(*e.Capacity)
		}
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.Title,
			e.Date,
			e.Time,
			string(e.Venue),
			e.Description,
			price,
			capacity,
			string(e.Status),
			strconv.FormatBool(e.ShowBooking == nil || *e.ShowBooking),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteICS writes the collection as an iCalendar feed. Events with a time
// start then and last two hours; the rest are all-day. Cancelled events are
// marked CANCELLED and events with unparseable dates are skipped.
func WriteICS(w io.Writer, events []event.Event, now time.Time) error {
	iw := &icsWriter{w: w}
	iw.line("BEGIN:VCALENDAR")
	iw.line("VERSION:2.0")
	iw.line("PRODID:" + icsProductID)
	iw.line("METHOD:PUBLISH")
	iw.line("X-WR-CALNAME:The Plaza Events")
	iw.line("X-WR-TIMEZONE:" + icsTimezone)
	iw.line("CALSCALE:GREGORIAN")
	iw.line("X-PUBLISHED-TTL:PT1H")

	stamp := now.UTC().Format("20060102T150405Z")
	for _, e := range events {
		day, ok := e.ParsedDate()
		if !ok {
			continue
		}

		iw.line("BEGIN:VEVENT")
		iw.line(fmt.Sprintf("UID:%d@%s", e.ID, icsUIDDomain))
		iw.line("DTSTAMP:" + stamp)
		if start, ok := startTime(day, e.Time); ok {
			iw.line(fmt.Sprintf("DTSTART;TZID=%s:%s", icsTimezone, start.Format("20060102T150405")))
			iw.line(fmt.Sprintf("DTEND;TZID=%s:%s", icsTimezone, start.Add(2*time.Hour).Format("20060102T150405")))
		} else {
			iw.line("DTSTART;VALUE=DATE:" + day.Format("20060102"))
			iw.line("DTEND;VALUE=DATE:" + day.AddDate(0, 0, 1).Format("20060102"))
		}
		iw.line("SUMMARY:" + icsEscape(e.Title))
		if e.Description != "" {
			iw.line("DESCRIPTION:" + icsEscape(e.Description))
		}
		iw.line("LOCATION:" + icsEscape("The Plaza, "+e.Venue.DisplayName()))
		if e.Status == event.StatusCancelled {
			iw.line("STATUS:CANCELLED")
		} else {
			iw.line("STATUS:CONFIRMED")
		}
		iw.line("END:VEVENT")
	}

	iw.line("END:VCALENDAR")
	return iw.err
}

func startTime(day time.Time, hhmm string) (time.Time, bool) {
	if hhmm == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), true
}

var icsReplacer = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func icsEscape(s string) string {
	return icsReplacer.Replace(s)
}

// icsWriter writes CRLF-terminated lines and keeps the first error
type icsWriter struct {
	w   io.Writer
	err error
}

func (iw *icsWriter) line(s string) {
	if iw.err != nil {
		return
	}
	_, iw.err = io.WriteString(iw.w, s+"\r\n")
}
