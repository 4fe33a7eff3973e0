package app

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/metrics"
	"github.com/klabast/wb-services/plaza/internal/render"
	"github.com/klabast/wb-services/plaza/internal/validate"
)

// MaxEnquiryMessage limits the contact form message
const MaxEnquiryMessage = 1000

// pageData feeds the public page templates
type pageData struct {
	Title   string
	Preview bool
	View    render.View
	Year    int
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Error rendering page")
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing page")
	}
}

// handleHome serves the landing page with the upcoming preview
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "home.html", pageData{
		Title:   "The Plaza",
		Preview: true,
		View:    s.view(r.Context(), true),
		Year:    s.now().Year(),
	})
}

// handleEventsPage serves the full listing
func (s *Server) handleEventsPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "events.html", pageData{
		Title: "Events at The Plaza",
		View:  s.view(r.Context(), false),
		Year:  s.now().Year(),
	})
}

// handleEvents returns the rendered view as JSON
// Query param: preview (optional, "true" limits the upcoming group)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	preview := r.URL.Query().Get("preview") == "true"
	writeJSON(w, http.StatusOK, s.view(r.Context(), preview))
}

// handleSubscribe serves a calendar feed for calendar apps to subscribe to.
// It carries events from the start of last year on and, unlike the admin
// export, is not sent as an attachment.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	from := time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)

	var feed []event.Event
	for _, e := range s.events.Load(r.Context()) {
		if day, ok := e.ParsedDate(); ok && !day.Before(from) {
			feed = append(feed, e)
		}
	}

	var buf bytes.Buffer
	if err := admin.WriteICS(&buf, feed, now); err != nil {
		s.logger.Error().Err(err).Msg("Error generating calendar feed")
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", admin.FormatICS.ContentType())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing calendar feed")
	}
}

// enquiry is a contact form submission
type enquiry struct {
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Age     event.FormValue `json:"age"`
	Message string          `json:"message"`
}

func (q enquiry) fields() []validate.Field {
	return []validate.Field{
		{Name: "name", Label: "Name", Value: q.Name, Required: true},
		{Name: "email", Label: "Email", Value: q.Email, Required: true, Email: true},
		{Name: "age", Label: "Age", Value: string(q.Age), Numeric: true},
		{Name: "message", Label: "Message", Value: q.Message, Required: true, MaxLength: MaxEnquiryMessage},
	}
}

// handleContact validates an enquiry. Nothing is sent anywhere; accepted
// enquiries are logged.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var q enquiry
	if isJSON(r) {
		if err := decodeJSON(w, r, &q); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return
		}
		q = enquiry{
			Name:    r.PostForm.Get("name"),
			Email:   r.PostForm.Get("email"),
			Phone:   r.PostForm.Get("phone"),
			Age:     event.FormValue(r.PostForm.Get("age")),
			Message: r.PostForm.Get("message"),
		}
	}

	if err := validate.Form(q.fields()...); err != nil {
		metrics.TrackEnquiry(false)
		writeFailure(w, err)
		return
	}

	metrics.TrackEnquiry(true)
	s.logger.Info().
		Str("name", strings.TrimSpace(q.Name)).
		Str("email", strings.TrimSpace(q.Email)).
		Int("message_length", len(q.Message)).
		Msg("Enquiry received")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": MsgEnquiryReceived})
}

// handleHealth reports liveness together with the live client counts
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sse_clients": s.sse.ClientCount(),
		"ws_clients":  s.hub.ClientCount(),
	})
}
