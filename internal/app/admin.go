package app

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/event"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// adminPageData feeds the admin template
type adminPageData struct {
	Authenticated bool
	Events        []event.Event
	Statuses      []event.Status
	Venues        map[event.Venue]string
	Formats       []admin.Format
	Year          int
}

// handleAdminPage shows the login form or, once logged in, the event table
func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	data := adminPageData{
		Statuses: event.Statuses,
		Venues:   event.VenueNames,
		Formats:  admin.Formats,
		Year:     s.now().Year(),
	}
	if s.session(r).Authenticated(r.Context()) {
		data.Authenticated = true
		data.Events = s.controller.List()
	}
	s.renderPage(w, "admin.html", data)
}

// handleLogin accepts JSON or form credentials
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return
		}
		req = loginRequest{Username: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}
	}

	ok, err := s.session(r).Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error storing session")
		writeError(w, http.StatusInternalServerError, ErrInternalServer)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrInvalidLogin)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session(r).Logout(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Error clearing session")
		writeError(w, http.StatusInternalServerError, ErrInternalServer)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: s.session(r).Authenticated(r.Context())})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.controller.Get(id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	d, ok := readDraft(w, r)
	if !ok {
		return
	}
	e, err := s.controller.Create(r.Context(), d)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, ok := readDraft(w, r)
	if !ok {
		return
	}
	e, err := s.controller.Update(r.Context(), id, d)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.controller.Delete(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport downloads the collection
// Query param: format (json, csv, ics or yaml; defaults to json)
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := admin.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidFormat)
		return
	}

	var buf bytes.Buffer
	if err := admin.Write(&buf, format, s.controller.List(), s.now()); err != nil {
		s.logger.Error().Err(err).Str("format", string(format)).Msg("Error exporting events")
		writeError(w, http.StatusInternalServerError, ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+admin.ExportFilename(format, s.now())+`"`)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing export")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ClearAll(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathID parses the {id} path segment
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidID)
		return 0, false
	}
	return id, true
}

// readDraft decodes a JSON or form submitted event draft
func readDraft(w http.ResponseWriter, r *http.Request) (event.Draft, bool) {
	if isJSON(r) {
		var d event.Draft
		if err := decodeJSON(w, r, &d); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return event.Draft{}, false
		}
		return d, true
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidBody)
		return event.Draft{}, false
	}
	return event.DraftFromForm(r.PostForm), true
}
