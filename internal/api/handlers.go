package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/ref"
	"github.com/FocuswithJustin/VerseExplorer/core/search"
	"github.com/FocuswithJustin/VerseExplorer/internal/logging"
	"github.com/FocuswithJustin/VerseExplorer/internal/server"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ChapterSummary describes one chapter in the corpus.
type ChapterSummary struct {
	corpus.ChapterInfo
	Verses int `json:"verses"`
}

// ResolveResponse is the body of a successful /resolve.
type ResolveResponse struct {
	Reference string    `json:"reference"`
	Range     ref.Range `json:"range"`
	Single    bool      `json:"single"`
}

// SearchRequest is a search submitted over HTTP or WebSocket.
type SearchRequest struct {
	Reference    string   `json:"ref"`
	Keyword      string   `json:"q,omitempty"`
	Translations []string `json:"t"`
	BroadSearch  bool     `json:"broad_search,omitempty"`
	BroadResults bool     `json:"broad_results,omitempty"`
	IncludeNotes bool     `json:"include_notes,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Reference string         `json:"reference"`
	Range     ref.Range      `json:"range"`
	Status    string         `json:"status"`
	Result    *search.Result `json:"result"`
}

// NavigateResponse is the body of a successful /navigate.
type NavigateResponse struct {
	From      string `json:"from"`
	Reference string `json:"reference"`
	Moved     bool   `json:"moved"`
}

// NoteResponse is the body of the single-note endpoints.
type NoteResponse struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Changed   bool   `json:"changed,omitempty"`
}

type noteBody struct {
	Text string `json:"text"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Verse Explorer API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"/health", "/translations", "/chapters", "/resolve", "/search",
			"/navigate", "/notes", "/notes/{chapter.verse}", "/metrics", "/ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	c := s.lib.Corpus()
	respond(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"version":      s.cfg.Version,
		"chapters":     len(c.Chapters()),
		"verses":       c.VerseTotal(),
		"translations": len(c.Translations()),
		"notes":        len(s.lib.Notes()),
		"fingerprint":  c.Fingerprint(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	names := s.lib.Corpus().FilterTranslations(r.URL.Query().Get("filter"))
	if names == nil {
		names = []string{}
	}
	respondWithMeta(w, names, len(names))
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	c := s.lib.Corpus()
	chapters := make([]ChapterSummary, 0, len(c.Chapters()))
	for _, n := range c.Chapters() {
		info, _ := c.Chapter(n)
		chapters = append(chapters, ChapterSummary{ChapterInfo: info, Verses: c.VerseCount(n)})
	}
	respondWithMeta(w, chapters, len(chapters))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	rng, err := s.lib.Resolve(r.URL.Query().Get("ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, ResolveResponse{Reference: rng.String(), Range: rng, Single: rng.IsSingle()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	req := SearchRequest{
		Reference:    q.Get("ref"),
		Keyword:      q.Get("q"),
		Translations: q["t"],
		BroadSearch:  queryBool(q.Get("broad_search")),
		BroadResults: queryBool(q.Get("broad_results")),
		IncludeNotes: queryBool(q.Get("include_notes")),
	}

	resp, cached, err := s.search(r.Context(), req, "http")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondWithMeta(w, resp, len(resp.Result.Hits))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	var forward bool
	switch q.Get("dir") {
	case "next":
		forward = true
	case "prev":
	default:
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "dir must be prev or next")
		return
	}

	rng, err := s.lib.Resolve(q.Get("ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	resp := NavigateResponse{From: rng.String(), Reference: rng.String()}
	key, err := session.Step(s.lib.Corpus(), rng, forward)
	switch {
	case errors.Is(err, session.ErrAtBoundary):
	case err != nil:
		respondDomainError(w, err)
		return
	default:
		resp.Reference = key.String()
		resp.Moved = true
	}
	respond(w, http.StatusOK, resp)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	entries := s.lib.Notes()
	out := make([]NoteResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NoteResponse{Reference: e.Key.String(), Text: e.Text})
	}
	respondWithMeta(w, out, len(out))
}

func (s *Server) handleNoteByRef(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/notes/")
	key, err := corpus.ParseVerseKey(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REFERENCE", "Note paths take the form /notes/{chapter.verse}")
		return
	}
	if !s.lib.Corpus().HasVerse(key) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("verse %s not found", key))
		return
	}

	switch r.Method {
	case http.MethodGet:
		text, ok := s.lib.Note(key)
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no note for %s", key))
			return
		}
		respond(w, http.StatusOK, NoteResponse{Reference: key.String(), Text: text})

	case http.MethodPut:
		text, err := s.readNoteBody(w, r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		changed, err := s.lib.CommitNote(r.Context(), key, text)
		if err != nil {
			logging.ErrorContext(r.Context(), "note write failed", "ref", key.String(), "error", err)
			respondDomainError(w, err)
			return
		}
		if changed {
			logging.InfoContext(r.Context(), "note saved", "ref", key.String())
		}
		current, _ := s.lib.Note(key)
		respond(w, http.StatusOK, NoteResponse{Reference: key.String(), Text: current, Changed: changed})

	case http.MethodDelete:
		changed, err := s.lib.DeleteNote(r.Context(), key)
		if err != nil {
			logging.ErrorContext(r.Context(), "note delete failed", "ref", key.String(), "error", err)
			respondDomainError(w, err)
			return
		}
		if !changed {
			respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no note for %s", key))
			return
		}
		respond(w, http.StatusOK, NoteResponse{Reference: key.String(), Changed: true})

	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET, PUT and DELETE are allowed")
	}
}

// readNoteBody accepts a JSON {"text": ...} object or a plain-text body.
func (s *Server) readNoteBody(w http.ResponseWriter, r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if !server.ValidateContentType(contentType, []string{"application/json", "text/plain"}) {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}

	// Four bytes per rune plus room for the JSON wrapper.
	limit := int64(s.cfg.MaxNoteLength)*4 + 1024
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := string(body)
	if server.ValidateContentType(contentType, []string{"application/json"}) {
		var nb noteBody
		if err := json.Unmarshal(body, &nb); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		text = nb.Text
	}
	return server.LimitStringLength(server.SanitizeUserInput(text), s.cfg.MaxNoteLength), nil
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", fmt.Sprintf("Only %s is allowed", method))
		return false
	}
	return true
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// errorStatus maps a domain error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidReference):
		return http.StatusBadRequest, "INVALID_REFERENCE"
	case errors.Is(err, errors.ErrChapterNotFound):
		return http.StatusNotFound, "CHAPTER_NOT_FOUND"
	case errors.Is(err, errors.ErrNoTranslationSelected):
		return http.StatusBadRequest, "NO_TRANSLATION_SELECTED"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	respondError(w, status, code, message)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
