package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	app *App
	log zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(app *App, logger zerolog.Logger) *chi.Mux {
	s := &Server{
		app: app,
		log: logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.logging)
	r.Use(chimiddleware.RealIP)

	r.Get("/api/health", s.health)
	r.Get("/api/info", s.info)
	r.Get("/api/calendar.ics", s.exportICS)

	r.Get("/api/months/{year}/{month}", s.getMonth)
	r.Get("/api/days/{date}", s.getDay)

	r.Route("/api/entries", func(r chi.Router) {
		r.Get("/", s.listEntries)
		r.Post("/", s.createEntry)
		r.Put("/{date}/{time}", s.updateEntry)
		r.Delete("/{date}/{time}", s.deleteEntry)
	})

	return r
}

// Serve runs the API and the reminder job until ctx is cancelled.
func Serve(ctx context.Context, app *App, cfg *Config, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           NewRouter(app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	reminder, err := StartReminder(app, cfg.RemindSpec, cfg.RemindAhead, logger)
	if err != nil {
		return err
	}
	defer reminder.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// +---------------------+
// |                     |
// |     Middleware      |
// |                     |
// +---------------------+

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError, Response{
					Code:    CodeInternalError,
					Message: "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// +---------------------+
// |                     |
// |      Responses      |
// |                     |
// +---------------------+

func writeJSON(w http.ResponseWriter, status int, res Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, CodeInternalError
	switch {
	case errors.Is(err, ErrEntryNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidTime), errors.Is(err, ErrInvalidRepeat):
		status, code = http.StatusBadRequest, CodeValidationFailed
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, Response{Code: code, Message: msg})
}

func entriesResponse(entries []Entry) EntriesResponse {
	if entries == nil {
		entries = []Entry{}
	}
	return EntriesResponse{Total: len(entries), Entries: entries}
}

// +---------------------+
// |                     |
// |      Handlers       |
// |                     |
// +---------------------+

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.repo.Info()
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, info)
}

func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.app.Export(&buf, true); err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) getMonth(w http.ResponseWriter, r *http.Request) {
	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	month, merr := strconv.Atoi(chi.URLParam(r, "month"))
	if yerr != nil || merr != nil {
		s.fail(w, fmt.Errorf("%s/%s: %w", chi.URLParam(r, "year"), chi.URLParam(r, "month"), ErrInvalidDate))
		return
	}

	view, err := s.app.MonthView(year, time.Month(month))
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, view)
}

func (s *Server) getDay(w http.ResponseWriter, r *http.Request) {
	_, entries, err := s.app.DayEntries(chi.URLParam(r, "date"))
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, entriesResponse(entries))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	entries, err := s.app.Entries(all)
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, entriesResponse(entries))
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var in EntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Code: CodeValidationFailed, Message: "invalid JSON body"})
		return
	}

	entries, err := s.app.AddEntries(in)
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusCreated, entriesResponse(entries))
}

// entryKey reads and normalizes the {date}/{time} path parameters.
func entryKey(r *http.Request) (string, string, error) {
	date, err := NormalizeDate(chi.URLParam(r, "date"))
	if err != nil {
		return "", "", err
	}
	clock, err := NormalizeClock(chi.URLParam(r, "time"))
	if err != nil {
		return "", "", err
	}
	return date, clock, nil
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	date, clock, err := entryKey(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var in EntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Code: CodeValidationFailed, Message: "invalid JSON body"})
		return
	}

	e, err := s.app.UpdateEntry(date, clock, in)
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, e)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	date, clock, err := entryKey(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	e, err := s.app.DeleteEntry(date, clock)
	if err != nil {
		s.fail(w, err)
		return
	}
	ok(w, http.StatusOK, e)
}
