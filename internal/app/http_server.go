package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"clockify-blocks/internal/domain"
	"clockify-blocks/internal/widget"
)

// HTTPServer returns a configured http.Server exposing the tracker blocks of
// local documents. Every request re-renders the document named by ?file=.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// GET /blocks?file=...
	mux.HandleFunc("GET /blocks", func(w http.ResponseWriter, r *http.Request) {
		file, ok := requireFile(w, r)
		if !ok {
			return
		}
		views, err := a.Views(r.Context(), file)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "file": file, "blocks": views})
	})

	// POST /blocks?file=...&line=N inserts an empty tracker block.
	mux.HandleFunc("POST /blocks", func(w http.ResponseWriter, r *http.Request) {
		file, ok := requireFile(w, r)
		if !ok {
			return
		}
		line := -1
		if s := r.URL.Query().Get("line"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "line must be an integer"})
				return
			}
			line = n
		}
		if line < 0 {
			line = math.MaxInt
		}
		if err := a.InsertAt(r.Context(), file, line); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "file": file})
	})

	mux.HandleFunc("POST /blocks/{index}/click", func(w http.ResponseWriter, r *http.Request) {
		file, ok := requireFile(w, r)
		if !ok {
			return
		}
		index, ok := requireIndex(w, r)
		if !ok {
			return
		}
		view, err := a.Click(r.Context(), file, index)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "block": view})
	})

	mux.HandleFunc("PUT /blocks/{index}/description", func(w http.ResponseWriter, r *http.Request) {
		file, ok := requireFile(w, r)
		if !ok {
			return
		}
		index, ok := requireIndex(w, r)
		if !ok {
			return
		}
		var body struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "invalid JSON body"})
			return
		}
		view, err := a.Describe(r.Context(), file, index, body.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "block": view})
	})

	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, mux), ReadHeaderTimeout: 10 * time.Second}
	a.log.Info("http control server configured", slog.String("addr", addr))
	return srv
}

func requireFile(w http.ResponseWriter, r *http.Request) (string, bool) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "file is required"})
		return "", false
	}
	return file, true
}

func requireIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "index must be an integer"})
		return 0, false
	}
	return index, true
}

// writeError maps domain errors to statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNoBlock), errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, widget.ErrBusy), errors.Is(err, domain.ErrStaleBlock):
		status = http.StatusConflict
	case errors.Is(err, ErrOutsideRoot):
		status = http.StatusForbidden
	case errors.Is(err, widget.ErrRunning):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"status": "error", "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
