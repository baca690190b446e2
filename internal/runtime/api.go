package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/lecture"
	"github.com/loqalabs/aetherlearn/internal/protocol"
)

const maxRequestBody = 64 << 10

type api struct {
	cfg     config.Config
	stack   *Stack
	metrics http.Handler
	ready   func() bool
	logger  *slog.Logger
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleLectureHealth)
	mux.HandleFunc("POST /generate", a.handleGenerate)
	mux.HandleFunc("GET /lectures", a.handleLectures)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/readyz", a.handleReady)
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics)
	}

	prefix := strings.TrimRight(a.cfg.Output.URLPrefix, "/")
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(a.cfg.Output.Root)))
	mux.Handle("GET "+prefix+"/", noDirListing(files))

	return withCORS(mux)
}

func (a *api) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "AetherLearn lecture API"})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *api) handleReady(w http.ResponseWriter, _ *http.Request) {
	if a.ready == nil || a.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleLectureHealth triggers the lazy speech engine load on first use.
func (a *api) handleLectureHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.Health{Status: "healthy", TTS: a.stack.Speech.Ready(r.Context())})
}

func (a *api) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req protocol.GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Detail: "invalid request body: " + err.Error(), Kind: "invalid_request"})
		return
	}

	ctx := r.Context()
	if secs := a.cfg.HTTP.GenerateTimeoutSecond; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	run, err := a.stack.Pipeline.Run(ctx, req.Lecture())
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger.Error("lecture generation failed", slog.String("topic", req.Topic), slogError(err))
		}
		writeJSON(w, status, protocol.ErrorBody{Detail: err.Error(), Kind: lecture.ErrorKind(err)})
		return
	}
	writeJSON(w, http.StatusOK, protocol.FromRun(run))
}

func (a *api) handleLectures(w http.ResponseWriter, _ *http.Request) {
	runs, err := a.stack.Store.List()
	if err != nil {
		a.logger.Error("list lectures failed", slogError(err))
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorBody{Detail: err.Error(), Kind: "storage"})
		return
	}
	out := protocol.LectureList{Lectures: make([]protocol.LectureSummary, 0, len(runs))}
	for _, run := range runs {
		out.Lectures = append(out.Lectures, protocol.LectureSummary{
			LectureID:  run.ID,
			SlideCount: run.SegmentCount,
			Created:    float64(run.CreatedAt.UnixNano()) / float64(time.Second),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	var genErr *lecture.GenerationError
	switch {
	case errors.Is(err, lecture.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &genErr):
		if genErr.Kind == lecture.KindRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
