package wideevent

import (
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
)

// Recorder wraps request processing with event creation, propagation, and
// guaranteed finalization. It is inserted ahead of all business handlers.
type Recorder struct {
	Sink     Sink
	Identity Identity
	// Fallback receives diagnostics when the sink itself fails; defaults to
	// slog.Default.
	Fallback *slog.Logger
	// NewID overrides request id generation (tests). Defaults to ULIDs.
	NewID func() string
	// OnEmit and OnSinkError hook metrics without coupling this package to a
	// metrics registry.
	OnEmit      func(outcome Outcome)
	OnSinkError func()
}

var ulidEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // Weak random is sufficient for ULID entropy.

func newEventID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulidEntropy)
	if err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return id.String()
}

func (rec *Recorder) newID(r *http.Request) string {
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		return rid
	}
	if rec.NewID != nil {
		return rec.NewID()
	}
	return newEventID()
}

// Middleware returns the pipeline stage that opens an event before any
// handler runs and seals and emits it exactly once on every exit path,
// including panics (which are re-raised unchanged after recording).
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ev := newEvent(rec.newID(r), r.Method, r.URL.Path, rec.Identity, start)
		ctx := ContextWithEvent(r.Context(), ev)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if p := recover(); p != nil {
				ev.RecordError("panic", panicMessage(p), false)
				if ev.seal(http.StatusInternalServerError, time.Since(start)) {
					rec.emit(r, ev)
				}
				panic(p)
			}
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))

		if rc := chi.RouteContext(r.Context()); rc != nil {
			ev.setEndpoint(rc.RoutePattern())
		}
		status := ww.Status()
		if status == 0 {
			// Handler never wrote a header; net/http will send 200.
			status = http.StatusOK
		}
		if ev.seal(status, time.Since(start)) {
			rec.emit(r, ev)
		}
	})
}

// emit writes the sealed event to the sink exactly once. Sink failures are
// swallowed here: they are logged to the fallback logger and counted, never
// surfaced as the request's outcome.
func (rec *Recorder) emit(r *http.Request, ev *Event) {
	if !ev.markEmitted() {
		return
	}
	if rec.OnEmit != nil {
		rec.OnEmit(ev.Outcome())
	}
	if rec.Sink == nil {
		return
	}
	if err := rec.Sink.Write(r.Context(), ev); err != nil {
		if rec.OnSinkError != nil {
			rec.OnSinkError()
		}
		lg := rec.Fallback
		if lg == nil {
			lg = slog.Default()
		}
		lg.Error("wide event sink write failed",
			slog.String("request_id", ev.ID()),
			slog.Any("error", err))
	}
}

func panicMessage(p any) string {
	switch v := p.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return "unhandled panic"
	}
}
