package wideevent

import "context"

// eventContextKey is the private context key used to store the active *Event.
type eventContextKey struct{}

// ContextWithEvent attaches the event to the context so any code handling the
// request can annotate it without access to recorder internals.
func ContextWithEvent(ctx context.Context, ev *Event) context.Context {
	if ctx == nil || ev == nil {
		return ctx
	}
	return context.WithValue(ctx, eventContextKey{}, ev)
}

// FromContext returns the active event, or nil when none is attached.
func FromContext(ctx context.Context) *Event {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(eventContextKey{}); v != nil {
		if ev, ok := v.(*Event); ok {
			return ev
		}
	}
	return nil
}

// Annotate sets one extension-bag entry on the active event. It is a no-op
// when called outside any request context; it never interrupts the caller.
func Annotate(ctx context.Context, key string, value any) {
	if ev := FromContext(ctx); ev != nil {
		ev.Set(key, value)
	}
}

// AnnotateAll sets multiple extension-bag entries on the active event. It is
// a no-op when called outside any request context.
func AnnotateAll(ctx context.Context, entries map[string]any) {
	if ev := FromContext(ctx); ev != nil {
		ev.SetAll(entries)
	}
}

// RecordError attaches an error descriptor to the active event so the
// emitted record carries outcome=error. No-op outside a request context.
func RecordError(ctx context.Context, kind, message string, retriable bool) {
	if ev := FromContext(ctx); ev != nil {
		ev.RecordError(kind, message, retriable)
	}
}
