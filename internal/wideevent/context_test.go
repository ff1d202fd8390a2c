package wideevent

import (
	"context"
	"testing"
	"time"
)

func Test_Annotate_NoActiveEvent(t *testing.T) {
	// Must never raise outside a request context.
	Annotate(context.Background(), "k", 1)
	AnnotateAll(context.Background(), map[string]any{"k": 1})
	RecordError(context.Background(), "INTERNAL", "boom", false)
	Annotate(nil, "k", 1) //nolint:staticcheck // nil ctx tolerance is part of the contract
}

func Test_Annotate_WithActiveEvent(t *testing.T) {
	ev := newTestEvent()
	ctx := ContextWithEvent(context.Background(), ev)

	Annotate(ctx, "user_id", "u-1")
	AnnotateAll(ctx, map[string]any{"cart_total": 7998, "item_count": 2})
	RecordError(ctx, "UPSTREAM_TIMEOUT", "deadline exceeded", true)

	rec := ev.Record()
	if rec["user_id"] != "u-1" {
		t.Fatalf("user_id missing: %v", rec)
	}
	if rec["cart_total"] != 7998 || rec["item_count"] != 2 {
		t.Fatalf("batch annotation missing: %v", rec)
	}
	ev.seal(200, time.Millisecond)
	if ev.Outcome() != OutcomeError {
		t.Fatalf("recorded error must force outcome=error, got %s", ev.Outcome())
	}
}

func Test_FromContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil event on bare context")
	}
	ev := newTestEvent()
	ctx := ContextWithEvent(context.Background(), ev)
	if FromContext(ctx) != ev {
		t.Fatalf("expected the attached event")
	}
}
