package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNoopBusDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewNoopBus(zerolog.Nop())

	var got []string
	bus.Subscribe(ctx, "case.*", "test", func(ctx context.Context, event Event) error {
		got = append(got, event.Type)
		return nil
	})

	bus.Publish(ctx, NewEvent("case.created", "casefile", nil))
	bus.Publish(ctx, NewEvent("alert.raised", "alert", nil))
	bus.Publish(ctx, NewEvent("case.stage_changed", "casefile", nil))

	if len(got) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "case.created" || got[1] != "case.stage_changed" {
		t.Errorf("Expected case events only, got %v", got)
	}
}

func TestNoopBusHandlerErrorLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	bus := NewNoopBus(zerolog.New(&buf))

	bus.Subscribe(ctx, "*", "test", func(ctx context.Context, event Event) error {
		return errors.New("delivery refused")
	})

	event := NewEvent("case.created", "casefile", nil)
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "delivery refused") {
		t.Errorf("Expected handler error in log output, got %q", out)
	}
	if !strings.Contains(out, event.ID) {
		t.Errorf("Expected event id %s in log output, got %q", event.ID, out)
	}
}
