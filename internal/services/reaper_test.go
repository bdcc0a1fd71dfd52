package services

import (
	"context"
	"errors"
	"testing"
	"time"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	constants "github.com/greenlight-dev/greenlight/internal/constants"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

func TestNewStaleCallReaper_InvalidSchedule(t *testing.T) {
	_, err := NewStaleCallReaper(ReaperConfig{
		Registry: NewPendingCallRegistry(nil, nil),
		Schedule: "not a cron line",
	})
	if err == nil {
		t.Fatal("expected an error for an unparsable schedule")
	}
}

func TestNewStaleCallReaper_Defaults(t *testing.T) {
	reaper, err := NewStaleCallReaper(ReaperConfig{
		Registry: NewPendingCallRegistry(nil, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaper.spec != constants.DefaultSweepSchedule {
		t.Errorf("expected default schedule %q, got %q", constants.DefaultSweepSchedule, reaper.spec)
	}
	if reaper.maxAge != constants.PendingCallTimeout {
		t.Errorf("expected default max age %s, got %s", constants.PendingCallTimeout, reaper.maxAge)
	}
}

func TestStaleCallReaper_Sweep(t *testing.T) {
	eventBus := bus.New()
	sub := eventBus.Subscribe(domain.TopicCallTimeout)
	defer eventBus.Unsubscribe(sub)

	registry := NewPendingCallRegistry(nil, nil)
	now := time.Now()
	registry.now = func() time.Time { return now.Add(-20 * time.Minute) }
	stale := registry.Register("run_code")
	registry.now = func() time.Time { return now }
	fresh := registry.Register("fetch_url")

	reaper, err := NewStaleCallReaper(ReaperConfig{
		Registry: registry,
		EventBus: eventBus,
		MaxAge:   15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if swept := reaper.Sweep(); swept != 1 {
		t.Errorf("expected 1 swept call, got %d", swept)
	}

	outcome := receiveOutcome(t, stale)
	var timeoutErr *domain.CallTimeoutError
	if !errors.As(outcome.Err, &timeoutErr) {
		t.Fatalf("expected CallTimeoutError, got %v", outcome.Err)
	}
	if timeoutErr.ToolName != "run_code" {
		t.Errorf("expected tool run_code on the error, got %s", timeoutErr.ToolName)
	}

	assertNoOutcome(t, fresh)
	if !registry.HasPendingForTool("fetch_url") {
		t.Error("fresh call should survive the sweep")
	}

	select {
	case event := <-sub.Ch():
		payload, ok := event.Payload.(domain.CallTimeoutEvent)
		if !ok {
			t.Fatalf("expected CallTimeoutEvent payload, got %T", event.Payload)
		}
		if payload.ToolName != "run_code" {
			t.Errorf("expected tool run_code on the event, got %s", payload.ToolName)
		}
		if payload.Age < 15*time.Minute {
			t.Errorf("expected age beyond the limit, got %s", payload.Age)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no call.timeout event published")
	}
}

func TestStaleCallReaper_SweepNothingStale(t *testing.T) {
	eventBus := bus.New()
	sub := eventBus.Subscribe(domain.TopicCallTimeout)
	defer eventBus.Unsubscribe(sub)

	registry := NewPendingCallRegistry(nil, nil)
	registry.Register("run_code")

	reaper, err := NewStaleCallReaper(ReaperConfig{
		Registry: registry,
		EventBus: eventBus,
		MaxAge:   15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if swept := reaper.Sweep(); swept != 0 {
		t.Errorf("expected nothing swept, got %d", swept)
	}
	if registry.Count() != 1 {
		t.Errorf("expected the call untouched, count=%d", registry.Count())
	}
	select {
	case <-sub.Ch():
		t.Fatal("expected no timeout event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStaleCallReaper_SweptCallNoLongerMatches(t *testing.T) {
	registry := NewPendingCallRegistry(nil, nil)
	now := time.Now()
	registry.now = func() time.Time { return now.Add(-2 * time.Second) }
	registry.Register("run_code")
	registry.now = func() time.Time { return now }

	reaper, err := NewStaleCallReaper(ReaperConfig{Registry: registry, MaxAge: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reaper.Sweep()

	if registry.ResolveByToolName("run_code", domain.CallOutcome{Approved: true}) {
		t.Error("a swept call must not be resolvable afterwards")
	}
}

func TestStaleCallReaper_StartStop(t *testing.T) {
	reaper, err := NewStaleCallReaper(ReaperConfig{
		Registry: NewPendingCallRegistry(nil, nil),
		Schedule: "0 0 1 1 *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reaper.Start(context.Background())

	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
