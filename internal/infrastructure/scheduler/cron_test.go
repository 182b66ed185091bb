package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate("0 9 * * *"); err != nil {
		t.Fatalf("expected valid expression, got %v", err)
	}
	if err := Validate("every morning"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron", time.UTC, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler("0 9 * * *", loc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestJobFiresEverySecond(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1s", time.UTC, nil)
	fired := make(chan time.Time, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case at := <-fired:
		if at.Location() != time.UTC {
			t.Fatalf("expected UTC trigger, got %s", at.Location())
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not fire")
	}
}
