package claim_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/pkg/lock"
)

func TestWorkerRunOnceMaturesDueClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.submit(t, "u1", "B1", "1", "bill-pay")
	if _, err := f.engine.Approve(ctx, c.ID, "admin-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	w := claim.NewWorker(f.engine, lock.NewLocal(), f.clock, time.Hour)
	if n := w.RunOnce(ctx); n != 0 {
		t.Fatalf("RunOnce before maturity = %d", n)
	}

	f.clock.Advance(3 * 24 * time.Hour)
	if n := w.RunOnce(ctx); n != 1 {
		t.Fatalf("RunOnce after maturity = %d", n)
	}
	if b := f.balance(t, "u1"); b.UnlockedBalance != 150 {
		t.Fatalf("unlocked = %d", b.UnlockedBalance)
	}
}

func TestWorkerSkipsWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.submit(t, "u1", "B1", "1", "bill-pay")
	if _, err := f.engine.Approve(ctx, c.ID, "admin-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	f.clock.Advance(4 * 24 * time.Hour)

	locker := lock.NewLocal()
	release, ok, err := locker.TryLock(ctx, "rewards:claims:sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}

	w := claim.NewWorker(f.engine, locker, f.clock, time.Hour)
	if n := w.RunOnce(ctx); n != 0 {
		t.Fatalf("RunOnce with lock held elsewhere = %d", n)
	}

	release()
	if n := w.RunOnce(ctx); n != 1 {
		t.Fatalf("RunOnce after release = %d", n)
	}
}

func TestWorkerStartStop(t *testing.T) {
	f := newFixture(t)
	w := claim.NewWorker(f.engine, nil, f.clock, time.Hour)
	w.Start()
	w.Stop()
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestWorkerLogsSweepOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.submit(t, "u1", "B1", "1", "bill-pay")
	if _, err := f.engine.Approve(ctx, c.ID, "admin-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	f.clock.Advance(3 * 24 * time.Hour)

	buf := captureLogs(t)
	w := claim.NewWorker(f.engine, lock.NewLocal(), f.clock, time.Hour)
	if n := w.RunOnce(ctx); n != 1 {
		t.Fatalf("RunOnce = %d", n)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		msg, _ := entry["message"].(string)
		if msg == "" || strings.ToUpper(msg[:1]) != msg[:1] {
			t.Errorf("log message %q does not start with a capital letter", msg)
		}
		if msg == "Maturity sweep finished" {
			found = true
			if entry["matured"] != float64(1) || entry["failed"] != float64(0) {
				t.Fatalf("sweep summary = %v", entry)
			}
		}
	}
	if !found {
		t.Fatalf("no sweep summary in logs:\n%s", buf.String())
	}
}
