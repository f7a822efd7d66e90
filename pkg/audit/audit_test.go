package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisAuditLogRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	log, err := NewRedisAuditLog(srv.Addr(), "", "test:audit")
	if err != nil {
		t.Fatalf("new audit log: %v", err)
	}
	ctx := context.Background()

	events := []Event{
		{Action: ActionUserPurge, ActorID: "admin-1", Target: "user-9"},
		{Action: ActionFeedbackModerate, ActorID: "admin-1", Target: "fb-3", Detail: "hidden"},
	}
	for _, e := range events {
		if err := log.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	// Newest first.
	if got[0].Action != ActionFeedbackModerate || got[0].Detail != "hidden" {
		t.Fatalf("unexpected newest event: %+v", got[0])
	}
	if got[1].Action != ActionUserPurge || got[1].Target != "user-9" {
		t.Fatalf("unexpected oldest event: %+v", got[1])
	}
	for _, e := range got {
		if e.ID == "" {
			t.Fatalf("event ID should be filled on record: %+v", e)
		}
		if e.At.IsZero() || time.Since(e.At) > time.Minute {
			t.Fatalf("event timestamp should be filled on record: %+v", e)
		}
	}
}

func TestRedisAuditLogRequiresAddr(t *testing.T) {
	if log, err := NewRedisAuditLog("", "", "test:audit"); err == nil || log != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestNopRecorder(t *testing.T) {
	if err := (NopRecorder{}).Record(context.Background(), Event{Action: ActionUserPurge}); err != nil {
		t.Fatalf("nop recorder should never fail: %v", err)
	}
}
