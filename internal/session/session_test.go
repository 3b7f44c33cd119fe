package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"otpgate/internal"
	"otpgate/internal/otp"
	"otpgate/internal/storage"
)

func newTestManager(t *testing.T, db *storage.DB, window time.Duration) *Manager {
	t.Helper()
	e, err := otp.NewExtractor(otp.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(e, db, window)
}

func TestStartAndDeliver(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	id, results, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}

	if !m.Deliver("webhook/msg-1", "Your code is 1234") {
		t.Fatal("no active session")
	}

	res := <-results
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Code != "1234" || res.SessionID != id {
		t.Fatalf("res=%+v", res)
	}
}

func TestDeliverNotFound(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)
	_, results, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}

	if !m.Deliver("webhook/msg-2", "Thanks for using our service") {
		t.Fatal("no active session")
	}
	res := <-results
	if !errors.Is(res.Err, otp.ErrNotFound) {
		t.Fatalf("err=%v", res.Err)
	}
}

func TestSingleActiveSession(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)
	if _, _, err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Start(); !errors.Is(err, ErrActiveSession) {
		t.Fatalf("err=%v", err)
	}

	// After delivery the next window may open.
	m.Deliver("webhook/msg-3", "9999")
	if _, _, err := m.Start(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliverWithoutSession(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)
	if m.Deliver("webhook/msg-4", "code 1234") {
		t.Fatal("delivered into no session")
	}
}

func TestCancel(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)
	_, results, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !m.Cancel() {
		t.Fatal("nothing cancelled")
	}
	res := <-results
	if !errors.Is(res.Err, ErrCancelled) {
		t.Fatalf("err=%v", res.Err)
	}
	if m.Cancel() {
		t.Fatal("cancelled twice")
	}
}

func TestWindowTimeout(t *testing.T) {
	m := newTestManager(t, nil, 20*time.Millisecond)
	_, results, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-results:
		if !errors.Is(res.Err, ErrTimeout) {
			t.Fatalf("err=%v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no timeout result")
	}

	// Late delivery after expiry finds no session.
	if m.Deliver("webhook/late", "code 1234") {
		t.Fatal("delivered into expired session")
	}
}

func TestSessionAudit(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := newTestManager(t, db, time.Minute)
	id, results, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}
	m.Deliver("webhook/msg-5", "verify 7777")
	<-results

	row, err := db.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Outcome == nil || *row.Outcome != string(internal.SessionDelivered) {
		t.Fatalf("row=%+v", row)
	}
	if row.Code == nil || *row.Code != "7777" {
		t.Fatalf("code=%v", row.Code)
	}
}
