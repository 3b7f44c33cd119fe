package storage

import (
	"path/filepath"
	"testing"

	"otpgate/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strp(v string) *string { return &v }

func TestMessageLifecycle(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertMessage("webhook", "msg-1", "+15551234", "2026-08-29T10:00:00Z", "hash-1", "/tmp/raw/msg-1.txt", "received")
	if err != nil {
		t.Fatal(err)
	}
	if row.ID == 0 || row.Status != "received" {
		t.Fatalf("row=%+v", row)
	}

	// Re-upserting the same provider/messageId must not duplicate.
	again, err := db.UpsertMessage("webhook", "msg-1", "+15551234", "2026-08-29T10:00:00Z", "hash-1b", "/tmp/raw/msg-1.txt", "received")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != row.ID {
		t.Fatalf("duplicated: %d vs %d", again.ID, row.ID)
	}
	if again.Hash != "hash-1b" {
		t.Fatalf("hash not updated: %s", again.Hash)
	}

	pending, err := db.ListMessagesByStatus("received", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending=%d", len(pending))
	}

	if err := db.UpdateMessageStatus(row.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMessageByID(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != "processed" {
		t.Fatalf("got=%+v", got)
	}
}

func TestExtractionAndAuditRows(t *testing.T) {
	db := openTestDB(t)

	msg, err := db.UpsertMessage("imap", "<m1@gw>", "gateway@example.com", "2026-08-29T11:00:00Z", "h1", "/tmp/m1.txt", "received")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.InsertExtraction(msg.ID, internal.ExtractionRow{
		Status:    internal.ExtractionFound,
		Code:      strp("1234"),
		Rule:      strp("bare-token"),
		ElapsedMs: 0.4,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateMessageStatus(msg.ID, "processed"); err != nil {
		t.Fatal(err)
	}

	rows, err := db.GetAuditRows(50)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	r := rows[0]
	if r.Code == nil || *r.Code != "1234" || r.Rule == nil || *r.Rule != "bare-token" {
		t.Fatalf("row=%+v", r)
	}

	// Reprocessing path: clearing drops the unique extraction row.
	if err := db.ClearMessageProcessing(msg.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertExtraction(msg.ID, internal.ExtractionRow{Status: internal.ExtractionNotFound, ElapsedMs: 0.1}); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRows(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertSession("sess-1", "2026-08-29T12:00:00Z", "2026-08-29T12:05:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishSession("sess-1", internal.SessionDelivered, strp("webhook/msg-9"), strp("5678")); err != nil {
		t.Fatal(err)
	}

	row, err := db.GetSession("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Outcome == nil || *row.Outcome != string(internal.SessionDelivered) {
		t.Fatalf("row=%+v", row)
	}
	if row.Code == nil || *row.Code != "5678" {
		t.Fatalf("code=%v", row.Code)
	}

	missing, err := db.GetSession("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("missing=%+v", missing)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetMetadata("lastCycle", "2026-08-29T12:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMetadata("lastCycle")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || *v != "2026-08-29T12:00:00Z" {
		t.Fatalf("v=%v", v)
	}
}
