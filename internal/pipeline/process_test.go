package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"otpgate/internal"
	"otpgate/internal/config"
	"otpgate/internal/receivers"
	"otpgate/internal/storage"
)

func storeTestMessage(t *testing.T, db *storage.DB, dir, provider, messageID, body string) internal.MessageRow {
	t.Helper()
	store := receivers.NewMessageStore(db, dir)
	row, err := store.Store(internal.InboundMessage{
		Provider:   provider,
		MessageID:  messageID,
		Sender:     "+15550000",
		ReceivedAt: "2026-08-29T10:00:00Z",
		Body:       []byte(body),
	})
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func TestProcessMessageFound(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msg := storeTestMessage(t, db, tmp, "webhook", "m1", "Your verification code is: 1234 FA+9qCX9VSu")

	svc, err := NewProcessingService(db, config.Config{CodeLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.ProcessMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "1234" || res.Status != internal.StatusProcessed {
		t.Fatalf("res=%+v", res)
	}

	rows, err := db.GetAuditRows(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Code == nil || *rows[0].Code != "1234" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestProcessMessageNotFound(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msg := storeTestMessage(t, db, tmp, "webhook", "m2", "Thanks for using our service")

	svc, err := NewProcessingService(db, config.Config{CodeLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.ProcessMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "" || res.Status != internal.StatusProcessed {
		t.Fatalf("res=%+v", res)
	}

	rows, err := db.GetAuditRows(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Extraction == nil || *rows[0].Extraction != string(internal.ExtractionNotFound) {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestProcessMessageSkipsForeignAppHash(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msg := storeTestMessage(t, db, tmp, "webhook", "m3", "Your code is 1234 OTHERHASH01")

	svc, err := NewProcessingService(db, config.Config{CodeLength: 4, AppHash: "FA+9qCX9VSu"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.ProcessMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != internal.StatusSkipped || res.Code != "" {
		t.Fatalf("res=%+v", res)
	}

	// A message that does carry the token is processed normally.
	scoped := storeTestMessage(t, db, tmp, "webhook", "m4", "Your code is 1234 FA+9qCX9VSu")
	res, err = svc.ProcessMessage(scoped)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != internal.StatusProcessed || res.Code != "1234" {
		t.Fatalf("res=%+v", res)
	}
}

func TestProcessPending(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	storeTestMessage(t, db, tmp, "webhook", "p1", "code 1111")
	storeTestMessage(t, db, tmp, "webhook", "p2", "no digits here")
	storeTestMessage(t, db, tmp, "imap", "p3", "code 2222")

	svc, err := NewProcessingService(db, config.Config{CodeLength: 4})
	if err != nil {
		t.Fatal(err)
	}

	processed, found, err := svc.ProcessPending(10, "webhook")
	if err != nil {
		t.Fatal(err)
	}
	if processed != 2 || found != 1 {
		t.Fatalf("processed=%d found=%d", processed, found)
	}

	// The imap message is still pending.
	pending, err := db.ListMessagesByStatus(string(internal.StatusReceived), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Provider != "imap" {
		t.Fatalf("pending=%+v", pending)
	}
}

func TestProcessSmokeToXLSX(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msg := storeTestMessage(t, db, tmp, "webhook", "smoke", "Your OTP is 123456\nFA+9qCX9VNm")

	svc, err := NewProcessingService(db, config.Config{CodeLength: 6})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessMessage(msg); err != nil {
		t.Fatal(err)
	}

	rows, err := db.GetAuditRows(10)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(tmp, "audit.xlsx")
	if err := ExportAuditToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestNewExtractorFromConfigWithRulesFile(t *testing.T) {
	tmp := t.TempDir()
	rulesPath := filepath.Join(tmp, "rules.yaml")
	content := "rules:\n  - name: only-brackets\n    pattern: '\\[(\\d{{n}})\\]'\n    group: 1\n"
	if err := os.WriteFile(rulesPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := NewExtractorFromConfig(config.Config{CodeLength: 4, RulesFile: rulesPath})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract("code 1234"); err == nil {
		t.Fatal("custom rule set should not match bare text")
	}
	res, err := e.Extract("[1234]")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "1234" {
		t.Fatalf("res=%+v", res)
	}
}

func TestResolveAppHash(t *testing.T) {
	hash, err := ResolveAppHash(config.Config{AppHash: "FA+9qCX9VSu"})
	if err != nil || hash != "FA+9qCX9VSu" {
		t.Fatalf("hash=%q err=%v", hash, err)
	}

	hash, err = ResolveAppHash(config.Config{AppPackage: "com.example.app", AppCertHash: "ab:cd"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 11 {
		t.Fatalf("len=%d", len(hash))
	}

	// Package without cert is a configuration error.
	if _, err := ResolveAppHash(config.Config{AppPackage: "com.example.app"}); err == nil {
		t.Fatal("expected error")
	}

	hash, err = ResolveAppHash(config.Config{})
	if err != nil || hash != "" {
		t.Fatalf("hash=%q err=%v", hash, err)
	}
}
