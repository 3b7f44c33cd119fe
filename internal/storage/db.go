package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"otpgate/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'received',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS extractions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId INTEGER NOT NULL UNIQUE,
  status TEXT NOT NULL,
  code TEXT,
  rule TEXT,
  elapsedMs REAL NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  startedAt TEXT NOT NULL,
  expiresAt TEXT NOT NULL,
  outcome TEXT,
  messageId TEXT,
  code TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  messageId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertMessage(provider, messageID, sender, receivedAt, hash, rawRef, status string) (internal.MessageRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO messages (provider, messageId, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.MessageRow{}, err
	}

	row, err := d.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, errors.New("failed to upsert message")
	}
	return *row, nil
}

func (d *DB) GetMessageByProviderMessageID(provider, messageID string) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, sender, receivedAt, hash, status, rawRef
FROM messages WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetMessageByID(id int) (*internal.MessageRow, error) {
	var row internal.MessageRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, sender, receivedAt, hash, status, rawRef
FROM messages WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListMessagesByStatus(status string, limit int) ([]internal.MessageRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, sender, receivedAt, hash, status, rawRef
FROM messages WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MessageRow
	for rows.Next() {
		var row internal.MessageRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMessageStatus(messageID int, status string) error {
	_, err := d.conn.Exec(`UPDATE messages SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, messageID)
	return err
}

// ClearMessageProcessing removes a previous extraction so the message
// can be reprocessed from scratch.
func (d *DB) ClearMessageProcessing(messageID int) error {
	_, err := d.conn.Exec(`DELETE FROM extractions WHERE messageId = ?`, messageID)
	return err
}

func (d *DB) InsertExtraction(messageID int, row internal.ExtractionRow) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO extractions (messageId, status, code, rule, elapsedMs)
VALUES (?, ?, ?, ?, ?)
`, messageID, string(row.Status), row.Code, row.Rule, row.ElapsedMs)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) InsertSession(id, startedAt, expiresAt string) error {
	_, err := d.conn.Exec(`
INSERT INTO sessions (id, startedAt, expiresAt) VALUES (?, ?, ?)
`, id, startedAt, expiresAt)
	return err
}

func (d *DB) FinishSession(id string, outcome internal.SessionOutcome, messageID, code *string) error {
	_, err := d.conn.Exec(`
UPDATE sessions SET outcome = ?, messageId = ?, code = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(outcome), messageID, code, id)
	return err
}

func (d *DB) GetSession(id string) (*internal.SessionRow, error) {
	var row internal.SessionRow
	err := d.conn.QueryRow(`
SELECT id, startedAt, expiresAt, outcome, messageId, code
FROM sessions WHERE id = ?
`, id).Scan(&row.ID, &row.StartedAt, &row.ExpiresAt, &row.Outcome, &row.MessageID, &row.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) InsertRun(traceID string, messageID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, messageId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, messageID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetAuditRows returns messages joined with their extraction outcome,
// newest first, for the audit report.
func (d *DB) GetAuditRows(limit int) ([]internal.AuditExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  m.id,
  m.provider,
  m.messageId,
  m.sender,
  m.receivedAt,
  m.status,
  e.status,
  e.code,
  e.rule,
  e.elapsedMs
FROM messages m
LEFT JOIN extractions e ON e.messageId = m.id
ORDER BY m.receivedAt DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.AuditExportRow
	for rows.Next() {
		var row internal.AuditExportRow
		if err := rows.Scan(
			&row.MessageID, &row.Provider, &row.ProviderID, &row.Sender, &row.ReceivedAt, &row.Status,
			&row.Extraction, &row.Code, &row.Rule, &row.ElapsedMs,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
