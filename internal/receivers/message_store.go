package receivers

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"otpgate/internal"
	"otpgate/internal/storage"
)

// MessageStore persists a captured message: body bytes on disk under a
// content-hash name, one row in the messages table. Storing the same
// message twice is harmless.
type MessageStore struct {
	db        *storage.DB
	rawMsgDir string
}

func NewMessageStore(db *storage.DB, rawMsgDir string) *MessageStore {
	return &MessageStore{db: db, rawMsgDir: rawMsgDir}
}

func (s *MessageStore) Store(msg internal.InboundMessage) (internal.MessageRow, error) {
	hashBytes := sha256.Sum256(msg.Body)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMsgDir, 0o755); err != nil {
		return internal.MessageRow{}, err
	}

	rawPath := filepath.Join(s.rawMsgDir, hash+".txt")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Body, 0o644); err != nil {
			return internal.MessageRow{}, err
		}
	}

	return s.db.UpsertMessage(msg.Provider, msg.MessageID, msg.Sender, msg.ReceivedAt, hash, rawPath, string(internal.StatusReceived))
}
