package receivers

import (
	"otpgate/internal/storage"
)

type FetchService struct {
	db       *storage.DB
	receiver Receiver
	store    *MessageStore
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMsgDir string, receiver Receiver) *FetchService {
	return &FetchService{
		db:       db,
		receiver: receiver,
		store:    NewMessageStore(db, rawMsgDir),
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.receiver.Fetch(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		if _, err := s.store.Store(msg); err != nil {
			return FetchResult{}, err
		}
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
