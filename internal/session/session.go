// Package session implements the bounded listening window: at most one
// caller waits for the next captured SMS at a time, and the wait ends
// with a code, a not-found result, a timeout, or a cancellation.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"otpgate/internal"
	"otpgate/internal/otp"
	"otpgate/internal/storage"
)

const DefaultWindow = 5 * time.Minute

var (
	ErrActiveSession = errors.New("a listen session is already active")
	ErrTimeout       = errors.New("listen window expired")
	ErrCancelled     = errors.New("listen session cancelled")
)

// Result resolves a listen session. Err is nil on a successful
// extraction, otp.ErrNotFound when a message arrived but carried no
// code, ErrTimeout or ErrCancelled otherwise.
type Result struct {
	SessionID string
	Code      string
	Rule      string
	Err       error
}

type session struct {
	id      string
	expires time.Time
	result  chan Result
	timer   *time.Timer
}

// Manager owns the single active session. The db is an optional audit
// sink; a nil db skips session bookkeeping.
type Manager struct {
	extractor *otp.Extractor
	db        *storage.DB
	window    time.Duration

	mu     sync.Mutex
	active *session
}

func NewManager(extractor *otp.Extractor, db *storage.DB, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{extractor: extractor, db: db, window: window}
}

// Start opens a listen window and returns its id plus the channel the
// result will arrive on. ErrActiveSession while another window is open.
func (m *Manager) Start() (string, <-chan Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return "", nil, ErrActiveSession
	}

	now := time.Now()
	s := &session{
		id:      uuid.NewString(),
		expires: now.Add(m.window),
		result:  make(chan Result, 1),
	}
	s.timer = time.AfterFunc(m.window, func() { m.expire(s.id) })
	m.active = s

	if m.db != nil {
		_ = m.db.InsertSession(s.id, now.UTC().Format(time.RFC3339), s.expires.UTC().Format(time.RFC3339))
	}

	return s.id, s.result, nil
}

// Deliver hands one captured message to the active session. The session
// is consumed either way: the caller gets the code or otp.ErrNotFound
// and decides whether to open another window. Returns false when no
// session is listening.
func (m *Manager) Deliver(messageRef, body string) bool {
	m.mu.Lock()
	s := m.active
	if s == nil {
		m.mu.Unlock()
		return false
	}
	m.active = nil
	s.timer.Stop()
	m.mu.Unlock()

	out := Result{SessionID: s.id}
	res, err := m.extractor.Extract(body)
	if err != nil {
		out.Err = err
	} else {
		out.Code = res.Code
		out.Rule = res.Rule
	}
	s.result <- out

	if m.db != nil {
		var codePtr *string
		if out.Err == nil {
			codePtr = &out.Code
		}
		_ = m.db.FinishSession(s.id, internal.SessionDelivered, &messageRef, codePtr)
	}
	return true
}

// Cancel closes the active window, if any.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	s := m.active
	if s == nil {
		m.mu.Unlock()
		return false
	}
	m.active = nil
	s.timer.Stop()
	m.mu.Unlock()

	s.result <- Result{SessionID: s.id, Err: ErrCancelled}
	if m.db != nil {
		_ = m.db.FinishSession(s.id, internal.SessionCancelled, nil, nil)
	}
	return true
}

func (m *Manager) expire(id string) {
	m.mu.Lock()
	s := m.active
	if s == nil || s.id != id {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.mu.Unlock()

	s.result <- Result{SessionID: id, Err: ErrTimeout}
	if m.db != nil {
		_ = m.db.FinishSession(id, internal.SessionTimeout, nil, nil)
	}
}
