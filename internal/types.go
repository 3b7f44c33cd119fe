package internal

type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusProcessed MessageStatus = "processed"
	StatusSkipped   MessageStatus = "skipped"
)

type ExtractionStatus string

const (
	ExtractionFound    ExtractionStatus = "found"
	ExtractionNotFound ExtractionStatus = "not_found"
)

type SessionOutcome string

const (
	SessionDelivered SessionOutcome = "delivered"
	SessionTimeout   SessionOutcome = "timeout"
	SessionCancelled SessionOutcome = "cancelled"
)

// InboundMessage is one captured SMS as handed over by a receiver,
// before it is persisted. Body is the human-readable text only; gateway
// envelope material (MIME headers, HTML markup) is already stripped.
type InboundMessage struct {
	Provider   string
	MessageID  string
	Sender     string
	ReceivedAt string
	Body       []byte
}

type MessageRow struct {
	ID         int
	Provider   string
	MessageID  string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type ExtractionRow struct {
	ID        int
	MessageID int
	Status    ExtractionStatus
	Code      *string
	Rule      *string
	ElapsedMs float64
}

type SessionRow struct {
	ID        string
	StartedAt string
	ExpiresAt string
	Outcome   *string
	MessageID *string
	Code      *string
}

// AuditExportRow is one line of the extraction audit report: the message
// joined with its extraction outcome.
type AuditExportRow struct {
	MessageID  int
	Provider   string
	ProviderID string
	Sender     string
	ReceivedAt string
	Status     string
	Extraction *string
	Code       *string
	Rule       *string
	ElapsedMs  *float64
}
