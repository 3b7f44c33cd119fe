package receivers

import "otpgate/internal"

// Receiver pulls captured SMS messages from one delivery channel
// (email-to-SMS gateway inbox, provider API). Push-style channels such
// as the webhook server store messages directly and do not implement it.
type Receiver interface {
	Fetch(label string, max int) ([]internal.InboundMessage, error)
}
