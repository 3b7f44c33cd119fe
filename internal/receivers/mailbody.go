package receivers

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
)

// SMSBodyFromMail reduces a raw gateway email (RFC 822 bytes) to the
// forwarded SMS text. Carrier gateways send either a plain text part or
// an HTML shell around the message; the plain part wins when both exist.
func SMSBodyFromMail(raw []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	if text := strings.TrimSpace(env.Text); text != "" {
		return text, nil
	}

	if env.HTML != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML))
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(doc.Text()); text != "" {
			return text, nil
		}
	}

	return "", errors.New("gateway mail has no text content")
}
