// Package qr decodes the payload carried inside a customer's QR code.
//
// Current clients encode the bare customer ID. Older clients encoded a
// small JSON envelope; both forms are accepted so long-lived printed
// codes keep working.
package qr

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyPayload is returned for blank scan payloads.
var ErrEmptyPayload = errors.New("empty qr payload")

// ErrUnsupportedPayload is returned when a JSON payload is not a stamp
// card envelope.
var ErrUnsupportedPayload = errors.New("unsupported qr payload")

const legacyType = "universal_stamp_card"

// Payload is the decoded scan content.
type Payload struct {
	CustomerID string
	Email      string
	Legacy     bool
}

// Decode parses a scanned payload into the customer identity it names.
func Decode(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrEmptyPayload
	}

	if !strings.HasPrefix(raw, "{") {
		return Payload{CustomerID: raw}, nil
	}
	// A brace prefix means a legacy envelope was intended; a truncated or
	// corrupted one is not a customer ID.
	if !gjson.Valid(raw) {
		return Payload{}, ErrUnsupportedPayload
	}

	doc := gjson.Parse(raw)
	if doc.Get("type").String() != legacyType {
		return Payload{}, ErrUnsupportedPayload
	}

	id := doc.Get("qr_id").String()
	if id == "" {
		id = doc.Get("username").String()
	}
	if id == "" {
		return Payload{}, ErrUnsupportedPayload
	}

	return Payload{
		CustomerID: id,
		Email:      doc.Get("email").String(),
		Legacy:     true,
	}, nil
}
