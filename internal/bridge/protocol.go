package bridge

import (
	"encoding/json"
	"strings"
)

// Request is the single JSON document written to the authority per session.
type Request struct {
	ParticipantID string `json:"wallet_id"`
	Message       string `json:"message"`
	RequestID     string `json:"tx_id"`
}

// Response is the single JSON document read back from the authority.
type Response struct {
	Status    string          `json:"status,omitempty"`
	Message   string          `json:"message,omitempty"`
	Verified  bool            `json:"verified"`
	Signature string          `json:"signature"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Accepted reports whether the response is a usable confirmation: verified
// and carrying a signature that starts with prefix.
func (r *Response) Accepted(prefix string) bool {
	return r != nil && r.Verified && r.Signature != "" && strings.HasPrefix(r.Signature, prefix)
}

// EncryptedText returns data.sms_encrypted when the authority supplied it.
func (r *Response) EncryptedText() (string, bool) {
	if r == nil || len(r.Data) == 0 {
		return "", false
	}
	var payload struct {
		SMSEncrypted string `json:"sms_encrypted"`
	}
	if err := json.Unmarshal(r.Data, &payload); err != nil || payload.SMSEncrypted == "" {
		return "", false
	}
	return payload.SMSEncrypted, true
}
