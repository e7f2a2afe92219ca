package api

import (
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"xyron.node/xyn/internal/bridge"
	"xyron.node/xyn/internal/types"
)

type validateRequest struct {
	WalletID string `json:"wallet_id"`
	Message  string `json:"message"`
}

// @Title: Validate Wallet
// @Route: POST /xyron/validate
// @Description: Sends the wallet (and optional message) to the signature authority and, when confirmed, admits it into the current block interval. Messages longer than the configured limit are truncated.
// @Response: {"status": "success", "wallet_id": "...", "verified": true, "signature": "X11_...", "sms_encrypted": "...", "processing_time": 12, "tokenomics": {...}, "message": "PIP"}
func (s *Service) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", types.StatusIdle)
		return
	}

	s.logger.Infof("Validation request from wallet: %s", req.WalletID)

	if utf8.RuneCountInString(req.WalletID) < s.opts.MinWalletLen {
		s.logger.Warningf("Invalid wallet ID: %q | %s", req.WalletID, types.StatusIdle)
		s.writeError(w, http.StatusBadRequest, "Invalid wallet ID", types.StatusIdle)
		return
	}
	if !s.allow(req.WalletID) {
		s.logger.Warningf("Rate limited wallet %s | %s", req.WalletID, types.StatusIdle)
		s.writeError(w, http.StatusTooManyRequests, "Too many requests", types.StatusIdle)
		return
	}

	message := truncate(req.Message, s.opts.MaxMessageLen)

	resp, err := s.authority.Validate(r.Context(), req.WalletID, message)
	switch {
	case errors.Is(err, bridge.ErrInvalidResponse):
		s.logger.Warningf("Wallet %s validation failed | Status: %s", req.WalletID, types.StatusIdle)
		s.writeError(w, http.StatusForbidden, "Validation failed", types.StatusIdle)
		return
	case errors.Is(err, bridge.ErrTimeout):
		s.logger.Errorf("Validation timeout for %s | %s", req.WalletID, types.StatusFault)
		s.writeError(w, http.StatusGatewayTimeout, "Authority timeout", types.StatusFault)
		return
	case err != nil:
		s.logger.Errorf("Validation error: %v | %s", err, types.StatusFault)
		s.writeError(w, http.StatusInternalServerError, "Internal error", types.StatusFault)
		return
	}

	outcome := s.ledger.Admit(req.WalletID, message, resp.Signature)
	if s.observer != nil {
		s.observer.ObserveAdmission(outcome)
	}
	if !outcome.Admitted {
		s.writeJSON(w, http.StatusForbidden, map[string]string{
			"status":  "error",
			"message": outcome.Reason,
			"pip":     outcome.Status,
		})
		return
	}

	elapsed := time.Since(start).Milliseconds()
	s.logger.Infof("Wallet %s validated in %dms | Signature: %s | Status: %s", req.WalletID, elapsed, prefix(resp.Signature, 20), types.StatusActive)

	var encrypted any
	if text, ok := resp.EncryptedText(); ok {
		encrypted = text
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"wallet_id":       req.WalletID,
		"verified":        true,
		"signature":       resp.Signature,
		"sms_encrypted":   encrypted,
		"processing_time": elapsed,
		"tokenomics":      s.ledger.Stats(),
		"message":         types.StatusActive,
	})
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
