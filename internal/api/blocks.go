package api

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"xyron.node/xyn/internal/index"
	"xyron.node/xyn/internal/ledger"
	"xyron.node/xyn/internal/types"
)

// @Title: Get Tokenomics
// @Route: GET /tokenomics
// @Description: Returns supply, reward rate, halving progress and the activity of the current interval
// @Response: {"block": 12, "supply": 432, "maxSupply": 12614400, "currentReward": 36, "status": "PIP", ...}
func (s *Service) HandleTokenomics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Stats())
}

// @Title: Get Block History
// @Route: GET /blocks?limit=10
// @Description: Returns the most recently minted blocks, newest first
// @Response: {"count": 10, "blocks": [...], "message": "PIP"}
func (s *Service) HandleBlocks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	blocks, err := s.ledger.History(limit)
	if err != nil {
		s.logger.Errorf("Read block history: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read blocks", types.StatusFault)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(blocks),
		"blocks":  blocks,
		"message": types.StatusActive,
	})
}

// @Title: Get Block
// @Route: GET /blocks/{height}
// @Description: Returns a single block by height
// @Response: Block object, or 404 {"error": "Block not found", "message": "PIP PIP"}
func (s *Service) HandleBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Block not found", "message": types.StatusIdle})
		return
	}

	b, err := s.ledger.BlockAt(height)
	if errors.Is(err, ledger.ErrBlockNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Block not found", "message": types.StatusIdle})
		return
	}
	if err != nil {
		s.logger.Errorf("Read block %d: %v", height, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read block", types.StatusFault)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

// @Title: Get Participant
// @Route: GET /api/participants/{id}
// @Description: Returns how many blocks a participant appeared in, its accumulated reward share and message count
// @Response: {"id": "...", "blocks": 3, "totalReward": 54, "messages": 2, "firstHeight": 1, "lastHeight": 7}
func (s *Service) HandleParticipant(w http.ResponseWriter, r *http.Request) {
	if s.participants == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Index disabled", types.StatusIdle)
		return
	}
	sum, err := s.participants.Participant(r.PathValue("id"))
	if errors.Is(err, index.ErrUnknownParticipant) {
		s.writeError(w, http.StatusNotFound, "Participant not found", types.StatusIdle)
		return
	}
	if err != nil {
		s.logger.Errorf("Participant lookup: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Lookup failed", types.StatusFault)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}
