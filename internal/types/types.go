// Package types defines the core domain records for xyn. It contains the
// persisted ledger state, the immutable block record written once per
// height, the pending activity admitted between two blocks and the read-only
// projections handed to the API layer.
package types

import (
	"fmt"
	"time"
)

// Version is the current version of xyn
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Status tags carried in log lines and API responses.
const (
	StatusActive = "PIP"         // activity recorded / request succeeded
	StatusIdle   = "PIP PIP"     // idle interval / request rejected
	StatusFault  = "PIP PIP PIP" // internal or transport fault
)

// LedgerState is the persisted economic state. It only changes through a
// successful mint commit.
type LedgerState struct {
	Height           uint64 `json:"height"`
	Supply           Amount `json:"supply"`
	LastHalvingEpoch uint64 `json:"lastHalvingEpoch"`
}

// PendingMessage is a signed message admitted during the current interval.
type PendingMessage struct {
	Participant    string    `json:"from"`
	Text           string    `json:"text"`
	SignatureToken string    `json:"signature"`
	ReceivedAt     time.Time `json:"timestamp"`
}

// BlockHeader summarises a minted block.
type BlockHeader struct {
	Height           uint64    `json:"height"`
	Timestamp        time.Time `json:"timestamp"`
	Reward           Amount    `json:"reward"`
	ParticipantCount int       `json:"participantCount"`
	HadActivity      bool      `json:"hadActivity"`
	Supply           Amount    `json:"supply"`
	MaxSupply        Amount    `json:"maxSupply"`
}

// BlockRewards records how the block reward is split. The split is
// informational; nothing is transferred per participant.
type BlockRewards struct {
	Total          Amount   `json:"total"`
	PerParticipant float64  `json:"perParticipant"`
	Participants   []string `json:"participants"`
}

// Vault holds the messages inscribed in a block.
type Vault struct {
	MessageCount int              `json:"messageCount"`
	Messages     []PendingMessage `json:"messages"`
}

// Block is the append-only record persisted for every height.
type Block struct {
	Header  BlockHeader  `json:"header"`
	Rewards BlockRewards `json:"rewards"`
	Vault   Vault        `json:"vault"`
}

// BlockFileName returns the fixed-width file name for a height so that
// lexicographic order equals numeric order.
func BlockFileName(height uint64) string {
	return fmt.Sprintf("block_%08d.json", height)
}

// AdmitOutcome is the result of admitting activity into the current interval.
// Rejections are business outcomes, not errors.
type AdmitOutcome struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
	Status   string `json:"status"`
}

// Rejection reasons returned by the ledger.
const (
	ReasonMissingSignature = "message without signature"
	ReasonInvalidSignature = "signature does not carry the authority prefix"
	ReasonEmptyParticipant = "participant id is empty"
)

// Stats is a read-only projection of the ledger.
type Stats struct {
	Height             uint64  `json:"block"`
	Supply             Amount  `json:"supply"`
	MaxSupply          Amount  `json:"maxSupply"`
	SupplyLeft         Amount  `json:"supplyLeft"`
	SupplyPercentage   float64 `json:"supplyPercentage"`
	CurrentReward      Amount  `json:"currentReward"`
	HalvingCount       uint64  `json:"halvingCount"`
	BlocksUntilHalving uint64  `json:"blocksUntilHalving"`
	ActiveParticipants int     `json:"activeValidators"`
	PendingMessages    int     `json:"pendingSMS"`
	ValidationCount    int     `json:"validationCount"`
	BlockTimeMs        int64   `json:"blockTime"`
	Status             string  `json:"status"`
}

// HalvingEvent is emitted when a mint observes a new halving epoch.
type HalvingEvent struct {
	Height     uint64 `json:"height"`
	FromEpoch  uint64 `json:"fromEpoch"`
	ToEpoch    uint64 `json:"toEpoch"`
	BaseReward Amount `json:"baseReward"`
}

// HeartbeatStatus is the read-only view of the interval scheduler.
type HeartbeatStatus struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"-"`
	IntervalMs   int64         `json:"intervalMs"`
	TicksEmitted uint64        `json:"beatCount"`
	LastTick     time.Time     `json:"lastBeat,omitempty"`
}
