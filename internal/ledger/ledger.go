// Package ledger implements the Engine: the persisted economic state machine
// of the node. It admits confirmed activity into the current interval and,
// once per heartbeat tick, mints a block that pays the interval's reward
// under a capped, halving supply schedule.
//
// Mints are serialized with each other. Admit may run while a mint performs
// its pre-commit I/O; the activity set is read and cleared only at the
// commit point, under the same lock that guards the state, so every admitted
// item lands in exactly one block.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"xyron.node/xyn/internal/config"
	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/store"
	"xyron.node/xyn/internal/types"
)

// ErrBlockNotFound is returned by BlockAt for heights that were never
// committed or whose file is missing.
var ErrBlockNotFound = store.ErrBlockNotFound

// Listener receives notifications after a mint commits. Calls happen on the
// minting goroutine, outside the engine's locks, in commit order.
type Listener interface {
	BlockMinted(types.Block)
	HalvingReached(types.HalvingEvent)
}

// Params are the immutable ledger economics.
type Params struct {
	MaxSupply       types.Amount
	InitialReward   types.Amount
	HalvingInterval uint64
	BlockInterval   time.Duration
	SignaturePrefix string
}

// ParamsFromConfig extracts Params from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		MaxSupply:       types.Tokens(cfg.MaxSupply),
		InitialReward:   types.Tokens(cfg.InitialReward),
		HalvingInterval: cfg.HalvingInterval,
		BlockInterval:   cfg.BlockInterval(),
		SignaturePrefix: cfg.SignaturePrefix,
	}
}

func (p Params) validate() error {
	switch {
	case p.MaxSupply == 0:
		return errors.New("max supply must be positive")
	case p.InitialReward == 0:
		return errors.New("initial reward must be positive")
	case p.HalvingInterval == 0:
		return errors.New("halving interval must be positive")
	case p.BlockInterval <= 0:
		return errors.New("block interval must be positive")
	}
	return nil
}

// Options are the optional collaborators of an Engine.
type Options struct {
	Clock     clock.Clock
	Logger    *logger.Logger
	Listeners []Listener
}

// Engine owns the LedgerState and the current interval's activity.
type Engine struct {
	params    Params
	store     *store.Store
	clock     clock.Clock
	logger    *logger.Logger
	listeners []Listener

	// mintMu serializes MintBlock calls.
	mintMu sync.Mutex

	mu       sync.RWMutex
	state    types.LedgerState
	activity *activitySet
}

// Open loads (or bootstraps) the persisted state and returns a ready Engine.
// Any storage failure here is fatal for the caller.
func Open(params Params, st *store.Store, opts Options) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger params: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(64, nil)
	}

	if err := st.EnsureDirs(); err != nil {
		return nil, err
	}
	state, created, err := st.LoadState()
	if err != nil {
		return nil, err
	}
	if state.Supply > params.MaxSupply {
		return nil, fmt.Errorf("state supply %s exceeds max supply %s", state.Supply, params.MaxSupply)
	}

	e := &Engine{
		params:    params,
		store:     st,
		clock:     opts.Clock,
		logger:    opts.Logger,
		listeners: opts.Listeners,
		state:     state,
		activity:  newActivitySet(),
	}

	if created {
		e.logger.Infof("Genesis state written to %s", st.StateFile())
	}
	moved, err := st.ReconcileOrphans(state.Height)
	if err != nil {
		return nil, err
	}
	if moved > 0 {
		e.logger.Warningf("Quarantined %d uncommitted block file(s) above height %d", moved, state.Height)
	}

	e.logger.Infof("Loaded: block %d, supply %s/%s", state.Height, state.Supply, params.MaxSupply)
	return e, nil
}

// AddListener registers l for future commits. It must be called before the
// heartbeat starts.
func (e *Engine) AddListener(l Listener) {
	e.mintMu.Lock()
	e.listeners = append(e.listeners, l)
	e.mintMu.Unlock()
}

// Params returns the ledger economics.
func (e *Engine) Params() Params {
	return e.params
}

// State returns the committed state.
func (e *Engine) State() types.LedgerState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Admit adds participant to the current interval. An empty message means no
// message; an empty signature means no signature. Rejections are returned as
// outcomes and leave the activity set untouched.
func (e *Engine) Admit(participant, message, signature string) types.AdmitOutcome {
	if strings.TrimSpace(participant) == "" {
		return e.reject(participant, types.ReasonEmptyParticipant)
	}
	if message != "" && signature == "" {
		return e.reject(participant, types.ReasonMissingSignature)
	}
	if signature != "" && !strings.HasPrefix(signature, e.params.SignaturePrefix) {
		return e.reject(participant, types.ReasonInvalidSignature)
	}

	var msg *types.PendingMessage
	if message != "" {
		msg = &types.PendingMessage{
			Participant:    participant,
			Text:           message,
			SignatureToken: signature,
			ReceivedAt:     e.clock.Now().UTC(),
		}
	}

	e.mu.Lock()
	e.activity.add(participant, msg)
	active := len(e.activity.order)
	e.mu.Unlock()

	if msg != nil {
		e.logger.Infof("Message queued from %s | Active: %d | Status: %s", participant, active, types.StatusActive)
	} else {
		e.logger.Infof("Validation from %s | Active: %d | Status: %s", participant, active, types.StatusActive)
	}
	return types.AdmitOutcome{Admitted: true, Status: types.StatusActive}
}

func (e *Engine) reject(participant, reason string) types.AdmitOutcome {
	e.logger.Warningf("Rejected %q: %s | Status: %s", participant, reason, types.StatusIdle)
	return types.AdmitOutcome{Admitted: false, Reason: reason, Status: types.StatusIdle}
}

// MintBlock advances the ledger by exactly one height. On a persistence
// failure nothing changes in memory and the pending activity is kept for the
// next attempt.
func (e *Engine) MintBlock(ctx context.Context) (types.Block, error) {
	e.mintMu.Lock()
	defer e.mintMu.Unlock()

	if err := ctx.Err(); err != nil {
		return types.Block{}, err
	}
	// Admit may proceed while this runs.
	if err := e.store.EnsureDirs(); err != nil {
		e.logger.Errorf("Mint aborted: %v | Status: %s", err, types.StatusFault)
		return types.Block{}, err
	}

	e.mu.Lock()
	block, next, halving := e.prepare(e.clock.Now().UTC())
	if err := e.store.Commit(block, next); err != nil {
		e.mu.Unlock()
		e.logger.Errorf("Block #%d not committed: %v | Status: %s", block.Header.Height, err, types.StatusFault)
		return types.Block{}, fmt.Errorf("commit block %d: %w", block.Header.Height, err)
	}
	e.state = next
	e.activity.reset()
	e.mu.Unlock()

	e.logMint(block, halving)
	e.publish(block, halving)
	return block, nil
}

// prepare computes the next block and state from the committed state and
// the current activity. It mutates nothing.
func (e *Engine) prepare(now time.Time) (types.Block, types.LedgerState, *types.HalvingEvent) {
	prev := e.state
	height := prev.Height + 1
	epoch := halvingEpoch(height, e.params.HalvingInterval)
	base := baseReward(e.params.InitialReward, epoch)

	hadActivity := !e.activity.empty()
	var reward types.Amount
	if hadActivity {
		reward = clampReward(base, prev.Supply, e.params.MaxSupply)
	}

	next := types.LedgerState{
		Height:           height,
		Supply:           prev.Supply + reward,
		LastHalvingEpoch: prev.LastHalvingEpoch,
	}
	var halving *types.HalvingEvent
	if epoch > prev.LastHalvingEpoch {
		halving = &types.HalvingEvent{Height: height, FromEpoch: prev.LastHalvingEpoch, ToEpoch: epoch, BaseReward: base}
		next.LastHalvingEpoch = epoch
	}

	participants, messages := e.activity.snapshot()
	var perParticipant float64
	if len(participants) > 0 {
		perParticipant = reward.Float64() / float64(len(participants))
	}

	block := types.Block{
		Header: types.BlockHeader{
			Height:           height,
			Timestamp:        now,
			Reward:           reward,
			ParticipantCount: len(participants),
			HadActivity:      hadActivity,
			Supply:           next.Supply,
			MaxSupply:        e.params.MaxSupply,
		},
		Rewards: types.BlockRewards{
			Total:          reward,
			PerParticipant: perParticipant,
			Participants:   participants,
		},
		Vault: types.Vault{
			MessageCount: len(messages),
			Messages:     messages,
		},
	}
	return block, next, halving
}

func (e *Engine) logMint(b types.Block, halving *types.HalvingEvent) {
	if halving != nil {
		e.logger.Infof("HALVING at block %d: epoch %d -> %d, base reward now %s", halving.Height, halving.FromEpoch, halving.ToEpoch, halving.BaseReward)
	}
	if b.Header.HadActivity {
		e.logger.Infof("Block #%d minted | Reward: %s | Participants: %d | Messages: %d | Supply: %s/%s | Status: %s",
			b.Header.Height, b.Header.Reward, b.Header.ParticipantCount, b.Vault.MessageCount, b.Header.Supply, b.Header.MaxSupply, types.StatusActive)
		return
	}
	e.logger.Infof("Block #%d minted | Idle interval, no reward | Status: %s", b.Header.Height, types.StatusIdle)
}

func (e *Engine) publish(b types.Block, halving *types.HalvingEvent) {
	for _, l := range e.listeners {
		if halving != nil {
			l.HalvingReached(*halving)
		}
		l.BlockMinted(b)
	}
}

// Stats returns a read-only projection of the ledger.
func (e *Engine) Stats() types.Stats {
	e.mu.RLock()
	state := e.state
	active := len(e.activity.order)
	pending := len(e.activity.messages)
	validations := e.activity.validations
	e.mu.RUnlock()

	st := StatsFor(e.params, state)
	st.ActiveParticipants = active
	st.PendingMessages = pending
	st.ValidationCount = validations
	if active > 0 {
		st.Status = types.StatusActive
	}
	return st
}

// StatsFor projects a committed state with no pending activity.
func StatsFor(p Params, state types.LedgerState) types.Stats {
	epoch := halvingEpoch(state.Height, p.HalvingInterval)
	return types.Stats{
		Height:             state.Height,
		Supply:             state.Supply,
		MaxSupply:          p.MaxSupply,
		SupplyLeft:         supplyLeft(state.Supply, p.MaxSupply),
		SupplyPercentage:   math.Round(float64(state.Supply)/float64(p.MaxSupply)*10000) / 100,
		CurrentReward:      clampReward(baseReward(p.InitialReward, epoch), state.Supply, p.MaxSupply),
		HalvingCount:       epoch,
		BlocksUntilHalving: p.HalvingInterval - state.Height%p.HalvingInterval,
		BlockTimeMs:        p.BlockInterval.Milliseconds(),
		Status:             types.StatusIdle,
	}
}

// History returns up to limit committed blocks, newest first. Missing or
// corrupt block files are skipped.
func (e *Engine) History(limit int) ([]types.Block, error) {
	blocks, err := e.store.ListBlocks(limit)
	if err != nil {
		return nil, err
	}
	committed := e.State().Height
	out := blocks[:0]
	for _, b := range blocks {
		if b.Header.Height <= committed {
			out = append(out, b)
		}
	}
	return out, nil
}

// BlockAt returns the committed block at height.
func (e *Engine) BlockAt(height uint64) (types.Block, error) {
	if height == 0 || height > e.State().Height {
		return types.Block{}, ErrBlockNotFound
	}
	return e.store.ReadBlock(height)
}
