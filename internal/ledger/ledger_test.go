package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xyron.node/xyn/internal/store"
	"xyron.node/xyn/internal/types"
)

var defaultParams = Params{
	MaxSupply:       types.Tokens(12_614_400),
	InitialReward:   types.Tokens(36),
	HalvingInterval: 175_200,
	BlockInterval:   180 * time.Second,
	SignaturePrefix: "X11_",
}

type recordingListener struct {
	mu       sync.Mutex
	blocks   []types.Block
	halvings []types.HalvingEvent
}

func (r *recordingListener) BlockMinted(b types.Block) {
	r.mu.Lock()
	r.blocks = append(r.blocks, b)
	r.mu.Unlock()
}

func (r *recordingListener) HalvingReached(ev types.HalvingEvent) {
	r.mu.Lock()
	r.halvings = append(r.halvings, ev)
	r.mu.Unlock()
}

func newTestEngine(t *testing.T, params Params) (*Engine, *store.Store, *recordingListener) {
	t.Helper()
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "ledger_state.json"), filepath.Join(dir, "history"))
	rec := &recordingListener{}
	e, err := Open(params, st, Options{Clock: clock.NewMock(), Listeners: []Listener{rec}})
	require.NoError(t, err)
	return e, st, rec
}

func mint(t *testing.T, e *Engine) types.Block {
	t.Helper()
	b, err := e.MintBlock(context.Background())
	require.NoError(t, err)
	return b
}

func TestFirstBlockWithOneParticipant(t *testing.T) {
	e, _, rec := newTestEngine(t, defaultParams)

	out := e.Admit("wallet_0001", "", "X11_VAL_abc")
	require.True(t, out.Admitted)

	b := mint(t, e)
	assert.Equal(t, uint64(1), b.Header.Height)
	assert.Equal(t, types.Tokens(36), b.Header.Reward)
	assert.Equal(t, 1, b.Header.ParticipantCount)
	assert.True(t, b.Header.HadActivity)
	assert.Equal(t, types.Tokens(36), b.Header.Supply)
	assert.Equal(t, 36.0, b.Rewards.PerParticipant)
	assert.Equal(t, []string{"wallet_0001"}, b.Rewards.Participants)

	require.Len(t, rec.blocks, 1)
	assert.Equal(t, b, rec.blocks[0])
	assert.Empty(t, rec.halvings)
}

func TestIdleBlockAtHalvingBoundary(t *testing.T) {
	e, st, rec := newTestEngine(t, defaultParams)
	require.NoError(t, st.SaveState(types.LedgerState{Height: 175_200, Supply: types.Tokens(6_307_200)}))
	e, err := Open(defaultParams, st, Options{Clock: clock.NewMock(), Listeners: []Listener{rec}})
	require.NoError(t, err)

	b := mint(t, e)
	assert.Equal(t, uint64(175_201), b.Header.Height)
	assert.Equal(t, types.Amount(0), b.Header.Reward)
	assert.False(t, b.Header.HadActivity)
	assert.Equal(t, types.Tokens(6_307_200), b.Header.Supply)

	require.Len(t, rec.halvings, 1)
	assert.Equal(t, types.HalvingEvent{Height: 175_201, FromEpoch: 0, ToEpoch: 1, BaseReward: types.Tokens(18)}, rec.halvings[0])
	assert.Equal(t, uint64(1), e.State().LastHalvingEpoch)
}

func TestHalvingReward(t *testing.T) {
	params := defaultParams
	params.HalvingInterval = 4
	e, _, _ := newTestEngine(t, params)

	var rewards []types.Amount
	for i := 0; i < 9; i++ {
		e.Admit("wallet_0001", "", "")
		rewards = append(rewards, mint(t, e).Header.Reward)
	}
	// Heights 1..9 with epochs 0,0,0,1,1,1,1,2,2.
	tok := types.Tokens
	assert.Equal(t, []types.Amount{tok(36), tok(36), tok(36), tok(18), tok(18), tok(18), tok(18), tok(9), tok(9)}, rewards)
	assert.Equal(t, uint64(2), e.State().LastHalvingEpoch)
}

func TestThirdHalvingPaysFractionalReward(t *testing.T) {
	e, st, rec := newTestEngine(t, defaultParams)
	// Epoch 0 covers heights 1..175199, epochs 1 and 2 a full interval each.
	supply := types.Tokens(36*175_199 + 18*175_200 + 9*175_200)
	require.NoError(t, st.SaveState(types.LedgerState{Height: 525_599, Supply: supply, LastHalvingEpoch: 2}))
	e, err := Open(defaultParams, st, Options{Clock: clock.NewMock(), Listeners: []Listener{rec}})
	require.NoError(t, err)

	e.Admit("wallet_0001", "", "")
	b := mint(t, e)
	assert.Equal(t, uint64(525_600), b.Header.Height)
	assert.Equal(t, types.Amount(450_000_000), b.Header.Reward)
	assert.Equal(t, "4.5", b.Header.Reward.String())
	assert.Equal(t, supply+types.Amount(450_000_000), b.Header.Supply)
	assert.Equal(t, 4.5, b.Rewards.PerParticipant)
	require.Len(t, rec.halvings, 1)
	assert.Equal(t, uint64(3), rec.halvings[0].ToEpoch)
}

func TestHalvingSeriesApproachesMaxSupply(t *testing.T) {
	p := defaultParams
	var total types.Amount
	for epoch := uint64(0); epoch < 64; epoch++ {
		total += baseReward(p.InitialReward, epoch) * types.Amount(p.HalvingInterval)
		if epoch == 10 {
			// 36 tokens carry ten factors of two: the first eleven epochs are exact.
			assert.Equal(t, types.Amount(1_260_824_062_500_000), total)
		}
	}
	assert.Equal(t, types.Amount(1_261_439_997_897_600), total)
	assert.LessOrEqual(t, total, p.MaxSupply)
	assert.Less(t, p.MaxSupply-total, types.BaseUnitsPerToken/10)
	assert.Equal(t, types.Amount(0), baseReward(p.InitialReward, 32))
}

func TestStatsForSaturatesSupplyLeft(t *testing.T) {
	params := defaultParams
	params.MaxSupply = types.Tokens(100)
	s := StatsFor(params, types.LedgerState{Height: 10, Supply: types.Tokens(360)})
	assert.Equal(t, types.Amount(0), s.SupplyLeft)
	assert.Equal(t, types.Amount(0), s.CurrentReward)
	assert.Equal(t, 360.0, s.SupplyPercentage)
}

func TestSupplyIsClampedAtMax(t *testing.T) {
	params := defaultParams
	params.MaxSupply = types.Tokens(100)
	e, _, _ := newTestEngine(t, params)

	var last types.Amount
	for i := 0; i < 5; i++ {
		e.Admit("wallet_0001", "", "")
		b := mint(t, e)
		assert.GreaterOrEqual(t, b.Header.Supply, last)
		assert.LessOrEqual(t, b.Header.Supply, types.Tokens(100))
		last = b.Header.Supply
	}
	assert.Equal(t, types.Tokens(100), e.State().Supply)

	// Activity is still recorded once the cap is reached.
	e.Admit("wallet_0002", "hello", "X11_SMS_x")
	b := mint(t, e)
	assert.Equal(t, types.Amount(0), b.Header.Reward)
	assert.True(t, b.Header.HadActivity)
	assert.Equal(t, 1, b.Header.ParticipantCount)
	assert.Equal(t, 0.0, b.Rewards.PerParticipant)
	assert.Equal(t, types.Amount(0), e.Stats().CurrentReward)
}

func TestActivityCountsAndReset(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultParams)

	e.Admit("wallet_a", "one", "X11_1")
	e.Admit("wallet_b", "two", "X11_2")
	e.Admit("wallet_a", "three", "X11_3")
	e.Admit("wallet_c", "", "X11_4")

	s := e.Stats()
	assert.Equal(t, 3, s.ActiveParticipants)
	assert.Equal(t, 3, s.PendingMessages)
	assert.Equal(t, 4, s.ValidationCount)
	assert.Equal(t, types.StatusActive, s.Status)

	b := mint(t, e)
	assert.Equal(t, 3, b.Header.ParticipantCount)
	assert.Equal(t, 3, b.Vault.MessageCount)
	assert.Equal(t, []string{"wallet_a", "wallet_b", "wallet_c"}, b.Rewards.Participants)
	assert.Equal(t, "three", b.Vault.Messages[2].Text)
	assert.Equal(t, 12.0, b.Rewards.PerParticipant)

	s = e.Stats()
	assert.Zero(t, s.ActiveParticipants)
	assert.Zero(t, s.PendingMessages)
	assert.Zero(t, s.ValidationCount)
	assert.Equal(t, types.StatusIdle, s.Status)
}

func TestAdmitRejections(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultParams)

	cases := []struct {
		name, participant, message, signature, reason string
	}{
		{"message without signature", "wallet_a", "hi", "", types.ReasonMissingSignature},
		{"wrong prefix", "wallet_a", "hi", "ZZ_1", types.ReasonInvalidSignature},
		{"wrong prefix without message", "wallet_a", "", "ZZ_1", types.ReasonInvalidSignature},
		{"blank participant", " ", "", "X11_1", types.ReasonEmptyParticipant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Admit(tc.participant, tc.message, tc.signature)
			assert.False(t, out.Admitted)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, types.StatusIdle, out.Status)
		})
	}

	b := mint(t, e)
	assert.False(t, b.Header.HadActivity)
	assert.Zero(t, b.Vault.MessageCount)
}

func TestPersistenceFailureKeepsStateAndActivity(t *testing.T) {
	e, st, rec := newTestEngine(t, defaultParams)
	e.Admit("wallet_a", "hi", "X11_1")

	require.NoError(t, os.RemoveAll(st.BlocksDir()))
	require.NoError(t, os.WriteFile(st.BlocksDir(), nil, 0o644))

	_, err := e.MintBlock(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(0), e.State().Height)
	assert.Equal(t, 1, e.Stats().PendingMessages)
	assert.Empty(t, rec.blocks)

	require.NoError(t, os.Remove(st.BlocksDir()))
	b := mint(t, e)
	assert.Equal(t, uint64(1), b.Header.Height)
	assert.Equal(t, 1, b.Vault.MessageCount)
}

func TestStateSurvivesReopen(t *testing.T) {
	e, st, _ := newTestEngine(t, defaultParams)
	e.Admit("wallet_a", "", "")
	mint(t, e)
	mint(t, e)

	reopened, err := Open(defaultParams, st, Options{})
	require.NoError(t, err)
	assert.Equal(t, types.LedgerState{Height: 2, Supply: types.Tokens(36)}, reopened.State())

	b, err := reopened.BlockAt(1)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens(36), b.Header.Reward)

	_, err = reopened.BlockAt(3)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	_, err = reopened.BlockAt(0)
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestHistoryNewestFirst(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultParams)
	for i := 0; i < 5; i++ {
		mint(t, e)
	}
	blocks, err := e.History(3)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, uint64(5), blocks[0].Header.Height)
	assert.Equal(t, uint64(3), blocks[2].Header.Height)
}

func TestStatsProjection(t *testing.T) {
	e, st, _ := newTestEngine(t, defaultParams)
	require.NoError(t, st.SaveState(types.LedgerState{Height: 175_199, Supply: types.Tokens(6_307_164)}))
	e, err := Open(defaultParams, st, Options{})
	require.NoError(t, err)

	s := e.Stats()
	assert.Equal(t, uint64(175_199), s.Height)
	assert.Equal(t, types.Tokens(12_614_400-6_307_164), s.SupplyLeft)
	assert.Equal(t, 50.0, s.SupplyPercentage)
	assert.Equal(t, types.Tokens(36), s.CurrentReward)
	assert.Equal(t, uint64(0), s.HalvingCount)
	assert.Equal(t, uint64(1), s.BlocksUntilHalving)
	assert.Equal(t, int64(180_000), s.BlockTimeMs)
}

func TestOpenRejectsInvalidParams(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "s.json"), filepath.Join(dir, "h"))
	params := defaultParams
	params.HalvingInterval = 0
	_, err := Open(params, st, Options{})
	assert.Error(t, err)
}

func TestConcurrentAdmitDuringMints(t *testing.T) {
	e, _, rec := newTestEngine(t, defaultParams)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Admit("wallet_x", "m", "X11_ok")
		}(i)
	}
	for i := 0; i < 5; i++ {
		mint(t, e)
	}
	wg.Wait()
	mint(t, e)

	total := 0
	for _, b := range rec.blocks {
		total += b.Vault.MessageCount
	}
	assert.Equal(t, 50, total)
	assert.Equal(t, uint64(6), e.State().Height)
}
