package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xyron.node/xyn/internal/store"
	"xyron.node/xyn/internal/types"
)

func newTestIndex(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBlock(h uint64, participants ...string) types.Block {
	b := types.Block{
		Header: types.BlockHeader{
			Height:           h,
			Timestamp:        time.Date(2025, 1, 1, 0, 0, int(h), 0, time.UTC),
			Reward:           types.Tokens(36),
			ParticipantCount: len(participants),
			HadActivity:      len(participants) > 0,
			Supply:           types.Tokens(36 * h),
		},
		Rewards: types.BlockRewards{Total: types.Tokens(36), Participants: participants},
	}
	if len(participants) > 0 {
		b.Rewards.PerParticipant = 36 / float64(len(participants))
		b.Vault = types.Vault{
			MessageCount: 1,
			Messages:     []types.PendingMessage{{Participant: participants[0], Text: "hi", SignatureToken: "X11_1"}},
		}
	}
	return b
}

func TestParticipantSummary(t *testing.T) {
	s := newTestIndex(t)
	s.BlockMinted(sampleBlock(1, "wallet_a", "wallet_b"))
	s.BlockMinted(sampleBlock(2, "wallet_a"))
	s.BlockMinted(sampleBlock(3))

	sum, err := s.Participant("wallet_a")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Blocks)
	assert.InDelta(t, 54.0, sum.TotalReward, 1e-9)
	assert.Equal(t, 2, sum.Messages)
	assert.Equal(t, uint64(1), sum.FirstHeight)
	assert.Equal(t, uint64(2), sum.LastHeight)

	sum, err = s.Participant("wallet_b")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Blocks)
	assert.Equal(t, 0, sum.Messages)

	_, err = s.Participant("wallet_zzz")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestInsertIsIdempotent(t *testing.T) {
	s := newTestIndex(t)
	require.NoError(t, s.Insert(sampleBlock(1, "wallet_a")))
	require.NoError(t, s.Insert(sampleBlock(1, "wallet_a")))

	sum, err := s.Participant("wallet_a")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Blocks)
	assert.Equal(t, 1, sum.Messages)
}

func TestHalvings(t *testing.T) {
	s := newTestIndex(t)
	s.HalvingReached(types.HalvingEvent{Height: 8, FromEpoch: 1, ToEpoch: 2, BaseReward: types.Tokens(9)})
	s.HalvingReached(types.HalvingEvent{Height: 4, FromEpoch: 0, ToEpoch: 1, BaseReward: types.Tokens(18)})

	evs, err := s.Halvings()
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, uint64(4), evs[0].Height)
	assert.Equal(t, types.Tokens(9), evs[1].BaseReward)
	assert.Equal(t, "4.5", (evs[1].BaseReward / 2).String())
}

func TestCatchUpFillsGaps(t *testing.T) {
	dir := t.TempDir()
	files := store.New(filepath.Join(dir, "state.json"), filepath.Join(dir, "history"))
	require.NoError(t, files.EnsureDirs())
	for h := uint64(1); h <= 5; h++ {
		require.NoError(t, files.Commit(sampleBlock(h, "wallet_a"), types.LedgerState{Height: h}))
	}

	s := newTestIndex(t)
	require.NoError(t, s.Insert(sampleBlock(2, "wallet_a")))

	n, err := s.CatchUp(context.Background(), files, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	have, err := s.IndexedHeights()
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{1: true, 2: true, 3: true, 4: true}, have)

	n, err = s.CatchUp(context.Background(), files, 4)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosedIndexRejectsWrites(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.NotPanics(t, func() {
		s.BlockMinted(sampleBlock(1, "wallet_a"))
		s.HalvingReached(types.HalvingEvent{Height: 4, ToEpoch: 1})
	})
	assert.ErrorIs(t, s.Insert(sampleBlock(1, "wallet_a")), ErrClosed)
	assert.ErrorIs(t, s.InsertHalving(types.HalvingEvent{Height: 4}), ErrClosed)
	_, err = s.Participant("wallet_a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Halvings()
	assert.ErrorIs(t, err, ErrClosed)
}
