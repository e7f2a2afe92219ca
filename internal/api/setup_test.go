package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"xyron.node/xyn/internal/bridge"
	"xyron.node/xyn/internal/index"
	"xyron.node/xyn/internal/ledger"
	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/store"
	"xyron.node/xyn/internal/types"
)

// mockAuthority implements Authority for testing
type mockAuthority struct {
	resp    *bridge.Response
	err     error
	healthy bool
	calls   []string
}

func (m *mockAuthority) Validate(_ context.Context, participantID, message string) (*bridge.Response, error) {
	m.calls = append(m.calls, participantID+"|"+message)
	return m.resp, m.err
}

func (m *mockAuthority) HealthCheck(context.Context) bool { return m.healthy }

type mockHeartbeat struct{ running bool }

func (m mockHeartbeat) Status() types.HeartbeatStatus {
	return types.HeartbeatStatus{Running: m.running, Interval: 180 * time.Second}
}

type fixture struct {
	svc       *Service
	engine    *ledger.Engine
	authority *mockAuthority
	index     *index.Store
}

// setupTest creates a ledger in a temp dir and a service around it
func setupTest(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()

	st := store.New(filepath.Join(dir, "ledger_state.json"), filepath.Join(dir, "history"))
	engine, err := ledger.Open(ledger.Params{
		MaxSupply:       types.Tokens(12_614_400),
		InitialReward:   types.Tokens(36),
		HalvingInterval: 175_200,
		BlockInterval:   180 * time.Second,
		SignaturePrefix: "X11_",
	}, st, ledger.Options{Clock: clock.NewMock()})
	require.NoError(t, err)

	idx, err := index.NewStore(filepath.Join(dir, "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	engine.AddListener(idx)

	auth := &mockAuthority{
		resp:    &bridge.Response{Verified: true, Signature: "X11_SMS_test", Data: []byte(`{"sms_encrypted":"ZW5j"}`)},
		healthy: true,
	}
	svc := NewService(engine, auth, mockHeartbeat{running: true}, idx, nil, logger.New(100, nil), opts)
	return &fixture{svc: svc, engine: engine, authority: auth, index: idx}
}
