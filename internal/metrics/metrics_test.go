package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xyron.node/xyn/internal/types"
)

func TestBlockMintedUpdatesGauges(t *testing.T) {
	m := New()
	m.BlockMinted(types.Block{
		Header: types.BlockHeader{Height: 3, Supply: types.Tokens(72), HadActivity: true, ParticipantCount: 2},
		Vault:  types.Vault{MessageCount: 4},
	})
	m.BlockMinted(types.Block{Header: types.BlockHeader{Height: 4, Supply: types.Tokens(72)}})
	m.HalvingReached(types.HalvingEvent{ToEpoch: 1})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Height))
	assert.Equal(t, 72.0, testutil.ToFloat64(m.Supply))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HalvingEpoch))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksMinted.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksMinted.WithLabelValues("idle")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MessagesMinted))
}

func TestObserversAndHandler(t *testing.T) {
	m := New()
	m.ObserveAuthorityRequest("timeout", 5*time.Second)
	m.ObserveAdmission(types.AdmitOutcome{Admitted: false})
	m.ObserveHTTP("/tokenomics", 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorityCalls.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Admissions.WithLabelValues("rejected")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "xyn_authority_requests_total")
	assert.Contains(t, string(body), "xyn_http_requests_total")
}
