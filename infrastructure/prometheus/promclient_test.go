package promclient

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	FramesTotal.WithLabelValues("ticker").Inc()
	DroppedDepthUpdatesTotal.WithLabelValues("outdated").Add(2)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `marketsync_frames_total{kind="ticker"}`)
	assert.Contains(t, string(body), `marketsync_dropped_depth_updates_total{reason="outdated"} 2`)
	assert.Contains(t, string(body), "marketsync_open_connections")
}

func TestRegistry_IsShared(t *testing.T) {
	assert.Same(t, Registry(), Registry())

	before := testutil.ToFloat64(ReconnectsTotal.WithLabelValues("market"))
	ReconnectsTotal.WithLabelValues("market").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReconnectsTotal.WithLabelValues("market")))
}
