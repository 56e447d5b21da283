package raspiaprs

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveTransmit(t *testing.T) {
	var m = NewMetrics()

	m.ObserveTransmit(Transmission{Kind: KindPosition})
	m.ObserveTransmit(Transmission{Kind: KindPosition})
	m.ObserveTransmit(Transmission{Kind: KindStatus, Err: errors.New("x")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sent.WithLabelValues("position")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sent.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("status")))

	m.IncConnectAttempts()
	m.SetRate(60)
	m.SetSequence(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectAttempts))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.rate))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.sequence))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveTransmit(Transmission{Kind: KindPosition})
		m.IncConnectAttempts()
		m.SetRate(1)
		m.SetSequence(1)
	})
}

func TestMetricsHandler(t *testing.T) {
	var m = NewMetrics()
	m.SetSequence(7)

	var srv = httptest.NewServer(m.Handler())
	defer srv.Close()

	var resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body, _ = io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "raspiaprs_sequence 7"), string(body))
}

func TestSchedulerUpdatesMetrics(t *testing.T) {
	var m = NewMetrics()
	var s, _ = newTestScheduler(t, SchedulerOptions{}, SchedulerDeps{
		Metrics:   m,
		Observers: []TransmitObserver{m},
	})

	s.Tick(t.Context())

	assert.Equal(t, 600.0, testutil.ToFloat64(m.rate))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sequence))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sent.WithLabelValues("header")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sent.WithLabelValues("status")))
}
