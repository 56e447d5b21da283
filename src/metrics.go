package raspiaprs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts what the beacon does.  A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	sent            *prometheus.CounterVec
	failed          *prometheus.CounterVec
	connectAttempts prometheus.Counter
	rate            prometheus.Gauge
	sequence        prometheus.Gauge
}

func NewMetrics() *Metrics {
	var m = &Metrics{
		Registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raspiaprs_packets_sent_total",
			Help: "Packets written to the APRS-IS server.",
		}, []string{"kind"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raspiaprs_packets_failed_total",
			Help: "Packets that could not be written to the APRS-IS server.",
		}, []string{"kind"}),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raspiaprs_connect_attempts_total",
			Help: "Attempts to connect to the APRS-IS server.",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raspiaprs_beacon_rate_seconds",
			Help: "Current seconds between position reports.",
		}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raspiaprs_sequence",
			Help: "Most recent telemetry sequence number.",
		}),
	}

	m.Registry.MustRegister(m.sent, m.failed, m.connectAttempts, m.rate, m.sequence)

	return m
}

func (m *Metrics) ObserveTransmit(tx Transmission) {
	if m == nil {
		return
	}
	if tx.Err != nil {
		m.failed.WithLabelValues(string(tx.Kind)).Inc()
	} else {
		m.sent.WithLabelValues(string(tx.Kind)).Inc()
	}
}

func (m *Metrics) IncConnectAttempts() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) SetRate(seconds int) {
	if m != nil {
		m.rate.Set(float64(seconds))
	}
}

func (m *Metrics) SetSequence(seq int) {
	if m != nil {
		m.sequence.Set(float64(seq))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	var srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("Serving metrics", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
