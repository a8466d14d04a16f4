package fabric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus gauges a Fabric reports through on every
// recompute, kept separate from the types that produce the numbers the
// same way ovs.Client keeps its exec invocation counters apart from the
// operations that trigger them.
type Metrics struct {
	dcLoad  *prometheus.GaugeVec
	srvLoad *prometheus.GaugeVec
	waiting prometheus.Gauge
}

// NewMetrics constructs a Metrics and registers it with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dcLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "psik",
			Subsystem: "fabric",
			Name:      "dc_active_load",
			Help:      "Current active_dc_load fraction, by data center index.",
		}, []string{"dc"}),
		srvLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "psik",
			Subsystem: "fabric",
			Name:      "server_active_load",
			Help:      "Current active_srv_load fraction, by data center and server index.",
		}, []string{"dc", "srv"}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "psik",
			Subsystem: "fabric",
			Name:      "telemetry_waiting",
			Help:      "Number of distinct servers reported in since the last recompute.",
		}),
	}

	for _, c := range []prometheus.Collector{m.dcLoad, m.srvLoad, m.waiting} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe overwrites every gauge with the current snapshot. Called with
// the owning Fabric's mutex held.
func (m *Metrics) observe(dcActive []float64, srvActive [][]float64, waiting int) {
	for dc, v := range dcActive {
		m.dcLoad.WithLabelValues(strconv.Itoa(dc)).Set(v)
	}
	for dc, row := range srvActive {
		for srv, v := range row {
			m.srvLoad.WithLabelValues(strconv.Itoa(dc), strconv.Itoa(srv)).Set(v)
		}
	}
	m.waiting.Set(float64(waiting))
}
