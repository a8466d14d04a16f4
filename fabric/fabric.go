// Package fabric implements the two-level (data-center/server) load
// model the MainServerSwitch's DNS handler consults: configured target
// weights, telemetry-derived active weights, and the gap-weighted
// random selection between them (spec §3–§4.6). It has no dependency
// on openflow or packet so it can be tested as plain data, the way the
// teacher keeps ovs.Flow/ovs.Match marshaling free of any dependency on
// exec.Cmd.
package fabric

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// ServiceName is the one hostname this fabric answers authoritatively,
// per spec §6.
const ServiceName = "service.psik.com"

// TelemetryPort is the UDP port backend servers report load on, per
// spec §6.
const TelemetryPort = 9999

// saturationEscape is the constant bias added to every gap weight so a
// perfectly saturated tier still has a strictly positive selection
// probability (spec §4.6).
const saturationEscape = 0.01

// BalanceMode selects which telemetry channel drives load recomputation.
type BalanceMode int

// Balance modes, per spec §3.
const (
	BalanceStatic BalanceMode = iota
	BalanceDynamicCPU
	BalanceDynamicNet
)

func (m BalanceMode) String() string {
	switch m {
	case BalanceStatic:
		return "static"
	case BalanceDynamicCPU:
		return "dynamic-cpu"
	case BalanceDynamicNet:
		return "dynamic-net"
	default:
		return "unknown"
	}
}

// ErrShapeMismatch is returned by New when the server-weight rows don't
// match the data-center count, or any row is empty.
var ErrShapeMismatch = errors.New("fabric: server weight rows must be non-empty and match data center count")

// ErrServerOutOfRange is returned by Ingest when the derived (dc, srv)
// indices fall outside the configured shape — spec §9's "should
// validate ranges and log on out-of-range".
var ErrServerOutOfRange = errors.New("fabric: telemetry report addresses an out-of-range data center or server")

// Config is the static configuration of a Fabric: the target weights
// and the balance mode that decides whether they are ever deviated
// from.
type Config struct {
	// DCWeights is the configured target_dc_load, one entry per data
	// center. Need not sum to 1; New normalizes it.
	DCWeights []float64
	// ServerWeights is the configured target_srv_load, one row per
	// data center. Each row need not sum to 1; New normalizes it.
	ServerWeights [][]float64
	Mode          BalanceMode
}

// Fabric holds the full load model for one MainServerSwitch: configured
// targets, observed actives, and the in-flight telemetry accumulator.
// All mutable state is guarded by mu, because (per spec §5 and
// SPEC_FULL §5) telemetry from distinct data-center connections can
// race on the single MainServerSwitch instance even though each
// switch's own per-connection state needs no lock.
type Fabric struct {
	mu sync.Mutex

	mode BalanceMode

	dcTarget  []float64
	srvTarget [][]float64

	dcActive  []float64
	srvActive [][]float64

	wip          [][][2]uint64 // wip[dc][srv] = {cpu_since_last, bytes_since_last}
	infoReceived map[string]struct{}
	totalServers int

	metrics *Metrics
}

// New validates cfg and returns a Fabric with active loads at zero, as
// required by spec §3.
func New(cfg Config) (*Fabric, error) {
	nDC := len(cfg.DCWeights)
	if nDC == 0 {
		return nil, fmt.Errorf("%w: no data centers configured", ErrShapeMismatch)
	}
	if len(cfg.ServerWeights) != nDC {
		return nil, fmt.Errorf("%w: %d data centers, %d server-weight rows", ErrShapeMismatch, nDC, len(cfg.ServerWeights))
	}

	f := &Fabric{
		mode:         cfg.Mode,
		dcTarget:     normalize(cfg.DCWeights),
		dcActive:     make([]float64, nDC),
		srvTarget:    make([][]float64, nDC),
		srvActive:    make([][]float64, nDC),
		wip:          make([][][2]uint64, nDC),
		infoReceived: make(map[string]struct{}),
	}

	for i, row := range cfg.ServerWeights {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: data center %d has no servers", ErrShapeMismatch, i)
		}
		f.srvTarget[i] = normalize(row)
		f.srvActive[i] = make([]float64, len(row))
		f.wip[i] = make([][2]uint64, len(row))
		f.totalServers += len(row)
	}

	return f, nil
}

// SetMetrics attaches Prometheus gauges that Ingest and load
// recomputation keep current.
// Optional; a Fabric with no metrics attached behaves identically.
func (f *Fabric) SetMetrics(m *Metrics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = m
}

// normalize rescales weights to sum to 1, tolerating configurations
// that don't (spec §3: "sum == 1.0 by configuration contract; the code
// tolerates other sums by normalizing"). A zero-sum input is returned
// unchanged rather than divided by zero; ChooseServer's saturation
// escape still gives each of its entries a small positive weight.
func normalize(weights []float64) []float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	if total <= 0 {
		copy(out, weights)
		return out
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}

// NumDataCenters returns the configured data center count.
func (f *Fabric) NumDataCenters() int { return len(f.dcTarget) }

// NumServers returns the configured server count of data center dc.
func (f *Fabric) NumServers(dc int) int { return len(f.srvTarget[dc]) }

// Ingest records one telemetry report from data center dc, server srv,
// identified by srcIP (used only for info-received deduplication, per
// spec §4.5 — indexing itself is by port/last-octet, not by validating
// srcIP against anything). It returns whether this report triggered a
// recompute.
func (f *Fabric) Ingest(dc, srv int, srcIP string, cpu, bytes uint64) (recomputed bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dc < 0 || dc >= len(f.wip) || srv < 0 || srv >= len(f.wip[dc]) {
		return false, fmt.Errorf("%w: dc=%d srv=%d", ErrServerOutOfRange, dc, srv)
	}

	f.wip[dc][srv] = [2]uint64{cpu, bytes}
	f.infoReceived[srcIP] = struct{}{}

	if len(f.infoReceived) < f.totalServers {
		if f.metrics != nil {
			f.metrics.waiting.Set(float64(len(f.infoReceived)))
		}
		return false, nil
	}

	f.recomputeLocked()
	f.infoReceived = make(map[string]struct{})
	if f.metrics != nil {
		f.metrics.waiting.Set(0)
	}
	return true, nil
}

// channelIndex returns which element of the (cpu, bytes) wip tuple
// drives recomputation for the fabric's balance mode, and whether
// recomputation should happen at all (false for BalanceStatic).
func (m BalanceMode) channelIndex() (idx int, active bool) {
	switch m {
	case BalanceDynamicCPU:
		return 0, true
	case BalanceDynamicNet:
		return 1, true
	default:
		return 0, false
	}
}

// recomputeLocked implements spec §4.5's recompute_load(): per-DC sums
// of the selected telemetry channel, normalized into active_srv_load
// and active_dc_load. Callers must hold f.mu.
func (f *Fabric) recomputeLocked() {
	channel, active := f.mode.channelIndex()
	if !active {
		return
	}

	dcSums := make([]float64, len(f.wip))
	for dc, servers := range f.wip {
		var dcSum float64
		for _, s := range servers {
			dcSum += float64(s[channel])
		}
		dcSums[dc] = dcSum

		for srv, s := range servers {
			if dcSum > 0 {
				f.srvActive[dc][srv] = float64(s[channel]) / dcSum
			} else {
				f.srvActive[dc][srv] = 0
			}
		}
	}

	var total float64
	for _, s := range dcSums {
		total += s
	}
	for dc, s := range dcSums {
		if total > 0 {
			f.dcActive[dc] = s / total
		} else {
			f.dcActive[dc] = 0
		}
	}

	if f.metrics != nil {
		f.metrics.observe(f.dcActive, f.srvActive, len(f.infoReceived))
	}
}

// gap implements spec §4.6's gap(target, active) = max(0, target -
// active) + saturationEscape.
func gap(target, active float64) float64 {
	diff := target - active
	if diff < 0 {
		diff = 0
	}
	return diff + saturationEscape
}

// weightedChoice draws an index from weights by inverse-CDF over a
// uniform draw on [0, sum(weights)), returning the first index whose
// running prefix sum meets or exceeds the draw — spec §4.6's
// documented tie-break (lower index wins on an exact boundary hit).
func weightedChoice(weights []float64, rng *rand.Rand) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}

	r := rng.Float64() * total
	var upto float64
	for i, w := range weights {
		upto += w
		if upto >= r {
			return i
		}
	}
	return len(weights) - 1
}

// ChooseServer runs the two-level gap-weighted selection of spec §4.6
// and returns the chosen (dc, srv) indices. rng must not be shared
// across goroutines without external synchronization (a *rand.Rand is
// not itself safe for concurrent use); callers that need determinism
// in tests pass a seeded rng.
func (f *Fabric) ChooseServer(rng *rand.Rand) (dc, srv int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dcWeights := make([]float64, len(f.dcTarget))
	for i := range dcWeights {
		dcWeights[i] = gap(f.dcTarget[i], f.dcActive[i])
	}
	dc = weightedChoice(dcWeights, rng)

	srvWeights := make([]float64, len(f.srvTarget[dc]))
	for i := range srvWeights {
		srvWeights[i] = gap(f.srvTarget[dc][i], f.srvActive[dc][i])
	}
	srv = weightedChoice(srvWeights, rng)

	return dc, srv
}

// ActiveDCLoad returns a copy of the current active_dc_load vector, for
// tests and metrics.
func (f *Fabric) ActiveDCLoad() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.dcActive))
	copy(out, f.dcActive)
	return out
}

// ActiveServerLoad returns a copy of active_srv_load[dc], for tests and
// metrics.
func (f *Fabric) ActiveServerLoad(dc int) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.srvActive[dc]))
	copy(out, f.srvActive[dc])
	return out
}
