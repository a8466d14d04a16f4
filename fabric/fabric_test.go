package fabric

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func twoByTwo(mode BalanceMode) *Fabric {
	f, err := New(Config{
		DCWeights:     []float64{0.5, 0.5},
		ServerWeights: [][]float64{{0.5, 0.5}, {0.5, 0.5}},
		Mode:          mode,
	})
	if err != nil {
		panic(err)
	}
	return f
}

func TestNewRejectsShapeMismatch(t *testing.T) {
	_, err := New(Config{DCWeights: []float64{1}, ServerWeights: [][]float64{}})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = New(Config{DCWeights: []float64{1}, ServerWeights: [][]float64{{}}})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNewNormalizesWeights(t *testing.T) {
	f, err := New(Config{
		DCWeights:     []float64{1, 1, 2},
		ServerWeights: [][]float64{{1}, {1}, {3, 1}},
	})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.25, 0.25, 0.5}, f.dcTarget, 1e-9)
	require.InDeltaSlice(t, []float64{0.75, 0.25}, f.srvTarget[2], 1e-9)
}

func TestIngestOutOfRange(t *testing.T) {
	f := twoByTwo(BalanceDynamicCPU)
	_, err := f.Ingest(5, 0, "10.0.6.1", 1, 1)
	require.ErrorIs(t, err, ErrServerOutOfRange)
	_, err = f.Ingest(0, 5, "10.0.1.6", 1, 1)
	require.ErrorIs(t, err, ErrServerOutOfRange)
}

// TestIngestRecomputesOnlyWhenAllServersHaveReported exercises spec
// §4.5's "recompute only after every configured server has reported
// since the last recompute" rule for a 2x2 fabric.
func TestIngestRecomputesOnlyWhenAllServersHaveReported(t *testing.T) {
	f := twoByTwo(BalanceDynamicCPU)

	recomputed, err := f.Ingest(0, 0, "10.0.1.1", 10, 0)
	require.NoError(t, err)
	require.False(t, recomputed)

	recomputed, err = f.Ingest(0, 1, "10.0.1.2", 30, 0)
	require.NoError(t, err)
	require.False(t, recomputed)

	recomputed, err = f.Ingest(1, 0, "10.0.2.1", 0, 0)
	require.NoError(t, err)
	require.False(t, recomputed)

	recomputed, err = f.Ingest(1, 1, "10.0.2.2", 0, 0)
	require.NoError(t, err)
	require.True(t, recomputed)

	require.InDeltaSlice(t, []float64{1, 0}, f.ActiveDCLoad(), 1e-9)
	require.InDeltaSlice(t, []float64{0.25, 0.75}, f.ActiveServerLoad(0), 1e-9)
}

// TestIngestDedupesBySourceIP covers the same source reporting twice
// before the rest of the fabric has: it must not count as two distinct
// servers toward the recompute threshold.
func TestIngestDedupesBySourceIP(t *testing.T) {
	f := twoByTwo(BalanceDynamicCPU)

	_, err := f.Ingest(0, 0, "10.0.1.1", 1, 0)
	require.NoError(t, err)
	recomputed, err := f.Ingest(0, 0, "10.0.1.1", 2, 0)
	require.NoError(t, err)
	require.False(t, recomputed)
}

// TestStaticModeIgnoresTelemetry covers spec §3's "BalanceStatic never
// deviates from the configured weights regardless of what telemetry
// says" invariant.
func TestStaticModeIgnoresTelemetry(t *testing.T) {
	f := twoByTwo(BalanceStatic)

	for _, report := range []struct {
		dc, srv  int
		ip       string
		cpu, net uint64
	}{
		{0, 0, "10.0.1.1", 100, 100},
		{0, 1, "10.0.1.2", 100, 100},
		{1, 0, "10.0.2.1", 0, 0},
		{1, 1, "10.0.2.2", 0, 0},
	} {
		_, err := f.Ingest(report.dc, report.srv, report.ip, report.cpu, report.net)
		require.NoError(t, err)
	}

	require.Equal(t, []float64{0, 0}, f.ActiveDCLoad())

	rng := rand.New(rand.NewSource(1))
	dcCounts := map[int]int{}
	const trials = 4000
	for i := 0; i < trials; i++ {
		dc, _ := f.ChooseServer(rng)
		dcCounts[dc]++
	}
	// Equal configured weights: both data centers should land close to
	// half the draws. A generous tolerance keeps this from flaking.
	require.InDelta(t, trials/2, dcCounts[0], float64(trials)*0.05)
	require.InDelta(t, trials/2, dcCounts[1], float64(trials)*0.05)
}

// TestDynamicCPUSelfCorrects covers spec §8's headline behavioral
// property: once one data center is reported as fully saturated and
// the other idle, selection should favor the idle one far more often
// than 50/50.
func TestDynamicCPUSelfCorrects(t *testing.T) {
	f := twoByTwo(BalanceDynamicCPU)

	reports := []struct {
		dc, srv  int
		ip       string
		cpu, net uint64
	}{
		{0, 0, "10.0.1.1", 100, 0},
		{0, 1, "10.0.1.2", 100, 0},
		{1, 0, "10.0.2.1", 0, 0},
		{1, 1, "10.0.2.2", 0, 0},
	}
	for _, r := range reports {
		recomputed, err := f.Ingest(r.dc, r.srv, r.ip, r.cpu, r.net)
		require.NoError(t, err)
		_ = recomputed
	}

	require.InDeltaSlice(t, []float64{1, 0}, f.ActiveDCLoad(), 1e-9)

	rng := rand.New(rand.NewSource(42))
	dcCounts := map[int]int{}
	const trials = 4000
	for i := 0; i < trials; i++ {
		dc, _ := f.ChooseServer(rng)
		dcCounts[dc]++
	}

	// target=0.5 for both, active={1,0}: gap(0.5,1)=0.01, gap(0.5,0)=0.51.
	// Data center 1 should win the overwhelming majority of draws.
	require.Greater(t, dcCounts[1], dcCounts[0]*10)
}

// TestDynamicNetUsesSecondChannel guards the documented bug fix: the
// original implementation's DYNAMIC_NET branch duplicated the CPU
// computation; here it must read the bytes channel.
func TestDynamicNetUsesSecondChannel(t *testing.T) {
	f := twoByTwo(BalanceDynamicNet)

	for _, r := range []struct {
		dc, srv  int
		ip       string
		cpu, net uint64
	}{
		{0, 0, "10.0.1.1", 999, 0},
		{0, 1, "10.0.1.2", 999, 0},
		{1, 0, "10.0.2.1", 0, 50},
		{1, 1, "10.0.2.2", 0, 50},
	} {
		_, err := f.Ingest(r.dc, r.srv, r.ip, r.cpu, r.net)
		require.NoError(t, err)
	}

	// The CPU channel puts all load on dc0 (cpu=999 twice, dc1 cpu=0
	// twice) but the NET channel puts all traffic on dc1; DYNAMIC_NET
	// must follow net, not cpu.
	require.InDeltaSlice(t, []float64{0, 1}, f.ActiveDCLoad(), 1e-9)
}

// TestGapAlwaysPositive checks gap over a grid of target/active pairs:
// it is always strictly positive (the saturationEscape term guarantees
// this even at full saturation) and equals max(0, target-active) plus
// saturationEscape.
func TestGapAlwaysPositive(t *testing.T) {
	for _, target := range []float64{0, 0.1, 0.5, 0.9, 1} {
		for _, active := range []float64{0, 0.1, 0.5, 0.9, 1} {
			g := gap(target, active)
			require.Greater(t, g, 0.0)
			if target > active {
				require.InDelta(t, target-active+saturationEscape, g, 1e-9)
			} else {
				require.InDelta(t, saturationEscape, g, 1e-9)
			}
		}
	}
}

func TestWeightedChoiceDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []float64{1, 3}
	const trials = 6000
	counts := make([]int, 2)
	for i := 0; i < trials; i++ {
		counts[weightedChoice(weights, rng)]++
	}
	// Expect roughly a 1:3 split.
	ratio := float64(counts[1]) / float64(counts[0])
	require.InDelta(t, 3.0, ratio, 0.6)
}

func TestChannelIndexMapping(t *testing.T) {
	idx, active := BalanceStatic.channelIndex()
	require.False(t, active)
	_ = idx

	idx, active = BalanceDynamicCPU.channelIndex()
	require.True(t, active)
	require.Equal(t, 0, idx)

	idx, active = BalanceDynamicNet.channelIndex()
	require.True(t, active)
	require.Equal(t, 1, idx)
}

func TestBalanceModeString(t *testing.T) {
	require.Equal(t, "static", BalanceStatic.String())
	require.Equal(t, "dynamic-cpu", BalanceDynamicCPU.String())
	require.Equal(t, "dynamic-net", BalanceDynamicNet.String())
	require.Equal(t, "unknown", BalanceMode(99).String())
}

func TestChooseServerWithinBounds(t *testing.T) {
	f, err := New(Config{
		DCWeights:     []float64{0.2, 0.3, 0.5},
		ServerWeights: [][]float64{{1}, {0.5, 0.5}, {0.2, 0.3, 0.5}},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		dc, srv := f.ChooseServer(rng)
		require.True(t, dc >= 0 && dc < f.NumDataCenters())
		require.True(t, srv >= 0 && srv < f.NumServers(dc))
	}
}

func TestNormalizeZeroSumUnchanged(t *testing.T) {
	out := normalize([]float64{0, 0, 0})
	require.Equal(t, []float64{0, 0, 0}, out)
}

func TestActiveLoadNaNFree(t *testing.T) {
	f := twoByTwo(BalanceDynamicCPU)
	dc := f.ActiveDCLoad()
	for _, v := range dc {
		require.False(t, math.IsNaN(v))
	}
}
