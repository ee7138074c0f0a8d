// Package analysis derives the per-node counts, down-sampled series and
// summary scalars that the report panels draw. Everything here is a pure
// function of an already loaded record.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/p2pbackup/transferviz/src/metrics"
)

const (
	// OverlaySampleTarget bounds the points drawn by the concurrency overlay.
	OverlaySampleTarget = 2000
	// SummarySampleTarget bounds the windows behind the summary statistics.
	SummarySampleTarget = 1000

	secondsPerYear = 365.25 * 24 * 3600
	secondsPerDay  = 24 * 3600
)

// NodeCounts holds per-node upload and download totals, aligned to the sorted
// union of node ids seen as uploader or downloader.
type NodeCounts struct {
	Nodes     []string
	Uploads   []int
	Downloads []int
}

// CountByNode tallies how often each node appears as uploader and as
// downloader. Ids are opaque strings; ordering is lexical.
func CountByNode(transfers []metrics.Transfer) NodeCounts {
	uploads := make(map[string]int)
	downloads := make(map[string]int)
	for _, t := range transfers {
		uploads[t.Uploader]++
		downloads[t.Downloader]++
	}

	seen := make(map[string]struct{}, len(uploads)+len(downloads))
	for id := range uploads {
		seen[id] = struct{}{}
	}
	for id := range downloads {
		seen[id] = struct{}{}
	}
	nodes := make([]string, 0, len(seen))
	for id := range seen {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	nc := NodeCounts{
		Nodes:     nodes,
		Uploads:   make([]int, len(nodes)),
		Downloads: make([]int, len(nodes)),
	}
	for i, id := range nodes {
		nc.Uploads[i] = uploads[id]
		nc.Downloads[i] = downloads[id]
	}
	return nc
}

// Stride is the deterministic skip interval that reduces n samples to at most
// roughly target points.
func Stride(n, target int) int {
	if target <= 0 {
		return 1
	}
	s := n / target
	if s < 1 {
		s = 1
	}
	return s
}

// Downsample takes every stride-th sample of xs for the given target count.
func Downsample(xs []float64, target int) []float64 {
	if len(xs) == 0 {
		return nil
	}
	stride := Stride(len(xs), target)
	out := make([]float64, 0, len(xs)/stride+1)
	for i := 0; i < len(xs); i += stride {
		out = append(out, xs[i])
	}
	return out
}

// ConcurrencyOverlay returns the down-sampled concurrency series
// (uploads+downloads per sampled instant) with its time axis in seconds.
// ok is false when the sim_* series are absent or empty.
func ConcurrencyOverlay(raw metrics.SeriesSource, target int) (times, concurrent []float64, ok bool) {
	if raw == nil || !raw.Has("sim_times") {
		return nil, nil, false
	}
	simTimes, err := raw.Floats("sim_times")
	if err != nil || len(simTimes) == 0 {
		return nil, nil, false
	}
	ups, err := raw.Floats("sim_uploads")
	if err != nil {
		return nil, nil, false
	}
	downs, err := raw.Floats("sim_downloads")
	if err != nil {
		return nil, nil, false
	}

	times = Downsample(simTimes, target)
	ups = Downsample(ups, target)
	downs = Downsample(downs, target)
	n := len(times)
	if len(ups) < n {
		n = len(ups)
	}
	if len(downs) < n {
		n = len(downs)
	}
	concurrent = make([]float64, n)
	for i := 0; i < n; i++ {
		concurrent[i] = ups[i] + downs[i]
	}
	return times[:n], concurrent, n > 0
}

// Summary holds the derived scalars shown on the statistics panel.
type Summary struct {
	TotalTransfers      int
	SimYears            float64
	TotalNodes          int
	AvgTransfersPerNode float64
	TransfersPerYear    float64
	DataLossEvents      int
	NodesWithDataLoss   int

	// Bandwidth utilization over the down-sampled bw_* window, in percent.
	UploadUtilizationPct   float64
	DownloadUtilizationPct float64

	// Concurrency figures, present only for parallel runs with sim_* data.
	HasConcurrency bool
	MaxConcurrent  int
	AvgConcurrent  float64
}

// Summarize computes the summary scalars for a run. Rates are guarded so that
// zero nodes or a zero-length simulation read as 0 rather than dividing by
// zero.
func Summarize(rec *metrics.Record) Summary {
	s := Summary{
		TotalTransfers:    len(rec.Transfers),
		SimYears:          rec.Meta.SimulationEndTime / secondsPerYear,
		TotalNodes:        rec.Meta.TotalNodes,
		DataLossEvents:    rec.Meta.DataLossEvents,
		NodesWithDataLoss: rec.Meta.NodesWithDataLoss,
	}
	if s.TotalNodes > 0 {
		s.AvgTransfersPerNode = float64(s.TotalTransfers) / float64(s.TotalNodes)
	}
	if s.SimYears > 0 {
		s.TransfersPerYear = float64(s.TotalTransfers) / s.SimYears
	}

	if raw := rec.Raw; raw != nil && raw.Has("bw_times") {
		if bwTimes, err := raw.Floats("bw_times"); err == nil && len(bwTimes) > 0 {
			s.UploadUtilizationPct = utilizationPct(raw, "bw_upload_used", "bw_upload_capacity", SummarySampleTarget)
			s.DownloadUtilizationPct = utilizationPct(raw, "bw_download_used", "bw_download_capacity", SummarySampleTarget)
		}
	}

	if rec.Meta.ParallelEnabled {
		if _, concurrent, ok := ConcurrencyOverlay(rec.Raw, SummarySampleTarget); ok {
			s.HasConcurrency = true
			max := concurrent[0]
			for _, v := range concurrent[1:] {
				if v > max {
					max = v
				}
			}
			s.MaxConcurrent = int(max)
			s.AvgConcurrent = stat.Mean(concurrent, nil)
		}
	}
	return s
}

// utilizationPct is mean(used/max(capacity,1))*100 over the down-sampled
// window. Capacity is floored at 1 so nodes reporting zero capacity cannot
// divide by zero.
func utilizationPct(raw metrics.SeriesSource, usedName, capName string, target int) float64 {
	used, err := raw.Floats(usedName)
	if err != nil {
		return 0
	}
	capacity, err := raw.Floats(capName)
	if err != nil {
		return 0
	}
	used = Downsample(used, target)
	capacity = Downsample(capacity, target)
	n := len(used)
	if len(capacity) < n {
		n = len(capacity)
	}
	if n == 0 {
		return 0
	}
	ratios := make([]float64, n)
	for i := 0; i < n; i++ {
		c := capacity[i]
		if c < 1 {
			c = 1
		}
		ratios[i] = used[i] / c
	}
	return stat.Mean(ratios, nil) * 100
}

// DaysFromSeconds converts a seconds time axis to days for plotting.
func DaysFromSeconds(seconds []float64) []float64 {
	out := make([]float64, len(seconds))
	for i, v := range seconds {
		out[i] = v / secondsPerDay
	}
	return out
}
