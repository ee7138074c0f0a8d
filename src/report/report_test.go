package report

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/p2pbackup/transferviz/src/analysis"
	"github.com/p2pbackup/transferviz/src/metrics"
)

type fakeSeries map[string][]float64

func (f fakeSeries) Has(name string) bool { _, ok := f[name]; return ok }

func (f fakeSeries) Floats(name string) ([]float64, error) {
	v, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("series %q not present", name)
	}
	return v, nil
}

func writeAndDecode(t *testing.T, rec *metrics.Record, outPath string) (w, h int) {
	t.Helper()
	counts := analysis.CountByNode(rec.Transfers)
	sum := analysis.Summarize(rec)
	if err := Write(rec, counts, sum, outPath); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestWriteBareRecord(t *testing.T) {
	// No transfers, no optional series: still one image with a stats panel.
	rec := &metrics.Record{Meta: metrics.Metadata{TotalNodes: 0, SimulationEndTime: 0}}
	out := filepath.Join(t.TempDir(), "plot.png")
	w, h := writeAndDecode(t, rec, out)
	if w != panelWidth || h != titleBand+3*panelHeight {
		t.Fatalf("figure size = %dx%d want %dx%d", w, h, panelWidth, titleBand+3*panelHeight)
	}
}

func TestWriteSingleMode(t *testing.T) {
	rec := &metrics.Record{
		Meta: metrics.Metadata{TotalNodes: 3, SimulationEndTime: 30 * 86400},
		Transfers: []metrics.Transfer{
			{Time: 86400, Type: "full", Duration: 100, Uploader: "A", Downloader: "B"},
			{Time: 2 * 86400, Type: "partial", Duration: 50, Uploader: "B", Downloader: "C"},
			{Time: 3 * 86400, Type: "full", Duration: 80, Uploader: "A", Downloader: "C"},
		},
	}
	out := filepath.Join(t.TempDir(), "single.png")
	w, h := writeAndDecode(t, rec, out)
	if w != panelWidth || h != titleBand+3*panelHeight {
		t.Fatalf("figure size = %dx%d", w, h)
	}
}

func TestWriteParallelModeWithOverlay(t *testing.T) {
	rec := &metrics.Record{
		Meta: metrics.Metadata{ParallelEnabled: true, TotalNodes: 2, SimulationEndTime: 10 * 86400},
		Transfers: []metrics.Transfer{
			{Time: 1000, Type: "full", Duration: 10, Uploader: "n1", Downloader: "n2"},
			{Time: 2000, Type: "full", Duration: 10, Uploader: "n2", Downloader: "n1"},
		},
		Raw: fakeSeries{
			"sim_times":     {500, 1500, 2500},
			"sim_uploads":   {1, 2, 0},
			"sim_downloads": {1, 1, 0},
		},
	}
	out := filepath.Join(t.TempDir(), "parallel.png")
	if w, h := writeAndDecode(t, rec, out); w == 0 || h == 0 {
		t.Fatalf("empty figure")
	}
}

func TestWriteSingleTransfer(t *testing.T) {
	// One completion exercises the single-point padding path.
	rec := &metrics.Record{
		Meta: metrics.Metadata{TotalNodes: 2, SimulationEndTime: 86400},
		Transfers: []metrics.Transfer{
			{Time: 3600, Type: "full", Duration: 10, Uploader: "A", Downloader: "B"},
		},
	}
	out := filepath.Join(t.TempDir(), "one.png")
	if w, h := writeAndDecode(t, rec, out); w == 0 || h == 0 {
		t.Fatalf("empty figure")
	}
}

func TestWriteOverwritesExisting(t *testing.T) {
	out := filepath.Join(t.TempDir(), "plot.png")
	if err := os.WriteFile(out, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	rec := &metrics.Record{Meta: metrics.Metadata{TotalNodes: 1, SimulationEndTime: 100}}
	if w, h := writeAndDecode(t, rec, out); w == 0 || h == 0 {
		t.Fatalf("empty figure")
	}
}

func TestCumulativeSeries(t *testing.T) {
	transfers := []metrics.Transfer{
		{Time: 0, Type: "a", Uploader: "X", Downloader: "Y"},
		{Time: 86400, Type: "b", Uploader: "Y", Downloader: "X"},
		{Time: 3 * 86400, Type: "c", Uploader: "X", Downloader: "Z"},
	}
	xs, ys := cumulativeSeries(transfers)
	wantXs := []float64{0, 1, 3}
	wantYs := []float64{1, 2, 3}
	for i := range transfers {
		if xs[i] != wantXs[i] || ys[i] != wantYs[i] {
			t.Fatalf("sample %d = (%v, %v) want (%v, %v)", i, xs[i], ys[i], wantXs[i], wantYs[i])
		}
	}
}

func TestComma(t *testing.T) {
	cases := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-1234:   "-1,234",
	}
	for n, want := range cases {
		if got := comma(n); got != want {
			t.Fatalf("comma(%d) = %q want %q", n, got, want)
		}
	}
}
