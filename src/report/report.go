// Package report renders the three-panel run analysis figure: transfer
// progress over time, per-node transfer counts, and a summary statistics
// block, stacked into a single PNG.
package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/p2pbackup/transferviz/src/analysis"
	"github.com/p2pbackup/transferviz/src/logging"
	"github.com/p2pbackup/transferviz/src/metrics"
)

const (
	panelWidth  = 1200
	panelHeight = 520
	titleBand   = 40
)

var (
	seaGreen  = drawing.Color{R: 0x2E, G: 0x8B, B: 0x57, A: 255}
	softCoral = drawing.Color{R: 0xFF, G: 0x6B, B: 0x6B, A: 255}
)

// Write renders the full figure for one run and writes it as a PNG to
// outPath, overwriting any existing file.
func Write(rec *metrics.Record, counts analysis.NodeCounts, sum analysis.Summary, outPath string) error {
	var overlayTimes, overlayConc []float64
	hasOverlay := false
	if rec.Meta.ParallelEnabled {
		overlayTimes, overlayConc, hasOverlay = analysis.ConcurrencyOverlay(rec.Raw, analysis.OverlaySampleTarget)
	}

	panels := []image.Image{
		renderProgressPanel(rec.Transfers, overlayTimes, overlayConc, hasOverlay),
		renderNodePanel(counts),
		renderStatsPanel(sum),
	}

	total := image.NewRGBA(image.Rect(0, 0, panelWidth, titleBand+len(panels)*panelHeight))
	draw.Draw(total, total.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	mode := "Single"
	if rec.Meta.ParallelEnabled {
		mode = "Parallel"
	}
	drawCentered(total, panelWidth/2, 26, color.Black, fmt.Sprintf("%s Transfer Mode Analysis (%.2f years)", mode, sum.SimYears))

	for i, p := range panels {
		rect := image.Rect(0, titleBand+i*panelHeight, panelWidth, titleBand+(i+1)*panelHeight)
		draw.Draw(total, rect, p, p.Bounds().Min, draw.Src)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := png.Encode(f, total); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", outPath, err)
	}
	return f.Close()
}

// renderProgressPanel draws cumulative transfers over time in days, with an
// optional concurrency overlay on a secondary y-axis for parallel runs.
func renderProgressPanel(transfers []metrics.Transfer, overlayTimes, overlayConc []float64, hasOverlay bool) image.Image {
	title := fmt.Sprintf("Transfer Progress Over Time - Total: %d transfers", len(transfers))
	if len(transfers) == 0 {
		return notePanel(title, "no transfer completions recorded")
	}

	xs, ys := cumulativeSeries(transfers)
	maxDay := 0.0
	for _, x := range xs {
		if x > maxDay {
			maxDay = x
		}
	}
	// go-chart refuses single-point series; pad like the viewer does.
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1e-3)
		ys = append(ys, ys[0])
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Cumulative Transfers",
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: seaGreen, StrokeWidth: 2},
		},
	}
	var secondary chart.YAxis
	if hasOverlay && len(overlayConc) > 0 {
		oxs := analysis.DaysFromSeconds(overlayTimes)
		oys := overlayConc
		if len(oxs) == 1 {
			oxs = append(oxs, oxs[0]+1e-3)
			oys = append(oys, oys[0])
		}
		maxConc := 0.0
		for _, v := range overlayConc {
			if v > maxConc {
				maxConc = v
			}
		}
		for _, x := range oxs {
			if x > maxDay {
				maxDay = x
			}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "Concurrent Transfers",
			YAxis:   chart.YAxisSecondary,
			XValues: oxs,
			YValues: oys,
			Style: chart.Style{
				StrokeColor:     softCoral,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
		secondary = chart.YAxis{
			Name:  "Concurrent Transfers",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(1, maxConc*1.1)},
		}
		title = fmt.Sprintf("%s | Max Concurrent: %d", title, int(maxConc))
	}

	if maxDay <= 0 {
		maxDay = 1
	}
	ch := chart.Chart{
		Title:      title,
		Width:      panelWidth,
		Height:     panelHeight,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 24}},
		XAxis:      chart.XAxis{Name: "Time (days)", Range: &chart.ContinuousRange{Min: 0, Max: maxDay * 1.02}},
		YAxis: chart.YAxis{
			Name:  "Cumulative Transfers",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(1, float64(len(transfers)))*1.05 + 1},
		},
		YAxisSecondary: secondary,
		Series:         series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return rasterize(&ch, title)
}

// cumulativeSeries maps completions to a time-in-days axis and the running
// count 1..N in stored order. The input is trusted to be time-ordered; no
// re-sort happens here.
func cumulativeSeries(transfers []metrics.Transfer) (xs, ys []float64) {
	xs = make([]float64, len(transfers))
	ys = make([]float64, len(transfers))
	for i, t := range transfers {
		xs[i] = t.Time / (24 * 3600)
		ys[i] = float64(i + 1)
	}
	return xs, ys
}

// renderNodePanel draws the grouped upload/download bars per node, x-axis
// labeled with the sorted node ids at 45 degrees.
func renderNodePanel(counts analysis.NodeCounts) image.Image {
	title := "Transfers per Node (green: uploads, blue: downloads)"
	if len(counts.Nodes) == 0 {
		return notePanel(title, "no per-node activity recorded")
	}

	bars := make([]chart.Value, 0, 2*len(counts.Nodes))
	maxCount := 1.0
	for i, node := range counts.Nodes {
		up := float64(counts.Uploads[i])
		down := float64(counts.Downloads[i])
		if up > maxCount {
			maxCount = up
		}
		if down > maxCount {
			maxCount = down
		}
		bars = append(bars,
			chart.Value{Label: node, Value: up, Style: chart.Style{FillColor: seaGreen, StrokeColor: seaGreen}},
			chart.Value{Label: "", Value: down, Style: chart.Style{FillColor: chart.ColorBlue, StrokeColor: chart.ColorBlue}},
		)
	}

	barWidth := (panelWidth - 150) / len(bars)
	if barWidth > 40 {
		barWidth = 40
	}
	if barWidth < 2 {
		barWidth = 2
	}
	ch := chart.BarChart{
		Title:      title,
		Width:      panelWidth,
		Height:     panelHeight,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 36}},
		BarWidth:   barWidth,
		BarSpacing: 4,
		XAxis:      chart.Style{TextRotationDegrees: 45.0},
		YAxis: chart.YAxis{
			Name:  "Transfer Count",
			Range: &chart.ContinuousRange{Min: 0, Max: maxCount * 1.1},
		},
		Bars: bars,
	}
	return rasterize(ch, title)
}

// renderStatsPanel draws the summary statistics text block.
func renderStatsPanel(sum analysis.Summary) image.Image {
	img := blank(panelWidth, panelHeight)
	drawCentered(img, panelWidth/2, 30, color.Black, "Summary Statistics")

	lines := []string{
		"Simulation Statistics:",
		"",
		fmt.Sprintf("- Total Transfers: %s", comma(sum.TotalTransfers)),
		fmt.Sprintf("- Simulation Time: %.2f years", sum.SimYears),
		fmt.Sprintf("- Total Nodes: %d", sum.TotalNodes),
		fmt.Sprintf("- Avg Transfers/Node: %.1f", sum.AvgTransfersPerNode),
		fmt.Sprintf("- Transfers/Year: %.1f", sum.TransfersPerYear),
		fmt.Sprintf("- Data Loss Events: %d", sum.DataLossEvents),
	}
	if sum.HasConcurrency {
		lines = append(lines,
			fmt.Sprintf("- Max Concurrent: %d", sum.MaxConcurrent),
			fmt.Sprintf("- Avg Concurrent: %.1f", sum.AvgConcurrent),
		)
	}

	const (
		left     = 80
		top      = 80
		lineStep = 22
	)
	// light gray box behind the text, as matplotlib's stats bbox
	box := image.Rect(left-20, top-24, left+420, top+len(lines)*lineStep+8)
	draw.Draw(img, box, image.NewUniform(color.RGBA{R: 0xE4, G: 0xE4, B: 0xE4, A: 255}), image.Point{}, draw.Src)

	for i, line := range lines {
		drawString(img, left, top+i*lineStep, color.Black, line)
	}
	return img
}

// rasterize renders a go-chart renderable to PNG and decodes it back to an
// image, falling back to a labeled blank panel on render errors.
func rasterize(c interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}, title string) image.Image {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		logging.Warnf("chart render failed (%s): %v; using blank panel", title, err)
		return notePanel(title, "chart unavailable")
	}
	img, err := png.Decode(&buf)
	if err != nil {
		logging.Warnf("chart decode failed (%s): %v; using blank panel", title, err)
		return notePanel(title, "chart unavailable")
	}
	return img
}

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func notePanel(title, note string) image.Image {
	img := blank(panelWidth, panelHeight)
	drawCentered(img, panelWidth/2, 30, color.Black, title)
	drawCentered(img, panelWidth/2, panelHeight/2, color.RGBA{R: 120, G: 120, B: 120, A: 255}, note)
	return img
}

func drawString(dst *image.RGBA, x, y int, col color.Color, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCentered(dst *image.RGBA, cx, y int, col color.Color, text string) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: basicfont.Face7x13}
	w := d.MeasureString(text).Ceil()
	d.Dot = fixed.Point26_6{X: fixed.I(cx - w/2), Y: fixed.I(y)}
	d.DrawString(text)
}

// comma formats n with thousands separators.
func comma(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
