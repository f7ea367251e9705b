package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hpungsan/souq/internal/market"
	"github.com/hpungsan/souq/internal/table"
)

// Sizes of rendered charts.
const (
	Width        = 12 * vg.Inch
	Height       = 6 * vg.Inch
	SquareWidth  = 10 * vg.Inch
	SquareHeight = 8 * vg.Inch
)

var (
	deficitColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	surplusColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func timeAxis(p *plot.Plot) {
	p.X.Tick.Marker = plot.TimeTicks{Format: market.DayLayout}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
}

func xys(points []Point) plotter.XYs {
	out := make(plotter.XYs, len(points))
	for i, pt := range points {
		out[i].X = float64(pt.Day.Time().Unix())
		out[i].Y = pt.Value
	}
	return out
}

// RangeText formats a day range for titles and file names. Zero bounds
// are open.
func RangeText(from, to market.Day) string {
	switch {
	case from.IsZero() && to.IsZero():
		return "full"
	case from.IsZero():
		return "to_" + to.String()
	case to.IsZero():
		return from.String() + "_on"
	default:
		return from.String() + "_" + to.String()
	}
}

// DailyPlot draws term's series from two tables as lines. b may be empty.
func DailyPlot(term string, names [2]string, a, b []Point, from, to market.Day) (*plot.Plot, error) {
	if len(a) == 0 {
		return nil, errNoData()
	}
	p := newPlot(fmt.Sprintf("%s vs %s: %s (%s)", names[0], names[1], term, RangeText(from, to)), "day", "percent")
	timeAxis(p)

	for i, series := range [][]Point{a, b} {
		if len(series) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(xys(series))
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		if i == 1 {
			line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
			scatter.Shape = draw.BoxGlyph{}
		}
		scatter.Color = plotutil.Color(i)
		p.Add(line, scatter)
		p.Legend.Add(names[i], line, scatter)
	}
	return p, nil
}

// DifferencePlot draws a minus b with deficit days above zero in red and
// surplus days below zero in green.
func DifferencePlot(term string, names [2]string, points []Point, from, to market.Day) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errNoData()
	}
	p := newPlot(fmt.Sprintf("%s minus %s: %s (%s)", names[0], names[1], term, RangeText(from, to)), "day", "difference (%)")
	timeAxis(p)

	line, err := plotter.NewLine(xys(points))
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(2)
	p.Add(line)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.Gray{Y: 128}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(zero)

	var deficit, surplus []Point
	for _, pt := range points {
		switch {
		case pt.Value > 0:
			deficit = append(deficit, pt)
		case pt.Value < 0:
			surplus = append(surplus, pt)
		}
	}
	for _, group := range []struct {
		label  string
		points []Point
		color  color.Color
	}{
		{"deficit", deficit, deficitColor},
		{"surplus", surplus, surplusColor},
	} {
		if len(group.points) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys(group.points))
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = group.color
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(group.label, s)
	}
	return p, nil
}

// SharesPlot draws term shares as bars labelled with their percentage.
func SharesPlot(title string, shares []Share) (*plot.Plot, error) {
	if len(shares) == 0 {
		return nil, errNoData()
	}
	p := newPlot(title, "", "share (%)")

	values := make(plotter.Values, len(shares))
	names := make([]string, len(shares))
	for i, s := range shares {
		values[i] = s.Percent
		names[i] = s.Term
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = draw.XRight
	p.Y.Min = 0

	labels := plotter.XYLabels{}
	for i, s := range shares {
		labels.XYs = append(labels.XYs, plotter.XY{X: float64(i), Y: s.Percent})
		labels.Labels = append(labels.Labels, strconv.FormatFloat(s.Percent, 'f', 1, 64)+"%")
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	p.Add(l)
	return p, nil
}

// correlationGrid adapts a square matrix to plotter.GridXYZ.
type correlationGrid [][]float64

func (g correlationGrid) Dims() (c, r int)   { return len(g), len(g) }
func (g correlationGrid) Z(c, r int) float64 { return g[r][c] }
func (g correlationGrid) X(c int) float64    { return float64(c) }
func (g correlationGrid) Y(r int) float64    { return float64(r) }

// CorrelationPlot draws a correlation matrix as an annotated heatmap.
func CorrelationPlot(title string, terms []string, m [][]float64) (*plot.Plot, error) {
	if len(terms) == 0 {
		return nil, errNoData()
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)
	hm := plotter.NewHeatMap(correlationGrid(m), cmap.Palette(255))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	labels := plotter.XYLabels{}
	for r := range m {
		for c := range m[r] {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			labels.Labels = append(labels.Labels, strconv.FormatFloat(m[r][c], 'f', 2, 64))
		}
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)

	p.NominalX(terms...)
	p.NominalY(terms...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

// MonthlyPlot draws side-by-side bars of two tables per day of the month.
func MonthlyPlot(term string, names [2]string, year int, month time.Month, pairs []Pair) (*plot.Plot, error) {
	if len(pairs) == 0 {
		return nil, errNoData()
	}
	p := newPlot(fmt.Sprintf("%s vs %s: %s, %s %d", names[0], names[1], term, month, year), "day", "percent")

	a := make(plotter.Values, len(pairs))
	b := make(plotter.Values, len(pairs))
	days := make([]string, len(pairs))
	for i, pr := range pairs {
		a[i], b[i] = pr.A, pr.B
		days[i] = strconv.Itoa(pr.Day)
	}

	width := vg.Points(12)
	for i, values := range []plotter.Values{a, b} {
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(2*i-1) * width / 2
		p.Add(bars)
		p.Legend.Add(names[i], bars)
	}
	p.NominalX(days...)
	p.Y.Min = 0
	p.Legend.Top = true
	return p, nil
}

// WritePNG encodes p as PNG.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save writes p as a PNG file, replacing any previous chart atomically.
func Save(p *plot.Plot, path string, width, height vg.Length) error {
	return table.WriteFileAtomic(path, func(w io.Writer) error {
		return WritePNG(w, p, width, height)
	})
}
