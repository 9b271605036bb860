package benford

import (
	"fmt"
	"io"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// WritePlot renders observed (blue) and expected (red) digit frequencies as paired bars in a PNG.
func WritePlot(w io.Writer, r *Result) error {
	if len(r.Digits) == 0 {
		return fmt.Errorf("render chart: no digit frequencies")
	}
	bars := make([]chart.Value, 0, 2*len(r.Digits))
	top := 0.0
	for _, d := range r.Digits {
		bars = append(bars,
			chart.Value{
				Value: d.Observed,
				Label: strconv.Itoa(d.Digit),
				Style: chart.Style{FillColor: drawing.ColorBlue, StrokeColor: drawing.ColorBlue, StrokeWidth: 1},
			},
			chart.Value{
				Value: d.Expected,
				Style: chart.Style{FillColor: drawing.ColorRed.WithAlpha(160), StrokeColor: drawing.ColorRed, StrokeWidth: 1},
			},
		)
		top = max(top, d.Observed, d.Expected)
	}

	percent := func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.0f%%", f*100)
		}
		return ""
	}

	graph := chart.BarChart{
		Title:      fmt.Sprintf("Benford's Law - %s (blue observed, red expected)", r.Column),
		Width:      1100,
		Height:     576,
		BarWidth:   40,
		BarSpacing: 12,
		Background: chart.Style{
			Padding:   chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
			FillColor: drawing.ColorWhite,
		},
		YAxis: chart.YAxis{
			Name:           "Frequency",
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: percent,
		},
		Bars: bars,
	}
	graph.Background.StrokeWidth = 1
	graph.Background.StrokeColor = drawing.ColorFromHex("efefef")

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
