package report

import (
	"errors"
	"io"
	"math"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrNothingToDraw = errors.New("no results to draw")

const (
	chartHeight   = 512
	chartBarWidth = 60
)

// RenderScoreChart draws one bar per bidder with the total score, highest first, as PNG.
func RenderScoreChart(w io.Writer, results []view.AnalysisResult) error {
	if len(results) == 0 {
		return ErrNothingToDraw
	}
	top := 100.0
	bars := make([]chart.Value, 0, len(results))
	for _, r := range Rank(results) {
		style := chart.Style{FillColor: drawing.ColorFromHex("4e79a7"), StrokeColor: drawing.ColorFromHex("4e79a7")}
		if r.IsVetoed {
			style = chart.Style{FillColor: chart.ColorAlternateGray, StrokeColor: chart.ColorAlternateGray}
		}
		bars = append(bars, chart.Value{Value: r.TotalScore, Label: r.BidderName, Style: style})
		top = math.Max(top, r.TotalScore)
	}

	graph := chart.BarChart{
		Title:      "Total score",
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Height:     chartHeight,
		Width:      len(bars)*(chartBarWidth+40) + 120,
		BarWidth:   chartBarWidth,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}
