package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// MovingAverage returns the trailing mean over window values at every index.
// Early indices average what is available.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// WriteRewardChart renders per-epoch reward and its moving average as an HTML page.
func WriteRewardChart(w io.Writer, rewards []float64, window int) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Episode reward",
			Subtitle: fmt.Sprintf("%d epochs, moving average over %d", len(rewards), window),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "pursuit training",
			Theme:     "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "epoch"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
	)

	epochs := make([]string, len(rewards))
	raw := make([]opts.LineData, len(rewards))
	avg := make([]opts.LineData, len(rewards))
	for i, r := range MovingAverage(rewards, window) {
		epochs[i] = fmt.Sprintf("%d", i)
		raw[i] = opts.LineData{Value: rewards[i]}
		avg[i] = opts.LineData{Value: r}
	}

	line.SetXAxis(epochs).
		AddSeries("reward", raw).
		AddSeries("moving average", avg)

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
