package telemetry

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotFitness draws best, mean and best-ever fitness per generation and saves
// the chart to path. The image format follows the file extension.
func PlotFitness(history []GenerationStats, title, path string) error {
	if len(history) == 0 {
		return errors.New("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	best := make(plotter.XYs, len(history))
	mean := make(plotter.XYs, len(history))
	ever := make(plotter.XYs, len(history))
	for i, s := range history {
		x := float64(s.Generation)
		best[i].X, best[i].Y = x, s.BestFitness
		mean[i].X, mean[i].Y = x, s.MeanFitness
		ever[i].X, ever[i].Y = x, s.BestEver
	}

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	everLine, err := plotter.NewLine(ever)
	if err != nil {
		return err
	}
	everLine.Width = vg.Points(2)

	p.Add(plotter.NewGrid(), bestLine, meanLine, everLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Add("best ever", everLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
