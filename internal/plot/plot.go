// Package plot renders solutions and fitness curves to image files. The
// output format follows the file extension (png, svg, pdf, ...).
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"slices"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"nurseroute/internal/model"
)

var ErrNoData = errors.New("nothing to plot")

// Routes draws every non-empty nurse route as a closed tour from the depot.
func Routes(in *model.Instance, ind *model.Individual, title, path string) error {
	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	pts := make(plotter.XYs, len(in.Patients))
	for i, pt := range in.Patients {
		pts[i].X, pts[i].Y = pt.X, pt.Y
	}
	patients, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	patients.GlyphStyle.Radius = vg.Points(2)
	patients.GlyphStyle.Color = color.Gray{Y: 120}

	depot, err := plotter.NewScatter(plotter.XYs{{X: in.Depot.X, Y: in.Depot.Y}})
	if err != nil {
		return err
	}
	depot.GlyphStyle.Shape = draw.BoxGlyph{}
	depot.GlyphStyle.Radius = vg.Points(5)
	depot.GlyphStyle.Color = color.Black

	drawn := 0
	for n, r := range ind.Routes {
		if len(r.Patients) == 0 {
			continue
		}
		tour := make(plotter.XYs, 0, len(r.Patients)+2)
		tour = append(tour, plotter.XY{X: in.Depot.X, Y: in.Depot.Y})
		for _, q := range r.Patients {
			tour = append(tour, plotter.XY{X: in.Patients[q].X, Y: in.Patients[q].Y})
		}
		tour = append(tour, plotter.XY{X: in.Depot.X, Y: in.Depot.Y})
		line, err := plotter.NewLine(tour)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(drawn)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("nurse %d", n+1), line)
		drawn++
	}
	p.Add(patients, depot)
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// Fitness draws best and mean fitness against generation for one island's
// progress history.
func Fitness(history []model.Progress, title, path string) error {
	if len(history) == 0 {
		return ErrNoData
	}
	h := slices.Clone(history)
	slices.SortFunc(h, func(a, b model.Progress) int { return a.Generation - b.Generation })

	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	best := make(plotter.XYs, len(h))
	mean := make(plotter.XYs, len(h))
	for i, pr := range h {
		best[i].X, best[i].Y = float64(pr.Generation), pr.Best
		mean[i].X, mean[i].Y = float64(pr.Generation), pr.Mean
	}
	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	bestLine.Color = plotutil.Color(0)
	meanLine.Color = plotutil.Color(1)
	meanLine.Dashes = plotutil.Dashes(1)

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
