package output

import (
	"errors"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/RMahshie/zsweep/pkg/models"
)

const (
	plotWidth  = 20 * vg.Centimeter
	plotHeight = 16 * vg.Centimeter
)

// WritePlot renders a two panel PNG: impedance magnitude over frequency on
// top, phase below. Axes are logarithmic where every value is positive.
func WritePlot(w io.Writer, rows []models.Measurement, title string) error {
	if len(rows) == 0 {
		return errors.New("no measurements to plot")
	}

	zs := make(plotter.XYs, len(rows))
	ph := make(plotter.XYs, len(rows))
	logX, logZ := true, true
	for i, m := range rows {
		zs[i].X, zs[i].Y = m.Frequency, m.Impedance
		ph[i].X, ph[i].Y = m.Frequency, m.Phase
		logX = logX && m.Frequency > 0
		logZ = logZ && m.Impedance > 0
	}

	zp := plot.New()
	zp.Title.Text = title
	zp.Y.Label.Text = "Impedance [Ohm]"
	pp := plot.New()
	pp.X.Label.Text = "Frequency [Hz]"
	pp.Y.Label.Text = "Phase [deg]"

	if logX {
		for _, p := range []*plot.Plot{zp, pp} {
			p.X.Scale = plot.LogScale{}
			p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		}
	}
	if logZ {
		zp.Y.Scale = plot.LogScale{}
		zp.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	zl, err := plotter.NewLine(zs)
	if err != nil {
		return err
	}
	zp.Add(zl, plotter.NewGrid())

	pl, err := plotter.NewLine(ph)
	if err != nil {
		return err
	}
	pp.Add(pl, plotter.NewGrid())

	img := vgimg.New(plotWidth, plotHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 4}
	canvases := plot.Align([][]*plot.Plot{{zp}, {pp}}, tiles, dc)
	zp.Draw(canvases[0][0])
	pp.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(w)
	return err
}

// PlotSink collects a pass and renders it to path on Close.
type PlotSink struct {
	path  string
	title string
	rows  []models.Measurement
}

// NewPlotSink returns a sink that plots into path.
func NewPlotSink(path, title string) *PlotSink {
	return &PlotSink{path: path, title: title}
}

func (p *PlotSink) Write(m models.Measurement) error {
	p.rows = append(p.rows, m)
	return nil
}

// Close writes the PNG. An empty pass writes nothing.
func (p *PlotSink) Close() error {
	if len(p.rows) == 0 {
		return nil
	}
	f, err := os.Create(p.path)
	if err != nil {
		return err
	}
	if err := WritePlot(f, p.rows, p.title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
