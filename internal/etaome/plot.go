package etaome

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ovillellas/hexrd/internal/monitoring"
)

// mapGrid adapts one eta-omega map to plotter.GridXYZ. X is eta and Y is
// omega, both in degrees for readability.
type mapGrid struct {
	m   *EtaOmeMaps
	idx int
}

func (g mapGrid) Dims() (int, int) {
	r, c := g.m.Maps[g.idx].Dims()
	return c, r
}

func (g mapGrid) X(c int) float64 {
	_, eta := g.m.BinCenter(0, float64(c))
	return eta * 180 / math.Pi
}

func (g mapGrid) Y(r int) float64 {
	ome, _ := g.m.BinCenter(float64(r), 0)
	return ome * 180 / math.Pi
}

func (g mapGrid) Z(c, r int) float64 {
	return g.m.Maps[g.idx].At(r, c)
}

// PlotMap renders the intensity map at index idx as a heat map PNG. It is a
// diagnostic aid for judging intensity thresholds before a seeded search.
func PlotMap(m *EtaOmeMaps, idx int, path string) error {
	if idx < 0 || idx >= len(m.Maps) {
		return fmt.Errorf("etaome plot: map index %d out of range", idx)
	}

	p := plot.New()
	hkl := m.PlaneData.HKLs[m.HKLIDs[idx]]
	p.Title.Text = fmt.Sprintf("eta-omega map %s", hkl)
	p.X.Label.Text = "eta (deg)"
	p.Y.Label.Text = "omega (deg)"

	pal := palette.Heat(64, 1)
	p.Add(plotter.NewHeatMap(mapGrid{m: m, idx: idx}, pal))

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("etaome plot: save %s: %w", path, err)
	}
	monitoring.Logf("[EtaOmePlot] Wrote map %s heat map to %s", hkl, path)
	return nil
}
