// Package report renders an HTML diagnostics page for an indexing run: the
// completeness distribution of the trial orientations and the member counts
// of the resulting clusters.
package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ovillellas/hexrd/internal/monitoring"
)

const histogramBins = 20

// WriteRunReport writes the diagnostics page to path. completeness holds
// one score per trial orientation; assignment holds the cluster label of
// each orientation that was fed to clustering (0 = noise). Either slice may
// be empty.
func WriteRunReport(path string, completeness []float64, assignment []int) error {
	page := components.NewPage()
	page.SetPageTitle("find-orientations run report")
	page.AddCharts(completenessHistogram(completeness), clusterSizeChart(assignment))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("report: render %s: %w", path, err)
	}
	monitoring.Logf("[Report] Wrote run report to %s", path)
	return nil
}

func completenessHistogram(completeness []float64) *charts.Bar {
	counts := make([]int, histogramBins)
	for _, c := range completeness {
		bin := int(c * histogramBins)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	labels := make([]string, histogramBins)
	data := make([]opts.BarData, histogramBins)
	for i := range counts {
		labels[i] = fmt.Sprintf("%.2f", float64(i)/histogramBins)
		data[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Completeness distribution",
			Subtitle: fmt.Sprintf("%d trial orientations", len(completeness)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "completeness"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "orientations"}),
	)
	bar.SetXAxis(labels).AddSeries("orientations", data)
	return bar
}

func clusterSizeChart(assignment []int) *charts.Bar {
	sizes := make(map[int]int)
	noise := 0
	for _, id := range assignment {
		if id == 0 {
			noise++
			continue
		}
		sizes[id]++
	}
	ids := make([]int, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	labels := make([]string, 0, len(ids))
	data := make([]opts.BarData, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, fmt.Sprintf("%d", id))
		data = append(data, opts.BarData{Value: sizes[id]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Cluster sizes",
			Subtitle: fmt.Sprintf("%d clusters, %d noise orientations", len(ids), noise),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cluster id"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "members"}),
	)
	bar.SetXAxis(labels).AddSeries("members", data)
	return bar
}
