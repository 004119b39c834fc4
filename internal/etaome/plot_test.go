package etaome

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPlotMapWritesPNG(t *testing.T) {
	m := testMaps(t)
	m.Maps[0].Set(4, 6, 10)

	path := filepath.Join(t.TempDir(), "map.png")
	if err := PlotMap(m, 0, path); err != nil {
		t.Fatalf("PlotMap: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot output is empty")
	}
}

func TestPlotMapIndexOutOfRange(t *testing.T) {
	m := testMaps(t)
	if err := PlotMap(m, 5, filepath.Join(t.TempDir(), "map.png")); err == nil {
		t.Error("expected error for out-of-range map index")
	}
}
