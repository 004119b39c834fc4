// Package config loads and validates the YAML configuration consumed by the
// find-orientations pipeline. Angles are written in degrees in the file and
// converted to radians at this boundary.
package config

import (
	"fmt"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// OrientationMapsConfig controls the eta-omega map cache.
type OrientationMapsConfig struct {
	// File is the SQLite cache holding the eta-omega map sets, relative to
	// the working directory unless absolute.
	File string `yaml:"file"`
	// Threshold is the intensity cutoff used when the maps were binned.
	Threshold float64 `yaml:"threshold"`
}

// SeedSearchConfig controls fiber seeding.
type SeedSearchConfig struct {
	HKLSeeds  []int `yaml:"hkl_seeds"`
	FiberNdiv int   `yaml:"fiber_ndiv"`
}

// OmegaConfig holds rotation axis settings in degrees.
type OmegaConfig struct {
	Tolerance float64    `yaml:"tolerance"`
	Period    [2]float64 `yaml:"period"`
}

// EtaConfig holds azimuth settings in degrees.
type EtaConfig struct {
	Range     [][2]float64 `yaml:"range"`
	Tolerance float64      `yaml:"tolerance"`
}

// ClusteringConfig selects and parameterizes the orientation clustering
// stage.
type ClusteringConfig struct {
	// Algorithm names a registered clustering strategy.
	Algorithm string `yaml:"algorithm"`
	// Radius is the misorientation radius in degrees.
	Radius float64 `yaml:"radius"`
	// Completeness is the minimum completeness an orientation needs to be
	// fed to clustering.
	Completeness float64 `yaml:"completeness"`
	// ExhaustiveMinSamples is the neighborhood size used on the exhaustive
	// grid path, where the Monte Carlo estimator does not run.
	ExhaustiveMinSamples int `yaml:"exhaustive_min_samples"`
}

// FindOrientationsConfig is the configuration surface of the indexing core.
type FindOrientationsConfig struct {
	OrientationMaps   OrientationMapsConfig `yaml:"orientation_maps"`
	UseQuaternionGrid string                `yaml:"use_quaternion_grid"`
	Threshold         float64               `yaml:"threshold"`
	SeedSearch        SeedSearchConfig      `yaml:"seed_search"`
	Omega             OmegaConfig           `yaml:"omega"`
	Eta               EtaConfig             `yaml:"eta"`
	Clustering        ClusteringConfig      `yaml:"clustering"`
}

// Config is the root document.
type Config struct {
	AnalysisName     string                 `yaml:"analysis_name"`
	WorkingDir       string                 `yaml:"working_dir"`
	Multiprocessing  int                    `yaml:"multiprocessing"`
	AsciiOutput      bool                   `yaml:"ascii_output"`
	FindOrientations FindOrientationsConfig `yaml:"find_orientations"`
}

// Default returns a configuration with conservative defaults. Callers still
// need to fill in analysis-specific values (seeds, thresholds).
func Default() *Config {
	return &Config{
		AnalysisName:    "analysis",
		WorkingDir:      ".",
		Multiprocessing: runtime.NumCPU(),
		FindOrientations: FindOrientationsConfig{
			OrientationMaps: OrientationMapsConfig{File: "eta_ome_maps.sqlite"},
			Threshold:       1.0,
			SeedSearch:      SeedSearchConfig{FiberNdiv: 120},
			Omega:           OmegaConfig{Tolerance: 1.0, Period: [2]float64{-180, 180}},
			Eta:             EtaConfig{Tolerance: 1.0},
			Clustering: ClusteringConfig{
				Algorithm:            "homochoric-dbscan",
				Radius:               1.0,
				Completeness:         0.85,
				ExhaustiveMinSamples: 1,
			},
		},
	}
}

// Load reads and validates a YAML configuration file. Missing keys keep
// their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	fo := &c.FindOrientations
	if c.Multiprocessing < 0 {
		return fmt.Errorf("multiprocessing must be >= 0 (0 means all cores)")
	}
	if fo.SeedSearch.FiberNdiv < 1 {
		return fmt.Errorf("seed_search.fiber_ndiv must be >= 1, got %d", fo.SeedSearch.FiberNdiv)
	}
	for _, s := range fo.SeedSearch.HKLSeeds {
		if s < 0 {
			return fmt.Errorf("seed_search.hkl_seeds entries must be >= 0, got %d", s)
		}
	}
	if fo.Clustering.Algorithm == "" {
		return fmt.Errorf("clustering.algorithm must be set")
	}
	if fo.Clustering.Radius <= 0 {
		return fmt.Errorf("clustering.radius must be positive, got %g", fo.Clustering.Radius)
	}
	if fo.Clustering.Completeness < 0 || fo.Clustering.Completeness > 1 {
		return fmt.Errorf("clustering.completeness must be in [0, 1], got %g", fo.Clustering.Completeness)
	}
	if fo.Clustering.ExhaustiveMinSamples < 1 {
		return fmt.Errorf("clustering.exhaustive_min_samples must be >= 1, got %d", fo.Clustering.ExhaustiveMinSamples)
	}
	if fo.Omega.Period[1] <= fo.Omega.Period[0] {
		return fmt.Errorf("omega.period must be an increasing interval")
	}
	if math.Abs((fo.Omega.Period[1]-fo.Omega.Period[0])-360) > 1e-9 {
		return fmt.Errorf("omega.period must span 360 degrees")
	}
	for i, r := range fo.Eta.Range {
		if r[1] <= r[0] {
			return fmt.Errorf("eta.range[%d] must be an increasing interval", i)
		}
	}
	return nil
}

// NCPUs resolves the parallelism degree: 0 means all available cores.
func (c *Config) NCPUs() int {
	if c.Multiprocessing == 0 {
		return runtime.NumCPU()
	}
	return c.Multiprocessing
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// OmegaToleranceRad returns the omega matching tolerance in radians.
func (c *Config) OmegaToleranceRad() float64 {
	return radians(c.FindOrientations.Omega.Tolerance)
}

// OmegaPeriodRad returns the omega period interval in radians.
func (c *Config) OmegaPeriodRad() [2]float64 {
	p := c.FindOrientations.Omega.Period
	return [2]float64{radians(p[0]), radians(p[1])}
}

// EtaToleranceRad returns the eta matching tolerance in radians.
func (c *Config) EtaToleranceRad() float64 {
	return radians(c.FindOrientations.Eta.Tolerance)
}

// EtaRangesRad returns the accepted eta arcs in radians. An empty slice
// means full azimuthal coverage.
func (c *Config) EtaRangesRad() [][2]float64 {
	out := make([][2]float64, 0, len(c.FindOrientations.Eta.Range))
	for _, r := range c.FindOrientations.Eta.Range {
		out = append(out, [2]float64{radians(r[0]), radians(r[1])})
	}
	return out
}
