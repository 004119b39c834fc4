// Command findorientations indexes crystal orientations from cached
// eta-omega diffraction maps and writes the accepted orientations, cluster
// assignments and a run report into the working directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ovillellas/hexrd/internal/config"
	"github.com/ovillellas/hexrd/internal/indexer"
	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/version"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (required)")
	hklSeeds := flag.String("hkls", "", "comma-separated seed indices overriding seed_search.hkl_seeds")
	ncpus := flag.Int("ncpus", 0, "override parallelism degree (0 keeps the configured value)")
	clean := flag.Bool("clean", false, "remove output files from previous runs before indexing")
	quiet := flag.Bool("quiet", false, "suppress progress logging")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("findorientations %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "findorientations: -config is required")
		fmt.Fprintf(os.Stderr, "supported clustering algorithms: %s\n",
			strings.Join(indexer.GetSupportedClusteringAlgorithms(), ", "))
		flag.Usage()
		os.Exit(2)
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("findorientations: %v", err)
	}
	if *hklSeeds != "" {
		seeds, err := parseSeeds(*hklSeeds)
		if err != nil {
			log.Fatalf("findorientations: -hkls: %v", err)
		}
		cfg.FindOrientations.SeedSearch.HKLSeeds = seeds
	}
	if *ncpus > 0 {
		cfg.Multiprocessing = *ncpus
	}
	if *clean {
		if err := removePreviousOutputs(cfg); err != nil {
			log.Fatalf("findorientations: -clean: %v", err)
		}
	}

	res, err := indexer.FindOrientations(cfg, indexer.Dependencies{})
	if err != nil {
		log.Fatalf("findorientations: %v", err)
	}

	mode := "seeded"
	if !res.Seeded {
		mode = "exhaustive"
	}
	fmt.Printf("run %s (%s search): %d trial orientations, %d accepted clusters\n",
		res.RunID, mode, len(res.Trials), len(res.Centroids))
}

// removePreviousOutputs deletes the result files a prior run may have left
// in the working directory. The map cache and run history are kept.
func removePreviousOutputs(cfg *config.Config) error {
	outputs := []string{
		"trial_orientations.dat",
		"completeness.dat",
		"scored_orientations.dat",
		"clusters.dat",
		"accepted_orientations.dat",
		cfg.AnalysisName + "_report.html",
	}
	for _, name := range outputs {
		p := filepath.Join(cfg.WorkingDir, name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func parseSeeds(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	seeds := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q", p)
		}
		seeds = append(seeds, v)
	}
	return seeds, nil
}
