package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"analisis-mcp/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", engine.ScenarioMild, "Scenario to generate: mild, late, chaos")
	distribution := flag.String("distribution", "uniform", "Delay distribution: uniform, weibull")
	projects := flag.Int("projects", 3, "Number of projects")
	count := flag.Int("count", 40, "Leaf tasks per project")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	out := flag.String("out", "", "Output fixture file (default ./fixtures/<scenario>.json)")
	flag.Parse()

	path := *out
	if path == "" {
		path = filepath.Join("fixtures", *scenario+".json")
	}

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Projects:     *projects,
		Count:        *count,
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Projects: %d, Tasks: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Projects, cfg.Count, path)

	fx := engine.Generate(cfg)
	if err := engine.Save(path, fx); err != nil {
		fmt.Printf("Failed to save fixture: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
