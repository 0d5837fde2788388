package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/lanekeeper/internal/telemetry"
)

func handlePlot(args []string) {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (.json or .yaml); defaults to the shipped config")
	dbPath := fs.String("db", "", "Telemetry database; defaults to telemetry_path from the config")
	runID := fs.String("run", "", "Run to plot; defaults to the most recent run")
	out := fs.String("out", "steering.png", "Output image (.png, .svg or .pdf)")
	list := fs.Bool("list", false, "List recorded runs and exit")
	fs.Parse(args)

	path := *dbPath
	if path == "" {
		path = loadConfig(*configPath).GetTelemetryPath()
	}
	store, err := telemetry.Open(path)
	if err != nil {
		log.Fatalf("failed to open telemetry store: %v", err)
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if *list {
		for _, r := range runs {
			stopped := "running"
			if r.StoppedAt != nil {
				stopped = r.StoppedAt.Sub(r.StartedAt).String()
			}
			fmt.Printf("%s  %s  %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), stopped)
		}
		return
	}

	id := *runID
	if id == "" {
		if len(runs) == 0 {
			log.Fatalf("no runs recorded in %s", path)
		}
		id = runs[0].ID
	}
	samples, err := store.Samples(id)
	if err != nil {
		log.Fatalf("failed to read samples: %v", err)
	}
	if err := telemetry.PlotSteering(samples, *out); err != nil {
		log.Fatalf("failed to plot run %s: %v", id, err)
	}
	log.Printf("plotted %d samples of run %s to %s", len(samples), id, *out)
}
