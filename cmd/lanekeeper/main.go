package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/banshee-data/lanekeeper/internal/config"
	"github.com/banshee-data/lanekeeper/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "car-server":
		handleCarServer(args)
	case "drive":
		handleDrive(args)
	case "capture-worker":
		handleCaptureWorker(args)
	case "plot":
		handlePlot(args)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lanekeeper - lane following for a four wheel tape track car

Usage: lanekeeper <command> [options]

Commands:
  car-server       Own the motors and accept wheel commands over TCP
  drive            Run the gamepad controller and the lane follower
  capture-worker   Run the lane follower loop in its own process
  plot             Render the steering history of a recorded run
  version          Print build information
  help             Show this help

Run 'lanekeeper <command> -h' for command options.`)
}

// loadConfig reads path, or the shipped defaults when path is empty.
func loadConfig(path string) *config.Config {
	if path == "" {
		return config.MustLoadDefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// serveHTTP runs an HTTP server on addr until ctx is done.
func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	return nil
}
