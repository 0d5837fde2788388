package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/lanekeeper/internal/controller"
	"github.com/banshee-data/lanekeeper/internal/drive"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/scheduler"
	"github.com/banshee-data/lanekeeper/internal/telemetry"
)

func handleDrive(args []string) {
	if err := runDrive(args); err != nil {
		log.Fatalf("drive stopped: %v", err)
	}
	log.Print("drive stopped")
}

func runDrive(args []string) error {
	fs := flag.NewFlagSet("drive", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (.json or .yaml); defaults to the shipped config")
	metricsListen := fs.String("metrics-listen", "", "Serve prometheus metrics on this address")
	localMotors := fs.Bool("local-motors", false, "Drive in-memory motors instead of the car server")
	dumpDir := fs.String("dump-dir", "", "Passed to the capture worker or used in process")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if err := prepareDumpDir(*dumpDir); err != nil {
		return fmt.Errorf("invalid dump dir: %w", err)
	}

	var car *drive.Car
	if *localMotors {
		bank := newBank(cfg, memoryMotors())
		car = drive.New(drive.Local{Bank: bank}, drive.ConfigFrom(cfg), nil)
	} else {
		remote, client := newRemoteCar(cfg)
		defer client.Close()
		car = remote
	}

	store, err := telemetry.Open(cfg.GetTelemetryPath())
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}
	defer store.Close()
	recorder := telemetry.NewRecorder(store, nil)

	opts := scheduler.Options{
		Name:      "capture",
		Interval:  cfg.GetCaptureInterval(),
		Repeating: true,
		Metrics:   monitoring.Default,
	}
	if cfg.GetIsolated() {
		opts.Isolated = true
		opts.Command = workerCommand(*configPath, *dumpDir)
	} else {
		ap, cam := newPilot(cfg, car, recorder, *dumpDir)
		opts.Callback = ap.Tick
		opts.Teardown = func() {
			if err := cam.Release(); err != nil {
				log.Printf("failed to release camera: %v", err)
			}
		}
	}
	autonomy, err := scheduler.New(opts)
	if err != nil {
		return fmt.Errorf("create capture scheduler: %w", err)
	}

	ctrl := controller.New(controller.Options{
		Car:        car,
		Autonomy:   autonomy,
		Recorder:   recorder,
		DeviceName: cfg.GetGamepadName(),
		Retry:      cfg.GetGamepadRetry(),
		Timeout:    cfg.GetGamepadTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.Handler())
		g.Go(func() error { return serveHTTP(gctx, *metricsListen, mux) })
	}

	err = g.Wait()
	if recorder.Recording() {
		if _, terr := recorder.Toggle(); terr != nil {
			log.Printf("failed to close recording: %v", terr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// workerCommand re-executes this binary as the capture worker.
func workerCommand(configPath, dumpDir string) func() *exec.Cmd {
	return func() *exec.Cmd {
		args := []string{"capture-worker"}
		if configPath != "" {
			args = append(args, "-config", configPath)
		}
		if dumpDir != "" {
			args = append(args, "-dump-dir", dumpDir)
		}
		cmd := exec.Command(os.Args[0], args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd
	}
}
