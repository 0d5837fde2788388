package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/lanekeeper/internal/scheduler"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// handleCaptureWorker is the isolated capture scheduler's worker process.
// It exits on SIGINT.
func handleCaptureWorker(args []string) {
	fs := flag.NewFlagSet("capture-worker", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (.json or .yaml); defaults to the shipped config")
	dumpDir := fs.String("dump-dir", "", "Write the annotated frame of every cycle to this directory")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	if err := prepareDumpDir(*dumpDir); err != nil {
		log.Fatalf("invalid dump dir: %v", err)
	}

	car, client := newRemoteCar(cfg)
	defer client.Close()
	ap, cam := newPilot(cfg, car, nil, *dumpDir)
	defer cam.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("capture worker running at %.1f fps", cfg.GetFPS())
	if err := scheduler.RunLoop(ctx, timeutil.RealClock{}, cfg.GetCaptureInterval(), true, ap.Tick); err != nil {
		log.Printf("capture loop: %v", err)
	}
	if err := car.StopAll(context.Background()); err != nil {
		log.Printf("failed to stop car: %v", err)
	}
	log.Print("capture worker stopped")
}
