package main

import (
	"log"
	"os"
	"time"

	"github.com/banshee-data/lanekeeper/internal/autopilot"
	"github.com/banshee-data/lanekeeper/internal/camera"
	"github.com/banshee-data/lanekeeper/internal/carproto"
	"github.com/banshee-data/lanekeeper/internal/config"
	"github.com/banshee-data/lanekeeper/internal/drive"
	"github.com/banshee-data/lanekeeper/internal/lkas"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
	"github.com/banshee-data/lanekeeper/internal/security"
	"github.com/banshee-data/lanekeeper/internal/vision"
)

// memoryMotors returns in-memory motors for running without hardware.
func memoryMotors() [4]motor.Motor {
	var motors [4]motor.Motor
	for i, m := range motor.NewMemoryMotors() {
		motors[i] = m
	}
	return motors
}

// newBank ramps motors with the configured band and step.
func newBank(cfg *config.Config, motors [4]motor.Motor) *motor.Bank {
	return motor.NewBank(motors, motor.BankOptions{
		Band:    motor.SpeedBand{Min: cfg.GetMinSpeed(), Max: cfg.GetMaxSpeed()},
		Step:    cfg.GetRampStep(),
		Tick:    cfg.GetRampTick(),
		Metrics: monitoring.Default,
	})
}

// prepareDumpDir checks that dir is a safe output location and creates it.
// An empty dir disables frame dumps.
func prepareDumpDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := security.ValidateOutputPath(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

const clientTimeout = 2 * time.Second

// newRemoteCar returns a Car that sends its commands to the car server.
func newRemoteCar(cfg *config.Config) (*drive.Car, *carproto.Client) {
	client := carproto.NewClient(cfg.GetCarAddress(), clientTimeout)
	return drive.New(client, drive.ConfigFrom(cfg), nil), client
}

// newPilot opens the camera and builds the lane follower around car.
func newPilot(cfg *config.Config, car autopilot.Driver, rec autopilot.Recorder, dumpDir string) (*autopilot.Autopilot, *camera.Camera) {
	cam := camera.New(camera.Options{
		DeviceID:     cfg.GetCameraDevice(),
		FailureReset: cfg.GetCameraFailureReset(),
		Metrics:      monitoring.Default,
	})
	if err := cam.Acquire(); err != nil {
		log.Fatalf("failed to open camera: %v", err)
	}

	ap := autopilot.New(autopilot.Config{
		Camera: cam,
		Car:    car,
		Detector: vision.Detector{
			Tape:     vision.TapeColor(cfg.GetTapeColor()),
			EdgeLow:  cfg.GetEdgeLow(),
			EdgeHigh: cfg.GetEdgeHigh(),
		},
		Deviation: lkas.Deviation{
			OneSide:  cfg.GetMaxDeviationOneSide(),
			TwoSides: cfg.GetMaxDeviationTwoSides(),
		},
		Stabilize: cfg.GetStabilize(),
		Recorder:  rec,
		Metrics:   monitoring.Default,
		DumpDir:   dumpDir,
	})
	return ap, cam
}
