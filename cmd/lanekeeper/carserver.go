package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/lanekeeper/internal/carproto"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
)

func handleCarServer(args []string) {
	fs := flag.NewFlagSet("car-server", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (.json or .yaml); defaults to the shipped config")
	serialPort := fs.String("serial", "", "Motor board serial port; empty drives in-memory motors")
	baud := fs.Int("baud", 115200, "Motor board baud rate")
	listen := fs.String("listen", "127.0.0.1:8089", "Admin HTTP listen address")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	var motors [4]motor.Motor
	var board *motor.Board
	if *serialPort == "" {
		motors = memoryMotors()
		log.Print("no serial port given, using in-memory motors")
	} else {
		var err error
		board, err = motor.OpenBoard(*serialPort, motor.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open motor board: %v", err)
		}
		motors = board.Motors()
	}

	bank := newBank(cfg, motors)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := carproto.NewServer(carproto.ServerConfig{
		Address:  cfg.GetCarAddress(),
		Actuator: bank,
		Metrics:  monitoring.Default,
		OnDisconnect: func() {
			if _, err := bank.Apply(context.WithoutCancel(ctx), motor.Stop); err != nil {
				log.Printf("failed to stop wheels after disconnect: %v", err)
			}
		},
	})
	if err := srv.Listen(); err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	srv.AttachAdminRoutes(mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return serveHTTP(gctx, *listen, mux) })

	err := g.Wait()

	if _, serr := bank.Apply(context.Background(), motor.Stop); serr != nil {
		log.Printf("failed to stop wheels: %v", serr)
	}
	if board != nil {
		if cerr := board.Close(); cerr != nil {
			log.Printf("failed to close motor board: %v", cerr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("car server stopped: %v", err)
		os.Exit(1)
	}
	log.Print("car server stopped")
}
