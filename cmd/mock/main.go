package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pacball"
)

var (
	Version string
	Build   string
)

// Desktop simulator, no expanders needed: random inputs every second and
// written outputs echoed to stdout.
func main() {
	log.SetLevel(log.DebugLevel)
	log.Info("pacball mock started", "version", Version)
	log.Info("mock instance for testing purposes, should work on MacOs")

	cfg := pacball.DefaultConfig()
	cfg.Name = "pacball-mock"
	cfg.Listen = "0.0.0.0:8881"
	cfg.Driver = "mock"
	cfg.Mock.Interval = time.Second
	cfg.Announce.Enabled = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pb := pacball.New(cfg, "mock: "+Version)
	err := pb.InitDrivers(ctx)
	defer pb.Close()
	if err != nil {
		log.Fatal("failed to init drivers", "err", err)
	}
	pb.PrintIoStatus(os.Stdout)

	err = pb.Run(ctx)
	if err != nil {
		log.Fatal("mock stopped", "err", err)
	}
}
