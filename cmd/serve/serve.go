// Package serve implements the serve command running the HTTP service.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/countnet/countnet-go/internal/api"
	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/detection"
	"github.com/countnet/countnet-go/internal/fewshot"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability"
	"github.com/countnet/countnet-go/internal/pipeline"
	"github.com/countnet/countnet-go/internal/safety"
	"github.com/countnet/countnet-go/internal/telemetry"
)

// Command returns the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the counting service HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	log := logging.ForService("serve")

	if err := settings.EnsureDirectories(); err != nil {
		return err
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no datastore backend enabled")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("datastore close failed", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	gate := safety.NewGate(settings, metrics.Safety)
	detector := detection.New(settings, metrics.Detector)
	defer detector.Close()

	manager, err := fewshot.New(settings, store, detector, metrics.FewShot)
	if err != nil {
		return err
	}

	p := pipeline.New(settings, store, gate, detector, manager, metrics)
	server := api.NewServer(settings, store, p, manager, metrics)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		<-errChan
	}

	telemetry.Flush()
	log.Info("service stopped")
	return nil
}
