// Package serve implements the long-running mode: the admin HTTP API plus
// the periodic engine scheduler.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nudgeworks/nudge-go/internal/api"
	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/engine"
	"github.com/nudgeworks/nudge-go/internal/logging"
	"github.com/nudgeworks/nudge-go/internal/scheduler"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the periodic notification engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().DurationVar(&settings.Scheduler.Interval, "interval", viper.GetDuration("scheduler.interval"), "Time between engine runs")
	cmd.Flags().BoolVar(&settings.Scheduler.Enabled, "scheduler", viper.GetBool("scheduler.enabled"), "Enable the periodic engine scheduler")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func runServe(settings *conf.Settings) error {
	eng, err := engine.New(settings)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			logging.Warn("failed to close engine", "error", closeErr)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	controller := api.New(e, eng.Store, settings, eng.Runner, eng.Registry)
	defer controller.Shutdown()

	var sched *scheduler.Scheduler
	if settings.Scheduler.Enabled {
		sched = scheduler.New(eng.Runner, &settings.Scheduler)
		sched.Start(context.Background())
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + settings.WebServer.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if sched != nil {
			sched.Stop()
		}
		return err
	case sig := <-quit:
		logging.Info("shutting down", "signal", sig.String())
	}

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
