// Package run implements the one-shot mode: a single engine pass, then exit.
// Useful from cron or for testing trigger configuration.
package run

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/engine"
	"github.com/nudgeworks/nudge-go/internal/logging"
	"github.com/nudgeworks/nudge-go/internal/trigger"
)

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	var notificationID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one engine pass and exit",
		Long:  "Drain due scheduled notifications, evaluate all active triggers and dispatch to eligible users, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(settings, notificationID)
		},
	}

	cmd.Flags().StringVar(&notificationID, "notification", "", "Process a single scheduled notification by id instead of a full pass")

	return cmd
}

func runOnce(settings *conf.Settings, notificationID string) error {
	eng, err := engine.New(settings)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			logging.Warn("failed to close engine", "error", closeErr)
		}
	}()

	var result *trigger.RunResult
	if notificationID != "" {
		result, err = eng.Runner.ProcessNotification(context.Background(), notificationID)
		if err != nil {
			return err
		}
	} else {
		result = eng.Runner.Run(context.Background())
	}

	fmt.Printf("processed %d notifications: %d sent, %d failed\n",
		result.Processed, result.Sent, result.Failed)
	for _, message := range result.Errors {
		fmt.Printf("error: %s\n", message)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("engine pass completed with %d errors", len(result.Errors))
	}
	return nil
}
