package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/feedback"
	"github.com/edulytics/reportgen/internal/scoring"
	"github.com/edulytics/reportgen/internal/store"
	"github.com/edulytics/reportgen/internal/worker"
	"github.com/edulytics/reportgen/internal/workflow"
	pkgactivity "github.com/edulytics/reportgen/pkg/activity"
)

func newWorkerCmd() *cobra.Command {
	var (
		temporalHost string
		namespace    string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker serving batch report workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			c, err := client.Dial(client.Options{
				HostPort:  temporalHost,
				Namespace: namespace,
			})
			if err != nil {
				return fmt.Errorf("dial temporal: %w", err)
			}
			defer c.Close()

			pool := buildPool(cfg)
			prompts, err := feedback.NewPromptRenderer(cfg.Generation.PromptTemplate)
			if err != nil {
				return err
			}
			requester := feedback.NewRequester(pool, buildHandler(cfg), prompts, feedback.Config{
				MaxAttempts:      cfg.Generation.MaxAttempts,
				EmptyPoolBackoff: cfg.Generation.EmptyPoolBackoff,
				TransientDelay:   cfg.Generation.TransientDelay,
				Model:            cfg.Generation.Model,
				Temperature:      cfg.Generation.Temperature,
			})
			orch := batch.NewOrchestrator(requester, pool, batch.Config{
				Workers:  cfg.Batch.Workers,
				Deadline: cfg.Batch.Deadline,
			})

			var runs *store.Store
			if cfg.Store.Path != "" {
				if runs, err = store.Open(cfg.Store.Path); err != nil {
					return err
				}
				defer runs.Close()
			}

			activities := workflow.NewActivities(
				pkgactivity.NewBase(slog.Default()),
				scoring.NewScorer(scoring.Options{Blank: blankPolicy(cfg.Scoring)}),
				orch, runs)
			return worker.Run(c, activities, slog.Default())
		},
	}

	cmd.Flags().StringVar(&temporalHost, "temporal-host", client.DefaultHostPort, "temporal frontend host:port")
	cmd.Flags().StringVar(&namespace, "temporal-namespace", client.DefaultNamespace, "temporal namespace")
	return cmd
}
