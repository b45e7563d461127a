package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/report"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/study"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full imputation study",
		Long: `Run the factorial study described by the config file: for every
mechanism x rate x method x replication cell, generate the synthetic dataset,
inject missingness, impute and score against the ground truth, then aggregate
the metrics per cell with confidence intervals. Failed trials are recorded
and the study continues.`,
		Example: `  # Run the study in ./missingdata.yaml
  missingdata run

  # Persist results and serve prometheus metrics while running
  missingdata run --config study.yaml --history runs.db \
    --artifacts ./artifacts --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStudy(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("name", "", "study name override")
	flags.Int64("seed", 0, "global seed override")
	flags.Int("parallelism", 0, "concurrent trials (0 = all cores)")
	flags.String("redis-addr", "", "redis address for the result store")
	flags.Int("redis-db", 0, "redis database number")
	flags.String("history", "", "sqlite run log path")
	flags.String("artifacts", "", "artifact directory")
	flags.String("metrics-addr", "", "prometheus listen address")
	return cmd
}

func runStudy(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := study.RunnerOptions{}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("Redis connection failed, results will not be persisted", zap.Error(err))
		} else {
			opts.Store = study.NewRedisStore(client, logger)
		}
	}
	if cfg.History.Path != "" {
		history, err := study.OpenHistory(cfg.History.Path, logger)
		if err != nil {
			return err
		}
		defer history.Close()
		opts.History = history
	}
	if cfg.Artifacts.Dir != "" {
		artifacts, err := study.NewArtifactStore(cfg.Artifacts.Dir, logger)
		if err != nil {
			return err
		}
		opts.Artifacts = artifacts
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		study.RegisterMetrics(mux)
		go func() {
			logger.Info("Metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Warn("Metrics server failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logger.Info("Interrupt received, stopping study")
		cancel()
	}()

	runner := study.NewRunner(logger, opts)
	result, err := runner.Run(ctx, &cfg.Study)
	if err != nil {
		return err
	}

	switch cfg.Output.Format {
	case "json":
		return report.WriteJSON(cmd.OutOrStdout(), result)
	case "csv":
		return report.WriteCSV(cmd.OutOrStdout(), result)
	default:
		report.RenderSummary(cmd.OutOrStdout(), result)
		return nil
	}
}
