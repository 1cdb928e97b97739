package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/config"
	"github.com/edulytics/reportgen/internal/credential"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/feedback"
	"github.com/edulytics/reportgen/internal/gemini"
	"github.com/edulytics/reportgen/internal/scoring"
	"github.com/edulytics/reportgen/internal/sheet"
	"github.com/edulytics/reportgen/internal/store"
	"github.com/edulytics/reportgen/pkg/events"
)

func newProcessCmd() *cobra.Command {
	var (
		sheetsPath  string
		matrixPath  string
		verdictMode bool
		questions   int
		outPath     string
		outFormat   string
		noStore     bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Score an export and generate feedback for every student",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			return runProcess(cmd.Context(), cfg, processArgs{
				sheetsPath:  sheetsPath,
				matrixPath:  matrixPath,
				verdictMode: verdictMode,
				questions:   questions,
				outPath:     outPath,
				outFormat:   outFormat,
				noStore:     noStore,
			})
		},
	}

	cmd.Flags().StringVar(&sheetsPath, "sheets", "", "answer-sheet export (csv)")
	cmd.Flags().StringVar(&matrixPath, "matrix", "", "topic matrix export (csv)")
	cmd.Flags().BoolVar(&verdictMode, "verdicts", false, "sheets carry per-question verdicts instead of choices")
	cmd.Flags().IntVar(&questions, "questions", 0, "question count (default: matrix size)")
	cmd.Flags().StringVar(&outPath, "out", "-", "output path, - for stdout")
	cmd.Flags().StringVar(&outFormat, "format", "json", "output format (json, csv)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting the run")
	cmd.MarkFlagRequired("sheets")
	cmd.MarkFlagRequired("matrix")
	return cmd
}

type processArgs struct {
	sheetsPath  string
	matrixPath  string
	verdictMode bool
	questions   int
	outPath     string
	outFormat   string
	noStore     bool
}

func runProcess(ctx context.Context, cfg config.Config, args processArgs) error {
	matrix, err := readMatrixFile(args.matrixPath)
	if err != nil {
		return err
	}
	questions := args.questions
	if questions <= 0 {
		questions = matrix.Len()
	}

	scorer := scoring.NewScorer(scoring.Options{Blank: blankPolicy(cfg.Scoring)})

	reports, err := scoreFile(scorer, matrix, questions, args)
	if err != nil {
		return err
	}
	scoring.Rank(reports)

	pool := buildPool(cfg)
	handler := buildHandler(cfg)
	prompts, err := feedback.NewPromptRenderer(cfg.Generation.PromptTemplate)
	if err != nil {
		return err
	}
	requester := feedback.NewRequester(pool, handler, prompts, feedback.Config{
		MaxAttempts:      cfg.Generation.MaxAttempts,
		EmptyPoolBackoff: cfg.Generation.EmptyPoolBackoff,
		TransientDelay:   cfg.Generation.TransientDelay,
		Model:            cfg.Generation.Model,
		Temperature:      cfg.Generation.Temperature,
	})
	orch := batch.NewOrchestrator(requester, pool, batch.Config{
		Workers:  cfg.Batch.Workers,
		Deadline: cfg.Batch.Deadline,
	}, batch.WithEventSink(events.NewLogSink(nil)))

	summary := orch.Run(ctx, reports)

	if !args.noStore && cfg.Store.Path != "" {
		runs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer runs.Close()
		if err := runs.SaveRun(ctx, summary, reports); err != nil {
			return err
		}
	}
	return writeOutput(args.outPath, args.outFormat, summary, reports)
}

func readMatrixFile(path string) (*domain.TopicMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	return sheet.ReadMatrix(f)
}

func scoreFile(scorer *scoring.Scorer, matrix *domain.TopicMatrix, questions int, args processArgs) ([]domain.StudentReport, error) {
	f, err := os.Open(args.sheetsPath)
	if err != nil {
		return nil, fmt.Errorf("open sheets: %w", err)
	}
	defer f.Close()

	if args.verdictMode {
		rows, err := sheet.ReadVerdictSheets(f)
		if err != nil {
			return nil, err
		}
		reports := make([]domain.StudentReport, len(rows))
		for i, row := range rows {
			reports[i] = newReport(row.StudentID, row.Name, row.Class,
				scorer.ScoreVerdicts(row.Verdicts, matrix, questions))
		}
		return reports, nil
	}

	sheets, err := sheet.ReadSheets(f)
	if err != nil {
		return nil, err
	}
	reports := make([]domain.StudentReport, len(sheets))
	for i, sh := range sheets {
		reports[i] = newReport(sh.StudentID, sh.Name, sh.Class,
			scorer.Score(sh, matrix, questions))
	}
	return reports, nil
}

func newReport(id, name, class string, score domain.ScoreResult) domain.StudentReport {
	outcome := domain.OutcomePending
	if id == "" {
		id = domain.PlaceholderStudentID
		outcome = domain.OutcomeInvalid
	}
	return domain.StudentReport{
		StudentID: id,
		Name:      name,
		Class:     class,
		Score:     score,
		Outcome:   outcome,
	}
}

func blankPolicy(cfg config.ScoringConfig) scoring.BlankPolicy {
	if cfg.BlankPolicy == "skipped" {
		return scoring.BlankCountsSkipped
	}
	return scoring.BlankCountsWrong
}

func buildPool(cfg config.Config) *credential.Pool {
	opts := []credential.Option{
		credential.WithRateLimitCooldown(cfg.Credentials.RateLimitCooldown),
		credential.WithExhaustionThreshold(cfg.Credentials.ExhaustionThreshold),
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, credential.WithSharedWindow(
			credential.NewRedisWindow(client, cfg.Redis.KeyPrefix)))
	}
	return credential.NewPool(cfg.Credentials.APIKeys, cfg.Credentials.ServiceAccountToken, opts...)
}

func buildHandler(cfg config.Config) gemini.Handler {
	client := gemini.NewClient(gemini.WithModel(cfg.Generation.Model))
	return gemini.Chain(client,
		gemini.WithLogging(slog.Default()),
		// Stay just under one request per second across all workers.
		gemini.WithPacing(rate.Limit(1), cfg.Batch.Workers),
		gemini.WithAttemptTimeout(cfg.Generation.AttemptTimeout),
	)
}

func writeOutput(path, format string, summary batch.Summary, reports []domain.StudentReport) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	switch format {
	case "", "json":
		return writeJSON(w, summary, reports)
	case "csv":
		return writeCSV(w, reports)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
