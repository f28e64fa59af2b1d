package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/cost"
	"github.com/forecastlab/verdict-cli/internal/store"
	"github.com/forecastlab/verdict-cli/internal/validator"
	"github.com/forecastlab/verdict-cli/internal/worker"
	"github.com/forecastlab/verdict-cli/pkg/anthropic"
	"github.com/forecastlab/verdict-cli/pkg/serper"
)

var validateWorkers int

// validatorEnv holds everything the validate command wires together.
type validatorEnv struct {
	Store      *store.PostgresStore
	Tracker    *cost.Tracker
	CostLog    *cost.Logger
	Supervisor *worker.Supervisor
}

func (e *validatorEnv) Close() {
	_ = e.Store.Close()
}

// initValidator builds the full validation stack from config.
func initValidator(ctx context.Context) (*validatorEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	if err != nil {
		return nil, err
	}

	tracker := cost.NewTracker(cost.Rates{
		SearchPlanMonthly:    cfg.Pricing.SearchPlanMonthly,
		SearchQueriesPerPlan: cfg.Pricing.SearchQueriesPerPlan,
		LLMInputPerMTok:      cfg.Pricing.LLMInputPerMTok,
		LLMOutputPerMTok:     cfg.Pricing.LLMOutputPerMTok,
	})
	entries, err := cost.ReadLog(cfg.CostLog.Path)
	if err != nil {
		zap.L().Warn("could not reload cost history", zap.Error(err))
	}
	tracker.LoadHistorical(entries)

	var keywords []string
	if cfg.PreFilter.KeywordsFile != "" {
		keywords, err = validator.LoadRejectKeywords(cfg.PreFilter.KeywordsFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	chat := anthropic.NewClient(cfg.Anthropic.Key)
	search := serper.NewClient(cfg.Serper.Key,
		serper.WithBaseURL(cfg.Serper.BaseURL),
		serper.WithRateLimit(cfg.Serper.RateLimit),
	)

	pipeline := validator.NewPipeline(cfg.Validator, st,
		validator.NewPreFilter(cfg.Validator.Thresholds, keywords),
		validator.NewEnhancer(chat, cfg.Anthropic.EnhancerModel),
		validator.NewSearcher(search, cfg.Validator.ResultsPerQuery, cfg.Validator.MaxTotalResults),
		validator.NewJudge(chat, cfg.Anthropic.JudgeModel),
	)

	workers := cfg.Validator.Workers
	if validateWorkers > 0 {
		workers = validateWorkers
	}

	costLog := cost.NewLogger(cfg.CostLog.Path)
	sup := worker.NewSupervisor(workers, st.Pool(), st, pipeline, tracker, costLog, worker.Config{
		Filters: store.LeaseFilters{
			MinFilterConfidence: cfg.Validator.Thresholds.MinFilterConfidence,
			MinQuality:          cfg.Validator.Thresholds.MinQuality,
			MinLLMConfidence:    cfg.Validator.Thresholds.MinLLMConfidence,
			MaxVagueness:        cfg.Validator.Thresholds.MaxVagueness,
		},
		IdleSleep:  time.Duration(cfg.Validator.IdleSleepSecs) * time.Second,
		ErrorSleep: time.Duration(cfg.Validator.ErrorSleepSecs) * time.Second,
	})

	return &validatorEnv{
		Store:      st,
		Tracker:    tracker,
		CostLog:    costLog,
		Supervisor: sup,
	}, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validation worker pool",
	Long:  "Starts N workers that continuously lease matured predictions, validate them against web evidence, and write outcomes. Runs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initValidator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: newStatusRouter(env.Tracker, env.Store),
		}
		go func() {
			zap.L().Info("status server listening", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		if err := env.Supervisor.Run(ctx); err != nil {
			return eris.Wrap(err, "validate: worker pool")
		}

		printSummary(cmd, env.Tracker.Snapshot())
		return nil
	},
}

// printSummary writes the end-of-session totals to stdout after the workers
// have drained.
func printSummary(cmd *cobra.Command, snap cost.Snapshot) {
	s := snap.Session
	cmd.Printf("\nSession summary\n")
	cmd.Printf("  validated:        %d\n", s.Validated)
	for outcome, n := range s.Outcomes {
		cmd.Printf("    %-22s %d\n", outcome+":", n)
	}
	cmd.Printf("  search API calls: %d\n", s.SearchCalls)
	cmd.Printf("  tokens in/out:    %d / %d\n", s.InputTokens, s.OutputTokens)
	cmd.Printf("  session cost:     $%.4f (search $%.4f, LLM $%.4f)\n",
		s.TotalCostUSD, s.SearchCostUSD, s.LLMCostUSD)
	cmd.Printf("  all-time cost:    $%.4f over %d validations\n",
		snap.Historical.TotalCostUSD, snap.Historical.Validated)
}

func init() {
	validateCmd.Flags().IntVar(&validateWorkers, "workers", 0, "worker count (default from config)")
	rootCmd.AddCommand(validateCmd)
}
