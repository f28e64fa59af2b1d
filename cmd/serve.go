package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/cost"
	"github.com/forecastlab/verdict-cli/internal/store"
)

var servePort int

// pinger is what the health endpoint probes. Nil means no database is
// attached (standalone serve mode).
type pinger interface {
	Ping(ctx context.Context) error
}

// newStatusRouter builds the HTTP surface shared by the validate and serve
// commands: a health probe and a JSON snapshot of counters and workers.
func newStatusRouter(tracker *cost.Tracker, db pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if db != nil {
			if err := db.Ping(req.Context()); err != nil {
				status = map[string]string{"status": "degraded", "database": err.Error()}
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tracker.Snapshot())
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve validation status without running workers",
	Long:  "Exposes the health and status endpoints over the accumulated cost log. Useful next to a worker pool running elsewhere.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tracker := cost.NewTracker(cost.Rates{
			SearchPlanMonthly:    cfg.Pricing.SearchPlanMonthly,
			SearchQueriesPerPlan: cfg.Pricing.SearchQueriesPerPlan,
			LLMInputPerMTok:      cfg.Pricing.LLMInputPerMTok,
			LLMOutputPerMTok:     cfg.Pricing.LLMOutputPerMTok,
		})
		entries, err := cost.ReadLog(cfg.CostLog.Path)
		if err != nil {
			return err
		}
		tracker.LoadHistorical(entries)

		// Attach the database health probe when one is configured.
		var db pinger
		if cfg.Store.DatabaseURL != "" {
			st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
			if err != nil {
				return err
			}
			defer st.Close()
			db = st
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newStatusRouter(tracker, db),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down status server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("status server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
