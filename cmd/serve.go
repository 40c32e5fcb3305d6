package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/monitoring"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv)
	},
}

// shutdownTimeout bounds the drain of in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

// runServer serves until the context is canceled, then drains in-flight
// requests before returning. The canceled signal context cannot carry the
// drain; Shutdown gets its own deadline.
func runServer(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// buildRouter wires the HTTP routes over the environment. The analysis
// endpoint is asynchronous; results land in the store and are read back
// through the report routes.
func buildRouter(ctx context.Context, env *env) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Ticker          string `json:"ticker"`
			ContractAddress string `json:"contract_address"`
			Chain           string `json:"chain"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		chain, err := model.ParseChain(body.Chain)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		analysisReq := model.AnalysisRequest{
			Ticker:          body.Ticker,
			ContractAddress: body.ContractAddress,
			Chain:           chain,
		}
		if err := analysisReq.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		runID := uuid.NewString()

		go func() {
			if env.Orchestrator == nil {
				return
			}
			report, err := env.Orchestrator.Run(ctx, analysisReq)
			switch {
			case errors.Is(err, store.ErrAlreadyPersisted):
				zap.L().Info("analysis skipped, report already persisted",
					zap.String("run_id", runID),
					zap.String("contract", analysisReq.ContractAddress))
			case err != nil:
				zap.L().Error("analysis failed",
					zap.String("run_id", runID),
					zap.String("contract", analysisReq.ContractAddress),
					zap.Error(err))
			default:
				zap.L().Info("analysis complete",
					zap.String("run_id", runID),
					zap.String("contract", analysisReq.ContractAddress),
					zap.Float64("final_score", report.FinalScore),
					zap.String("assessment", string(report.FinalAssessment)))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"run_id":   runID,
			"contract": analysisReq.ContractAddress,
		})
	})

	r.Get("/reports", func(w http.ResponseWriter, req *http.Request) {
		filter := store.ReportFilter{
			Chain:       model.Chain(req.URL.Query().Get("chain")),
			Assessment:  model.Assessment(req.URL.Query().Get("assessment")),
			SortByScore: req.URL.Query().Get("sort") == "score",
		}
		filter.Limit, _ = strconv.Atoi(req.URL.Query().Get("limit"))
		filter.Offset, _ = strconv.Atoi(req.URL.Query().Get("offset"))

		reports, err := env.Store.ListReports(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list reports failed")
			return
		}
		writeJSON(w, http.StatusOK, reports)
	})

	r.Get("/reports/{address}", func(w http.ResponseWriter, req *http.Request) {
		report, err := env.Store.GetReport(req.Context(), chi.URLParam(req, "address"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get report failed")
			return
		}
		if report == nil {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		lookback, _ := strconv.Atoi(req.URL.Query().Get("lookback"))
		snap, err := monitoring.NewCollector(env.Store).Collect(req.Context(), lookback)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "collect metrics failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
