package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(orch, st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(orch *pipeline.Orchestrator, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/process", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL  string `json:"url"`
			Kind string `json:"kind"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		kind, err := parseKind(defaultKind(body.Kind))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := orch.ProcessURL(req.Context(), "", body.URL, kind)
		if err != nil {
			zap.L().Error("process request failed", zap.String("url", body.URL), zap.Error(err))
			writeError(w, http.StatusBadGateway, "processing failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Post("/api/sessions", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URLs []string `json:"urls"`
			Kind string   `json:"kind"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.URLs) == 0 {
			writeError(w, http.StatusBadRequest, "urls is required")
			return
		}
		kind, err := parseKind(defaultKind(body.Kind))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := orch.RunBatch(req.Context(), kind, body.URLs)
		if err != nil {
			zap.L().Error("batch start failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "batch start failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"session_id": job.SessionID,
			"total":      len(body.URLs),
		})
	})

	r.Get("/api/sessions", func(w http.ResponseWriter, req *http.Request) {
		limit := 0
		if l := req.URL.Query().Get("limit"); l != "" {
			v, err := strconv.Atoi(l)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = v
		}
		sessions, err := st.ListSessions(req.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list sessions failed")
			return
		}
		if sessions == nil {
			sessions = []model.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		sess, err := st.GetSession(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, sess)
	})

	r.Get("/api/sessions/{id}/logs", func(w http.ResponseWriter, req *http.Request) {
		entries, err := st.ListLogs(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list logs failed")
			return
		}
		if entries == nil {
			entries = []model.ProcessingLogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/records", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RecordFilter{
			SessionID: req.URL.Query().Get("session_id"),
		}
		if k := req.URL.Query().Get("kind"); k != "" {
			kind, err := parseKind(k)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.Kind = kind
		}
		if mc := req.URL.Query().Get("min_confidence"); mc != "" {
			v, err := strconv.ParseFloat(mc, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid min_confidence")
				return
			}
			filter.MinConfidence = v
		}

		records, err := st.ListRecords(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list records failed")
			return
		}
		if records == nil {
			records = []model.ExtractedRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	return r
}

func defaultKind(s string) string {
	if s == "" {
		return "job"
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
