package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/report"
	"github.com/sells-group/catchment/internal/resilience"
	"github.com/sells-group/catchment/internal/sites"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve catchment analysis over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		a, err := openApp(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(a, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.String("driver", a.driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// catchmentRequest is the POST /v1/catchments body. One of StoreNo, Address
// or Center picks the center; Target defaults to the configured value.
type catchmentRequest struct {
	Role    catchment.Role    `json:"role"`
	Target  *int64            `json:"target"`
	Center  *catchment.Center `json:"center"`
	StoreNo string            `json:"store_no"`
	Address string            `json:"address"`
}

func buildRouter(a *app, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"driver":   a.driver,
			"breakers": a.breakers.States(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/states", func(w http.ResponseWriter, r *http.Request) {
			if !loadCatalog(w, r, a.catalog) {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"states": nonNil(a.catalog.States())})
		})

		r.Get("/stores", func(w http.ResponseWriter, r *http.Request) {
			if !loadCatalog(w, r, a.catalog) {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"stores": a.catalog.List(r.URL.Query().Get("state"))})
		})

		r.Post("/catchments", func(w http.ResponseWriter, r *http.Request) {
			var body catchmentRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.Role == "" {
				body.Role = catchment.RolePrimary
			}
			if !body.Role.Valid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown role %q", body.Role))
				return
			}

			in := centerInput{StoreNo: body.StoreNo, Address: body.Address}
			if body.Center != nil {
				in.Lng, in.Lat = &body.Center.Lng, &body.Center.Lat
			}
			if in.empty() {
				writeError(w, http.StatusBadRequest, "store_no, address or center is required")
				return
			}
			if in.StoreNo != "" && !loadCatalog(w, r, a.catalog) {
				return
			}
			center, err := a.resolveCenter(r.Context(), in)
			if err != nil {
				writeFailure(w, err)
				return
			}

			res, err := a.session.Run(r.Context(), catchment.Request{
				ID:     middleware.GetReqID(r.Context()),
				Role:   body.Role,
				Center: center,
				Target: a.target(body.Target),
			})
			if err != nil {
				writeFailure(w, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Get("/overlay", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/geo+json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(report.OverlayCollection(a.session.Overlay()))
		})

		r.Delete("/overlay", func(w http.ResponseWriter, r *http.Request) {
			a.session.Reset()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

// loadCatalog writes an error response and returns false when the store
// list is unavailable.
func loadCatalog(w http.ResponseWriter, r *http.Request, catalog *sites.Catalog) bool {
	if catalog == nil {
		writeError(w, http.StatusNotImplemented, "no store layer configured")
		return false
	}
	if err := catalog.Load(r.Context()); err != nil {
		zap.L().Error("load store catalog", zap.Error(err))
		writeError(w, http.StatusBadGateway, "store layer unavailable")
		return false
	}
	return true
}

// writeFailure maps an analysis error to a status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sites.ErrNotFound), errors.Is(err, errAddressNotMatched):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catchment.ErrQueryFailure):
		zap.L().Error("catchment query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "spatial query failed")
	case resilience.IsTransient(err):
		zap.L().Warn("upstream unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		zap.L().Error("catchment request failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
