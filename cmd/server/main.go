package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/compositor/internal/asset"
	"github.com/inamate/compositor/internal/auth"
	"github.com/inamate/compositor/internal/composition"
	"github.com/inamate/compositor/internal/config"
	"github.com/inamate/compositor/internal/export"
	mw "github.com/inamate/compositor/internal/middleware"
	"github.com/inamate/compositor/internal/raster"
	"github.com/inamate/compositor/internal/session"
	"github.com/inamate/compositor/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	images := raster.NewLoader(cfg.AssetBaseURL)

	hub := session.NewHub(store, images, cfg.Engine(), cfg.SaveInterval)
	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	authService := auth.NewService(cfg.JWTSecret)

	compositionService := composition.NewService(store, hub)
	compositionHandler := composition.NewHandler(compositionService)

	assetHandler := asset.NewHandler(cfg.AssetDir)
	exportHandler := export.NewHandler(compositionService, images, cfg.FfmpegPath)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset endpoints (public, used by the playground too)
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/compositions", compositionHandler.List).Methods("GET")
	api.HandleFunc("/compositions", compositionHandler.Create).Methods("POST")
	api.HandleFunc("/compositions/{compositionId}", compositionHandler.Get).Methods("GET")
	api.HandleFunc("/compositions/{compositionId}", compositionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/compositions/{compositionId}/snapshots", compositionHandler.History).Methods("GET")
	api.HandleFunc("/compositions/{compositionId}/snapshots/latest", compositionHandler.Latest).Methods("GET")
	api.HandleFunc("/compositions/{compositionId}/frame.png", exportHandler.Frame).Methods("GET")
	api.HandleFunc("/compositions/{compositionId}/export", exportHandler.Export).Methods("POST")
	api.HandleFunc("/assets/{assetId}", assetHandler.DeleteAsset).Methods("DELETE")

	// WebSocket endpoint
	r.HandleFunc("/ws/compositions/{compositionId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, compositionService, cfg.Origins())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop the hub first so every open composition is saved
		stopHub()
		<-hubDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects to Postgres, or keeps snapshots in memory when no
// database is configured.
func openStore(ctx context.Context, databaseURL string) (snapshot.Store, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, snapshots are kept in memory")
		return snapshot.NewMemoryStore(), func() {}, nil
	}

	pool, err := snapshot.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := snapshot.NewPgStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, authSvc *auth.Service, compositions *composition.Service, origins []string) {
	compositionID := mux.Vars(r)["compositionId"]

	var userID string
	if compositionID == composition.PlaygroundID {
		// All anonymous visitors share the playground session
		userID = "anonymous"
	} else {
		var err error
		userID, err = authSvc.Authenticate(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if err := compositions.Authorize(r.Context(), compositionID, userID); err != nil {
			composition.HandleServiceError(w, err)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(hub, conn, userID, compositionID, clientID)
	if !hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns turns allowed origins into the host patterns websocket.Accept
// matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
