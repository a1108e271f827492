package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"probloom-client/internal/app"
	"probloom-client/internal/config"
	redispub "probloom-client/internal/infra/redis"
	transport "probloom-client/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the state service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	api, cleanup, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []app.StoreOption{
		app.WithLogger(logger.Named("store")),
		app.WithHistoryLimit(cfg.Store.HistoryLimit),
	}
	var publisher *redispub.SnapshotPublisher
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		hostname, _ := os.Hostname()
		publisher = redispub.NewSnapshotPublisher(redisClient, cfg.Redis.Channel, hostname+":"+finalPort,
			config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		opts = append(opts, app.WithObserver(publisher))
		logger.Info("publishing snapshots to redis", zap.String("addr", cfg.Redis.Addr))
	}

	store := app.NewStore(opts...)
	service := app.NewProblemService(api, store, logger.Named("service"))
	if err := service.LoadProblemSets(ctx); err != nil {
		logger.Warn("initial problem set load failed", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/state", transport.NewStateHandler(store))
	wsHandler := transport.NewWSHandler(service, logger.Named("ws"))
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	followCtx, stopFollow := context.WithCancel(ctx)
	followDone := make(chan struct{})
	if publisher != nil {
		go func() {
			defer close(followDone)
			followPeers(followCtx, publisher, wsHandler, logger.Named("peers"))
		}()
	} else {
		close(followDone)
	}
	defer func() {
		stopFollow()
		<-followDone
	}()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting state service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// followPeers forwards snapshots published by other instances to connected
// views until ctx is done.
func followPeers(ctx context.Context, publisher *redispub.SnapshotPublisher, ws *transport.WSHandler, logger *zap.Logger) {
	err := publisher.Follow(ctx, func(instance string, snap app.Snapshot) {
		logger.Debug("peer snapshot",
			zap.String("instance", instance),
			zap.Uint64("seq", snap.Seq),
			zap.String("type", string(snap.Tag)))
		ws.PeerSnapshot(instance, snap)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("peer follow stopped", zap.Error(err))
	}
}
