package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/api"
	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/storage"
	"taskboard/pkg/activity"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $CONFIG_PATH/config.yaml or ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logFile.Close()

	cfg.Watch(func(next *config.Config) {
		if err := logging.SetLevel(log.StandardLogger(), next.Log.Level); err != nil {
			log.WithError(err).Warn("config reload: keeping previous log level")
			return
		}
		log.WithField("level", next.Log.Level).Info("config reloaded")
	}, func(err error) {
		log.WithError(err).Warn("config reload failed")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer stores.Close()

	server := api.New(stores.Tasks, stores.Memos, activity.NewBus(activity.DefaultHistory), api.Options{
		Backend:   stores.Backend,
		Location:  cfg.Location,
		MemoLimit: cfg.MemoLimit,
		Logger:    log.StandardLogger(),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		// streaming handlers end when the signal context is cancelled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "backend": stores.Backend}).Info("taskboard listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
