package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jabberwocky238/podrun/dblayer"
	"jabberwocky238/podrun/handlers"
	"jabberwocky238/podrun/k8s"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "listen, l",
		Value:  "localhost:9900",
		Usage:  "Listen address",
		EnvVar: "PODRUN_LISTEN",
	},
	cli.StringFlag{
		Name:   "db, d",
		Usage:  "Postgres DSN for the run history",
		EnvVar: "PODRUN_DB_DSN",
	},
	cli.DurationFlag{
		Name:   "worker-interval",
		Value:  k8s.DefaultWorkerInterval,
		Usage:  "How often the worker checks for queued runs",
		EnvVar: "PODRUN_WORKER_INTERVAL",
	},
}

func serveAction(c *cli.Context) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !c.Bool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Database
	if err := dblayer.InitDB(c.String("db")); err != nil {
		return cli.NewExitError("Failed to connect to database: "+err.Error(), 1)
	}
	defer dblayer.DB.Close()

	// 2. Kubernetes client and run worker
	if err := k8s.InitK8s(c.String("kubeconfig")); err != nil {
		logger.Warn("K8s client init failed, queued runs will not be executed", zap.Error(err))
	} else {
		logger.Info("K8s client initialized")
		ctl := newController(c, newBuilder(c), logger, nil)
		k8s.StartWorker(ctl, c.Duration("worker-interval"), logger)
		defer k8s.StopWorker()
	}

	// 3. HTTP server
	listen := c.String("listen")
	srv := &http.Server{Addr: listen, Handler: handlers.NewRouter()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return cli.NewExitError("listen error: "+err.Error(), 1)
	}

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
