package main

import (
	"context"
	"os"
	"time"

	"github.com/P4X666/small-ledger/internal/amqp"
	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/auth"
	"github.com/P4X666/small-ledger/internal/cli"
	"github.com/P4X666/small-ledger/internal/log"
	"github.com/P4X666/small-ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("starting ledger-sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitLocalStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	tokens := auth.NewTokenStore(repo, logger)
	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout,
		api.WithTokenSource(tokens),
		api.WithLogger(logger))

	syncWorker := worker.NewSyncWorker(repo, client.Transactions, cfg.SyncBatchSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover anything missed while the worker was down
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("startup sync check failed", log.FieldError, err)
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeWithReconnect(ctx, func(msg *amqp.RecordSyncMessage) error {
				return syncWorker.HandleSyncMessage(ctx, msg)
			})
			if err != nil && err != context.Canceled {
				logger.Error("message consumption failed", log.FieldError, err)
			}
			cancel()
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic backlog passes only")
	}

	go syncWorker.RunPeriodicBacklogPass(ctx, cfg.SyncInterval)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, cancel)
	select {
	case <-ctx.Done():
		logger.Info("worker stopped")
	case <-shutdownCtx.Done():
		<-done
	}
}
