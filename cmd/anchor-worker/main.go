package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockdoc/blockdoc/cmd/anchor-worker/worker"
	"github.com/blockdoc/blockdoc/common/anchor"
	"github.com/blockdoc/blockdoc/common/bootstrap"
	"github.com/blockdoc/blockdoc/common/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap service components
	components, err := bootstrap.Setup(ctx, "anchor-worker", bootstrap.WithDBInitHook(repository.EnsureSchema))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	components.Logger.Info("anchor-worker starting")

	cfg := components.Config
	documents := repository.NewDocumentRepository(components.DB)

	poller := anchor.NewPoller(&anchor.PollerOpts{
		RPC:               components.Chain,
		Store:             documents,
		Logger:            components.Logger,
		PollCount:         cfg.Worker.ConfirmPollCount,
		PollDelay:         cfg.Worker.ConfirmPollDelay,
		StalePendingAfter: cfg.Worker.StalePendingAfter,
	})

	var fixedGasPrice *big.Int
	if cfg.Blockchain.GasPriceWei > 0 {
		fixedGasPrice = big.NewInt(cfg.Blockchain.GasPriceWei)
	}

	registrar := anchor.NewRegistrar(&anchor.RegistrarOpts{
		RPC:           components.Chain,
		Store:         documents,
		Codec:         components.Codec,
		Signer:        components.Signer,
		Poller:        poller,
		Logger:        components.Logger,
		GasLimit:      cfg.Blockchain.GasLimit,
		FixedGasPrice: fixedGasPrice,
		GasCache:      components.Cache,
		GasCacheTTL:   cfg.Blockchain.GasPriceCacheTTL,
		NonceCeiling:  cfg.Blockchain.NonceSanityCeiling,
	})

	anchorWorker := worker.New(&worker.Opts{
		Queue:         components.Queue,
		Documents:     documents,
		Registrar:     registrar,
		Poller:        poller,
		Locks:         components.Redis,
		Logger:        components.Logger,
		SweepInterval: cfg.Worker.SweepInterval,
		HealthPort:    cfg.Worker.HealthPort,
	})

	// Run worker in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := anchorWorker.Run(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("anchor worker error: %w", err)
		}
	}()

	components.Logger.Info("anchor-worker started successfully")

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		components.Logger.Error("worker failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		components.Logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}

	components.Logger.Info("anchor-worker shutting down gracefully")
}
