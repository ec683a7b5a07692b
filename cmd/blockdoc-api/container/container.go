package container

import (
	"math/big"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/service"
	"github.com/blockdoc/blockdoc/common/anchor"
	"github.com/blockdoc/blockdoc/common/bootstrap"
	"github.com/blockdoc/blockdoc/common/hash"
	"github.com/blockdoc/blockdoc/common/ratelimit"
	"github.com/blockdoc/blockdoc/common/repository"
	"github.com/blockdoc/blockdoc/common/storage"
	"github.com/blockdoc/blockdoc/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	Documents *repository.DocumentRepository

	// Infrastructure
	Store       *storage.Store
	Validator   *validation.UploadValidator
	Hasher      *hash.Computer
	RateLimiter *ratelimit.RateLimiter

	// Registration pipeline
	Poller    *anchor.Poller
	Registrar *anchor.Registrar
	Verifier  *anchor.Verifier

	// Services
	Ingest *service.IngestService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	documents := repository.NewDocumentRepository(components.DB)

	store, err := storage.NewStore(&cfg.Storage, components.Logger)
	if err != nil {
		return nil, err
	}

	validator := validation.NewUploadValidator(cfg.Storage.MaxUploadSize)
	hasher := hash.NewComputer()
	rateLimiter := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)

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

	verifier := anchor.NewVerifier(
		components.Chain,
		documents,
		components.Codec,
		cfg.Blockchain.NetworkName,
		components.Logger,
	)

	ingest := service.NewIngestService(&service.IngestOpts{
		Documents:  documents,
		Store:      store,
		Validator:  validator,
		Hasher:     hasher,
		Queue:      components.Queue,
		Components: components,
	})

	return &Container{
		Components:  components,
		Documents:   documents,
		Store:       store,
		Validator:   validator,
		Hasher:      hasher,
		RateLimiter: rateLimiter,
		Poller:      poller,
		Registrar:   registrar,
		Verifier:    verifier,
		Ingest:      ingest,
	}, nil
}
