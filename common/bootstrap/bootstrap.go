package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/blockdoc/blockdoc/common/cache"
	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/config"
	"github.com/blockdoc/blockdoc/common/db"
	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/queue"
	"github.com/blockdoc/blockdoc/common/redis"
	"github.com/blockdoc/blockdoc/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for both binaries
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize Redis and the registration queue
	if !options.skipRedis {
		components.Logger.Info("connecting to redis")
		components.Redis, err = redis.NewClient(ctx, &components.Config.Redis, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})

		components.Queue = queue.New(
			components.Redis.GetUnderlying(),
			components.Config.Queue.RegistrationQueue,
			components.Config.Queue.MaxAttempts,
			components.Config.Queue.Backoff,
			components.Logger,
		)
	}

	// 5. Initialize cache
	components.Cache = cache.NewMemoryCache(components.Logger)
	components.addCleanup(func() error {
		return components.Cache.Close()
	})

	// 6. Initialize chain access. Bad key material, a bad contract address or
	// a defective ABI must fail here, at startup, never per-request.
	if !options.skipChain {
		bc := components.Config.Blockchain

		components.Chain = chain.NewClient(bc.ProviderURL, bc.RPCTimeout, components.Logger)

		components.Codec, err = chain.NewCodec(bc.ContractAddress)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize contract codec: %w", err)
		}

		components.Signer, err = chain.NewSigner(bc.PrivateKey, bc.ChainID)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize transaction signer: %w", err)
		}

		// The signer derives the sender from the key; a configured account
		// address that disagrees means the operator wired the wrong key.
		if bc.AccountAddress != "" && !strings.EqualFold(bc.AccountAddress, components.Signer.Address().Hex()) {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("configured account %s does not match signing key address %s",
				bc.AccountAddress, components.Signer.Address().Hex())
		}

		components.Logger.Info("chain access initialized",
			"provider", bc.ProviderURL,
			"contract", components.Codec.ContractAddress().Hex(),
			"sender", components.Signer.Address().Hex(),
			"network", bc.NetworkName,
		)
	}

	// 7. Initialize telemetry
	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			// Telemetry failure never blocks startup
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"chain", components.Chain != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
