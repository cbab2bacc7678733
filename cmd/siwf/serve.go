package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/siwf/adapters/events"
	"github.com/layer-3/siwf/adapters/keys"
	"github.com/layer-3/siwf/adapters/resolver"
	"github.com/layer-3/siwf/adapters/store"
	"github.com/layer-3/siwf/adapters/tokenizer"
	"github.com/layer-3/siwf/adapters/verifier"
	"github.com/layer-3/siwf/config"
	"github.com/layer-3/siwf/ports"
	"github.com/layer-3/siwf/service"
	httptransport "github.com/layer-3/siwf/transport/http"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the token verifying API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if level, _ := config.ParseLevel(cfg.Log.Level); level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		cache    = store.NewMemoryKeyCache()
		eventPub ports.EventPublisher = events.NopPublisher{}
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()

		cache = store.NewRedisKeyCache(redisClient, cfg.Issuer)
		eventPub = events.NewWatermillPublisher(publisher)
	}

	var (
		keySource ports.KeySource
		issuer    *httptransport.Issuer
	)

	if cfg.IssuerEnabled() {
		custody, closeCustody, err := custodyResolver(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeCustody()

		keySource, issuer, err = localIssuer(cfg, custody, eventPub, logger)
		if err != nil {
			return err
		}
		logger.Info("local token issuer enabled", "issuer", cfg.Issuer, "kid", cfg.Token.KeyID)
	} else {
		keySource = keys.NewRemoteKeySource(cfg.Keys.JWKSURL, cache,
			keys.WithFetchTimeout(cfg.Keys.FetchTimeout),
			keys.WithCacheTTL(cfg.Keys.CacheTTL),
			keys.WithLogger(logger),
		)
	}

	var userResolver ports.UserResolver
	switch cfg.Resolver.Kind {
	case config.ResolverStatic:
		userResolver = resolver.NewStaticResolver(cfg.Resolver.Addresses, cfg.Resolver.Strict)
	default:
		userResolver = resolver.NewFarcasterResolver(cfg.Resolver.APIURL, cfg.Resolver.Timeout, logger)
	}

	authService := service.NewAuthService(
		tokenizer.NewJWTVerifier(keySource, cfg.Issuer),
		userResolver,
		cfg.Domain,
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httptransport.SetupRouter(authService, issuer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "domain", cfg.Domain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func custodyResolver(ctx context.Context, cfg *config.Config) (ports.CustodyResolver, func(), error) {
	if cfg.Custody.Kind == config.CustodyStatic {
		return resolver.StaticCustody(cfg.Custody.Addresses), func() {}, nil
	}

	registry, client, err := resolver.DialIDRegistry(ctx, cfg.Custody.RPCURL, cfg.Custody.IDRegistry, cfg.Custody.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return registry, client.Close, nil
}

func localIssuer(cfg *config.Config, custody ports.CustodyResolver, eventPub ports.EventPublisher, logger *slog.Logger) (ports.KeySource, *httptransport.Issuer, error) {
	seed := common.FromHex(cfg.Token.SigningKey)
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("SIWF_ISSUER_KEY must be a %d byte hex seed", ed25519.SeedSize)
	}
	signKey := ed25519.NewKeyFromSeed(seed)

	tok, err := tokenizer.NewJWTTokenizer(signKey, cfg.Token.KeyID)
	if err != nil {
		return nil, nil, err
	}

	set := keys.KeySet{cfg.Token.KeyID: signKey.Public()}
	jwks, err := set.MarshalJWKS()
	if err != nil {
		return nil, nil, err
	}

	issuerService := service.NewIssuerService(
		service.IssuerConfig{
			Domain:   cfg.Domain,
			Issuer:   cfg.Issuer,
			TokenTTL: cfg.Token.TTL,
		},
		verifier.NewSIWEVerifier(),
		custody,
		tok,
		eventPub,
		logger,
	)

	return keys.NewStaticKeySource(set), &httptransport.Issuer{Service: issuerService, JWKS: jwks}, nil
}
