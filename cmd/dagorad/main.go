package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dagora/config"
	"dagora/gateway"
	"dagora/gateway/middleware"
	"dagora/native/dispute"
	"dagora/native/listing"
	"dagora/native/order"
	"dagora/native/stake"
	"dagora/observability/logging"
	"dagora/state"
	"dagora/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	logger := logging.Setup("dagorad", os.Getenv("DAGORA_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	stakeToken, _ := config.ParseAddress(cfg.StakeToken)
	authority, _ := config.ParseAddress(cfg.Authority)
	feeRecipient, _ := config.ParseAddress(cfg.FeeRecipient)
	arbitratorAddr, _ := config.ParseAddress(cfg.Arbitrator)
	minimumStake, _ := config.ParseAmount(cfg.MinimumStake)
	arbitrationFee, _ := config.ParseAmount(cfg.ArbitrationFee)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open ledger database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := state.NewManager(db)

	stakeEng := stake.NewEngine(stakeToken, authority)
	stakeEng.SetState(ledger)

	disputeEng := dispute.NewEngine()
	disputeEng.SetState(ledger)
	disputeEng.SetArbitrator(dispute.NewStaticArbitrator(arbitratorAddr, arbitrationFee))
	disputeEng.SetTimeout(cfg.DisputeTimeout)

	// The listing engine acts through its vault address when locking and
	// burning seller collateral, so that address becomes the stake operator.
	listingVault, err := ledger.ModuleAddress(listing.ModuleName)
	if err != nil {
		logger.Error("derive listing vault", "error", err)
		os.Exit(1)
	}
	if err := stakeEng.SetOperator(authority, listingVault); err != nil {
		logger.Error("set stake operator", "error", err)
		os.Exit(1)
	}

	listingEng := listing.NewEngine(stakeEng, disputeEng, listingVault, minimumStake, cfg.BurnBps)
	listingEng.SetState(ledger)

	orderEng := order.NewEngine(listingEng, disputeEng, feeRecipient, cfg.ProtocolFeeBps)
	orderEng.SetState(ledger)

	disputeEng.RegisterClient(listing.ModuleName, listingEng)
	disputeEng.RegisterClient(order.ModuleName, orderEng)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: "dagorad",
		LogRequests: true,
	}, logger)
	limiter := middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst)

	server := gateway.NewServer(gateway.Config{
		Ledger:        ledger,
		Stake:         stakeEng,
		Listings:      listingEng,
		Orders:        orderEng,
		Disputes:      disputeEng,
		Logger:        logger,
		RateLimiter:   limiter,
		Observability: obs,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			os.Exit(1)
		}
	}
}
