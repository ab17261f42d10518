package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symmio/internal/chain"
	"symmio/internal/client/binance"
	"symmio/internal/client/subgraph"
	"symmio/internal/config"
	cronrunner "symmio/internal/cron"
	"symmio/internal/db"
	"symmio/internal/handler"
	"symmio/internal/logger"
	"symmio/internal/notification"
	"symmio/internal/report"
	gormrepository "symmio/internal/repository/gorm"
	"symmio/internal/snapshot"
	syncer "symmio/internal/sync"
)

func main() {
	cfgPath := os.Getenv("SYM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SYM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	sender := notification.NewTelegramSender(cfg.Telegram, logger)

	var runners []*tenantRunner
	for _, tenant := range cfg.Tenants {
		if err := tenant.Validate(); err != nil {
			logger.Error("tenant excluded", zap.Error(err))
			continue
		}
		runner, err := buildTenantRunner(cfg, tenant, store, sender, logger)
		if err != nil {
			logger.Error("tenant setup failed",
				zap.String("tenant", tenant.Name),
				zap.Error(err))
			continue
		}
		runners = append(runners, runner)
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	snapshotHandler := &handler.SnapshotHandler{Repo: store}
	snapshotHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		for _, runner := range runners {
			runner := runner
			if _, err := cronRunner.AddEvery(cfg.Cron.FetchInterval, runner.run); err != nil {
				logger.Fatal("cron schedule failed",
					zap.String("tenant", runner.tenant.Name),
					zap.Error(err))
			}
		}
		cronRunner.Start()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if cfg.Cron.Enabled {
		cronRunner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}

// tenantRunner owns everything one tenant's fetch job needs: clients,
// synchronizer, computators, and the reporter.
type tenantRunner struct {
	tenant        config.TenantConfig
	eth           *ethclient.Client
	synchronizer  *syncer.Synchronizer
	affiliate     *snapshot.AffiliateComputator
	hedger        *snapshot.HedgerComputator
	hedgerBinance *snapshot.HedgerBinanceComputator
	liquidator    *snapshot.LiquidatorComputator
	accounts      map[string]*binance.Client
	reporter      *report.Reporter
	logger        *zap.Logger
}

func buildTenantRunner(cfg config.Config, tenant config.TenantConfig, store *gormrepository.Store, sender *notification.TelegramSender, logger *zap.Logger) (*tenantRunner, error) {
	eth, err := ethclient.Dial(tenant.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	reader := chain.NewReader(eth, tenant.SymmioAddress, tenant.CollateralAddress, tenant.MulticallAddress)

	sgClient := subgraph.NewClient(
		&http.Client{Timeout: cfg.Subgraph.Timeout},
		tenant.SubgraphURL,
		cfg.Subgraph.PageLimit,
		cfg.Subgraph.MaxPages,
		logger,
	)
	synchronizer := syncer.New(store, sgClient, reader, tenant, logger)

	publicBinance := binance.NewClient(&http.Client{Timeout: cfg.Binance.Timeout}, cfg.Binance.BaseURL, "", "")
	prices := binance.NewFundingCache(publicBinance, cfg.Binance.FundingCacheTTL)

	accounts := make(map[string]*binance.Client, len(tenant.Hedgers))
	for _, hedger := range tenant.Hedgers {
		if hedger.BinanceAPIKey == "" {
			continue
		}
		accounts[hedger.Name] = binance.NewClient(
			&http.Client{Timeout: cfg.Binance.Timeout},
			cfg.Binance.BaseURL,
			hedger.BinanceAPIKey,
			hedger.BinanceAPISecret,
		)
	}

	deps := snapshot.Deps{
		Repo:   store,
		Chain:  reader,
		Prices: prices,
		Logger: logger,
		Debug:  cfg.App.Debug,
	}
	return &tenantRunner{
		tenant:        tenant,
		eth:           eth,
		synchronizer:  synchronizer,
		affiliate:     snapshot.NewAffiliateComputator(deps, tenant.Name),
		hedger:        snapshot.NewHedgerComputator(deps, tenant.Name),
		hedgerBinance: snapshot.NewHedgerBinanceComputator(deps, tenant.Name),
		liquidator:    snapshot.NewLiquidatorComputator(deps, tenant.Name),
		accounts:      accounts,
		reporter:      report.NewReporter(store, sender, tenant.Name, cfg.Cron.FetchInterval, logger),
		logger:        logger,
	}, nil
}

// run is one full sync-then-snapshot pass. Any failure aborts the pass with
// the checkpoint unadvanced; the next tick retries from the same block.
func (r *tenantRunner) run(ctx context.Context) {
	if err := r.runOnce(ctx); err != nil {
		r.logger.Warn("tenant run failed",
			zap.String("tenant", r.tenant.Name),
			zap.Error(err))
		r.reporter.Alert(ctx, "run-failure",
			fmt.Sprintf("[%s] run failed: %v", r.tenant.Name, err))
	}
}

func (r *tenantRunner) runOnce(ctx context.Context) error {
	rc, err := r.synchronizer.LoadOrCreateRuntimeConfiguration(ctx)
	if err != nil {
		return err
	}

	head, err := chain.Latest(ctx, r.eth)
	if err != nil {
		return err
	}
	block := head.Backward(rc.SnapshotBlockLag)

	if err := r.synchronizer.Run(ctx, rc, block.Number); err != nil {
		return err
	}

	for _, affiliate := range r.tenant.Affiliates {
		snap, err := r.affiliate.Compute(ctx, rc, block.Number, affiliate)
		if err != nil {
			return err
		}
		if text, err := r.reporter.AffiliateReport(ctx, snap); err != nil {
			r.logger.Warn("affiliate report failed", zap.Error(err))
		} else {
			r.reporter.Alert(ctx, "affiliate-"+affiliate.Name, text)
		}
	}

	for _, hedger := range r.tenant.Hedgers {
		snap, err := r.hedger.Compute(ctx, rc, block.Number, hedger)
		if err != nil {
			return err
		}
		if text, err := r.reporter.HedgerReport(ctx, snap); err != nil {
			r.logger.Warn("hedger report failed", zap.Error(err))
		} else {
			r.reporter.Alert(ctx, "hedger-"+hedger.Name, text)
		}

		if account, ok := r.accounts[hedger.Name]; ok {
			if _, err := r.hedgerBinance.Compute(ctx, block, hedger.Name, account); err != nil {
				return err
			}
		}
	}

	if len(r.tenant.Liquidators) > 0 {
		snap, err := r.liquidator.Compute(ctx, rc, block.Number, r.tenant.Liquidators)
		if err != nil {
			return err
		}
		if text, err := r.reporter.LiquidatorReport(ctx, snap); err != nil {
			r.logger.Warn("liquidator report failed", zap.Error(err))
		} else {
			r.reporter.Alert(ctx, "liquidators", text)
		}
	}

	return r.synchronizer.Checkpoint(ctx, rc, block.Number)
}
