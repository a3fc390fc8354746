package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/prams2104/opspilot/internal/ingestion"
	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
	"github.com/prams2104/opspilot/pkg/config"
	"github.com/prams2104/opspilot/pkg/db"
	"github.com/prams2104/opspilot/pkg/logger"
)

var (
	configPath = flag.String("config", "configs/config.toml", "config file path")
	tradesCSV  = flag.String("trades", "data/sample_trades.csv", "trades csv file")
	ledgerCSV  = flag.String("ledger", "data/sample_ledger.csv", "ledger csv file")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// DB 连接
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(&domain.Trade{}, &domain.LedgerEntry{}); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 装载数据，整表替换
	loader := ingestion.NewLoader(persistence.NewRepository(database.DB))

	tradeCount, err := loader.LoadTrades(ctx, *tradesCSV)
	if err != nil {
		logger.Fatal(ctx, "Failed to load trades", "file", *tradesCSV, "error", err)
	}

	ledgerCount, err := loader.LoadLedger(ctx, *ledgerCSV)
	if err != nil {
		logger.Fatal(ctx, "Failed to load ledger entries", "file", *ledgerCSV, "error", err)
	}

	fmt.Printf("Loaded %d trades and %d ledger entries\n", tradeCount, ledgerCount)
}
