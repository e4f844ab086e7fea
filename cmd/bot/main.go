package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/trade_risk_engine/internal/config"
	"github.com/vitos/trade_risk_engine/internal/engine"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/broker"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/calendar"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/logger"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/signals"
	"github.com/vitos/trade_risk_engine/internal/infrastructure/storage"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.AuditFile != "" {
		log, err = logger.NewFileLogger(cfg.Logging.AuditFile, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Gateway
	gwCfg := cfg.Gateway
	if gwCfg.RESTURL == "" {
		gwCfg.RESTURL = broker.DefaultBaseURL
	}
	if gwCfg.WSURL == "" {
		gwCfg.WSURL = broker.DefaultWSURL
	}
	gateway := broker.NewGatewayAdapter(gwCfg.APIKey, gwCfg.APISecret, gwCfg.RESTURL, gwCfg.WSURL)

	// 5. Init Restriction Calendar
	var events []calendar.NewsEvent
	if cfg.Restrictions.NewsSchedulePath != "" {
		events, err = calendar.LoadEvents(cfg.Restrictions.NewsSchedulePath)
		if err != nil {
			log.Fatal("Failed to load news schedule", zap.Error(err))
		}
	}
	cal, err := calendar.New(events,
		time.Duration(cfg.Restrictions.NewsWindowMinutes)*time.Minute,
		time.Duration(cfg.Restrictions.CloseWindowMinutes)*time.Minute,
		cfg.Restrictions.MarketCloseTime)
	if err != nil {
		log.Fatal("Failed to init restriction calendar", zap.Error(err))
	}

	// 6. Init Engine
	calc := engine.NewStopLossCalculator(cfg.Risk.PointValues)
	planner := engine.NewStopLossPlanner(calc, cfg.Risk.GroupStopLoss, cfg.Risk.MaxRiskPerGroup, cfg.Risk.StrictStopSide, log)
	riskCalc, err := engine.NewRiskCalculator(cfg.ScalingConfig(), planner, store, log)
	if err != nil {
		log.Fatal("Invalid scaling configuration", zap.Error(err))
	}
	if err := riskCalc.Restore(context.Background()); err != nil {
		log.Error("Failed to restore position groups", zap.Error(err))
	}

	suspensions := engine.NewSuspensionStore(store, log)
	if err := suspensions.Restore(context.Background()); err != nil {
		log.Error("Failed to restore suspended items", zap.Error(err))
	}

	symbol := cfg.Trading.Symbol
	executor := engine.NewTradeExecutor(
		gateway,
		symbol,
		riskCalc,
		engine.NewDuplicateFilter(log),
		engine.NewExitManager(gateway, log),
		engine.NewRiskMonitor(gateway, cfg.Risk.DailyLossLimit, log),
		engine.NewRestrictionManager(gateway, cal, suspensions, symbol, log),
		engine.NewOrderExecutor(gateway, store, log),
		store,
		log,
	)
	executor.SetObserver(func(s engine.CycleSummary) {
		log.Debug("cycle finished",
			zap.Int("entries_received", s.EntriesReceived),
			zap.Int("entries_allowed", s.EntriesAllowed),
			zap.Int("orders_placed", s.OrdersPlaced),
			zap.Int("orders_failed", s.OrdersFailed),
			zap.Int("positions_closed", s.PositionsClosed),
			zap.Bool("risk_breached", s.RiskBreached),
			zap.Bool("trade_authorized", s.TradeAuthorized))
	})

	// 7. Init Signal Source
	spoolDir := cfg.Trading.SpoolDir
	if spoolDir == "" {
		spoolDir = "signals"
	}
	source, err := signals.NewFileSource(spoolDir, log)
	if err != nil {
		log.Fatal("Failed to init signal source", zap.Error(err))
	}

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 9. Connect Price Stream
	if err := gateway.ConnectWS([]string{symbol}); err != nil {
		log.Error("Failed to connect price stream, REST fallback only", zap.Error(err))
	}

	// 10. Management Cycle Loop
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Polling.CycleMs) * time.Millisecond)
		defer ticker.Stop()

		for {
			ctx := context.Background()
			now := time.Now()

			batch, err := source.NextBatch(ctx, now)
			if err != nil {
				log.Error("Failed to read signal batch", zap.Error(err))
			} else if err := executor.Manage(ctx, batch, now); err != nil {
				log.Error("Management cycle failed", zap.Error(err))
			}

			select {
			case <-ticker.C:
				continue
			case <-stop:
				return
			}
		}
	}()

	// 11. Metrics Server
	if cfg.Metrics.Port > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("Risk engine started",
		zap.String("symbol", symbol),
		zap.Int("num_entries", cfg.Risk.NumEntries),
		zap.String("scaling_type", cfg.Risk.ScalingType),
		zap.Float64("daily_loss_limit", cfg.Risk.DailyLossLimit))

	<-stop
	log.Info("Shutting down")
}
