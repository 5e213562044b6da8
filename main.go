package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/helpers"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	natssink "github.com/spooky-finn/marketsync/infrastructure/nats"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
	"github.com/spooky-finn/marketsync/provider"
	"github.com/spooky-finn/marketsync/rpc"
	"github.com/spooky-finn/marketsync/usecase"
)

var log = logger.WithComponent("main")

func main() {
	envFile := pflag.String("env-file", ".env", "optional env file with MARKETSYNC_* variables")
	symbol := pflag.String("symbol", "", "focus the market view on a symbol at start, e.g. BTCUSDT")
	userID := pflag.String("user", "", "load the favorites of this user at start")
	favoritesFile := pflag.String("favorites-file", "favorites.yaml", "YAML file with favorite coins per user")
	pflag.Parse()

	if err := run(*envFile, *symbol, *userID, *favoritesFile); err != nil {
		log.WithError(err).Error("marketsync stopped")
		os.Exit(1)
	}
}

func run(envFile, symbol, userID, favoritesFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := logger.Configure(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return err
	}
	log.WithField("config", helpers.ToJsonString(cfg)).Debug("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := promclient.StartPromClientServer(cfg.MetricsAddr); err != nil {
			log.WithError(err).Error("prometheus server stopped")
		}
	}()

	sinks := usecase.MultiSink{}
	if cfg.NatsURL != "" {
		nc, err := natssink.Connect(cfg.NatsURL, "marketsync")
		if err != nil {
			return err
		}
		defer nc.Close()
		sinks = append(sinks, natssink.NewSink(nc, cfg.NatsSubjectPrefix))
	}

	var cm domain.ConnManager = provider.NewConnectionManager(cfg)
	stream, err := cm.StreamAPI(provider.Binance)
	if err != nil {
		return err
	}
	syncAPI, err := cm.SyncAPI(provider.Binance)
	if err != nil {
		return err
	}
	validator, err := cm.DepthValidator(provider.Binance)
	if err != nil {
		return err
	}

	managerCfg := usecase.ManagerConfig{
		Reconnect: usecase.ReconnectPolicy{
			Enabled: cfg.Reconnect,
			Min:     cfg.ReconnectMin,
			Max:     cfg.ReconnectMax,
			Factor:  cfg.ReconnectFactor,
		},
		DegradedStart: cfg.DegradedStart,
	}

	market := usecase.NewMarketView(stream, syncAPI, validator, usecase.MarketViewConfig{
		DepthLimit:        cfg.DepthLimit,
		TradeLimit:        cfg.TradeLimit,
		DisplayDepth:      cfg.DisplayDepth,
		TradeCapacity:     cfg.TradeCapacity,
		DedupeTrades:      cfg.DedupeTrades,
		OutOfSeqThreshold: cfg.OutOfSeqThreshold,
		Manager:           managerCfg,
	}, sinks)
	defer market.Close()

	favorites := usecase.NewFavoritesView(stream, syncAPI, usecase.NewFileFavoritesStore(favoritesFile), managerCfg, sinks)
	defer favorites.Close()

	server := rpc.NewServer(market, favorites, &rpc.ValidationServiceConfig{AvailableProviders: cm.Providers()})

	if symbol != "" {
		if _, err := server.GetMarketView(ctx, request("symbol", symbol)); err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("initial market view failed")
		}
	}
	if userID != "" {
		if _, err := server.GetFavorites(ctx, request("userId", userID)); err != nil {
			log.WithError(err).WithField("user", userID).Warn("initial favorites failed")
		}
	}

	return rpc.ListenAndServe(ctx, cfg.GRPCAddr, server)
}

func request(key, value string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		key: structpb.NewStringValue(value),
	}}
}
