package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"estatechain/config"
	"estatechain/core/events"
	"estatechain/core/types"
	"estatechain/native/bank"
	"estatechain/native/registry"
	"estatechain/observability/logging"
	"estatechain/rpc"
	"estatechain/storage"
)

// eventLogger forwards every registry event into the structured log so
// operators get a durable trail without running an indexer.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		l.logger.Info("registry event", slog.String("type", evt.EventType()))
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	attrs := make([]any, 0, len(payload.Attributes)+1)
	attrs = append(attrs, slog.String("type", payload.Type))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.Info("registry event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESTATE_ENV"))
	logger := logging.Setup("estated", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	validator, err := cfg.ValidatorAddress()
	if err != nil {
		logger.Error("failed to decode AI validator address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	reg := registry.NewRegistry(validator.Raw())
	reg.SetState(registry.NewStore(db))
	reg.SetLedger(bank.NewLedger(db))

	subscribers := &events.List{}
	subscribers.Subscribe(eventLogger{logger: logger})
	reg.SetEmitter(subscribers)

	logger.Info("registry ready",
		slog.String("network", cfg.NetworkName),
		slog.String("aiValidator", validator.String()),
		slog.String("minPrice", registry.MinListingPrice().String()),
	)

	server := rpc.NewServer(reg, logger)
	if token := strings.TrimSpace(cfg.RPCToken); token != "" {
		server.SetAuthToken(token)
	}
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
