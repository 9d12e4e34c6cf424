// Command dexarb wires the Pool Registry, Price Store, Path Builder, Price
// Graph, Detector, event demultiplexer, and pipeline coordinator into one
// running process: one ingestion goroutine per chain feeding a single
// coordinator.Consumer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dexarb/go-arbengine/config"
	"github.com/dexarb/go-arbengine/coordinator"
	"github.com/dexarb/go-arbengine/detector"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/ethfeed"
	"github.com/dexarb/go-arbengine/pathbuilder"
	"github.com/dexarb/go-arbengine/pricegraph"
	"github.com/dexarb/go-arbengine/pricestore"
	"github.com/dexarb/go-arbengine/quotesim"
	"github.com/dexarb/go-arbengine/registry"
	"github.com/dexarb/go-arbengine/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const queueCapacity = 256

func main() {
	logger := telemetry.NewJSONLogger()

	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	reg, graph, store, err := buildDomain(cfg)
	if err != nil {
		logger.Error("failed to build trading domain", "error", err)
		os.Exit(1)
	}

	det := detector.New(graph, cfg.EngineGasCosts(), cfg.MaxBetSize, cfg.TargetSpread)
	for _, symbol := range cfg.TradingSymbols {
		sg, ok := graph.Symbol(symbol)
		if !ok {
			logger.Error("trading symbol has no price graph, skipping", "symbol", symbol)
			continue
		}
		det.RegisterSymbol(sg)
	}

	var gasOracle *ethfeed.GasOracle
	if cfg.GasOracle.Endpoint != "" {
		gasOracle = ethfeed.NewGasOracle(cfg.GasOracle.Endpoint, cfg.GasOracle.APIKey)
	}

	source := ethfeed.NewSource(wsEndpointsByChainID(reg, cfg), ethfeed.DialEthClient, gasOracle, logger, metrics, reg.Pools())
	oracle := quotesim.New(store, reg)

	queue := coordinator.NewQueue(queueCapacity)
	consumer := &coordinator.Consumer{
		Queue:  queue,
		Store:  store,
		Detect: det,
		Oracle: oracle,
		Sinks:  newTelemetrySinks(logger, metrics),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, chainID := range reg.Chains() {
		chainName, ok := reg.ChainName(chainID)
		if !ok {
			continue
		}
		go runIngestion(ctx, chainID, source, store, reg, graph, queue, gasOracle, logger.With("chain", chainName))
	}

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped with error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		<-done
	}
}

// buildDomain constructs the Pool Registry, enumerates every trading
// symbol's paths with the Path Builder on each configured chain, and loads
// the resulting Price Graph and an empty Price Store ready for ingestion to
// populate.
func buildDomain(cfg *config.Config) (*registry.Registry, *pricegraph.Graph, *pricestore.Store, error) {
	poolConfigs, err := cfg.PoolConfigs()
	if err != nil {
		return nil, nil, nil, err
	}

	reg, err := registry.Build(cfg.TokenConfigs(), poolConfigs)
	if err != nil {
		return nil, nil, nil, err
	}

	store := pricestore.New()
	for _, desc := range reg.Pools() {
		store.Load(desc, nil, nil, nil)
	}

	graph := pricegraph.New()
	numTokens := reg.NumTokens()

	for _, symbol := range cfg.TradingSymbols {
		base, quote, err := splitSymbol(symbol)
		if err != nil {
			return nil, nil, nil, err
		}

		chainOrder := reg.Chains()
		chainPaths := map[engine.ChainID][]pathbuilder.Path{}
		for _, chain := range chainOrder {
			chainName, ok := reg.ChainName(chain)
			if !ok {
				continue
			}
			tokenIn, ok := reg.TokenID(chainName, quote)
			if !ok {
				continue
			}
			tokenOut, ok := reg.TokenID(chainName, base)
			if !ok {
				continue
			}
			paths := pathbuilder.Build(reg.ChainKeys(chain), tokenIn, tokenOut, cfg.MaxSwaps, numTokens)
			if len(paths) > 0 {
				chainPaths[chain] = paths
			}
		}

		sg, err := pricegraph.NewSymbolGraph(symbol, chainOrder, chainPaths, reg)
		if err != nil {
			return nil, nil, nil, err
		}
		graph.AddSymbol(sg)
	}

	return reg, graph, store, nil
}

// wsEndpointsByChainID resolves the configured name -> WS endpoint map to
// the dense-ID keying ethfeed.Source expects.
func wsEndpointsByChainID(reg *registry.Registry, cfg *config.Config) map[engine.ChainID]string {
	out := make(map[engine.ChainID]string, len(cfg.Chains))
	for name, endpoint := range cfg.WSEndpoints() {
		if id, ok := reg.ChainID(name); ok {
			out[id] = endpoint
		}
	}
	return out
}

func splitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: trading symbol %q must be BASE/QUOTE", errs.ErrConfig, symbol)
	}
	return parts[0], parts[1], nil
}
