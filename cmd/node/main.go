// Command node starts a corechain node: block-graph consensus, PoS
// block production, speculative execution and the RPC/P2P surfaces that
// front them.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tolchain/corechain/config"
	"github.com/tolchain/corechain/consensus"
	"github.com/tolchain/corechain/crypto/certgen"
	"github.com/tolchain/corechain/events"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/metrics"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/network"
	"github.com/tolchain/corechain/pool"
	"github.com/tolchain/corechain/rpc"
	"github.com/tolchain/corechain/storage"
	"github.com/tolchain/corechain/vm"
	"github.com/tolchain/corechain/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolchain/corechain/vm/modules/asyncmsg"
	_ "github.com/tolchain/corechain/vm/modules/datastore"
	_ "github.com/tolchain/corechain/vm/modules/transfer"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "staking.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new staking key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	password := os.Getenv("CORECHAIN_PASSWORD")
	if password == "" {
		log.Warn("CORECHAIN_PASSWORD not set, keystore will use an empty password")
	}

	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatalf("save key: %v", err)
		}
		fmt.Printf("Generated staking key. Address: %s\n", w.Address())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath, log)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	cfg, err := loadConfig(*cfgPath, log)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load staking key: %v", err)
	}
	w := wallet.New(privKey)
	log.Infow("loaded staking identity", "address", w.Address())

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var tlsCfg *tls.Config
	if cfg.TLS != nil {
		tlsCfg, err = config.LoadTLSConfig(cfg.TLS)
		if err != nil {
			log.Fatalf("tls: %v", err)
		}
		if tlsCfg != nil {
			log.Info("mTLS enabled for P2P")
		}
	}

	genesisIds := config.GenesisBlockIds(cfg)
	graph, err := consensus.NewGraph(consensus.Config{
		ThreadCount:                cfg.ThreadCount,
		MaxWaitingForDependencies:  cfg.MaxWaitingForDependencies,
		MaxWaitingForSlot:          cfg.MaxWaitingForSlot,
		FutureProcessingMaxPeriods: cfg.FutureProcessingMaxPeriods,
		FinalityThreshold:          cfg.FinalityThreshold,
	}, genesisIds)
	if err != nil {
		log.Fatalf("consensus graph: %v", err)
	}

	rolls, err := cfg.Genesis.RollCounts()
	if err != nil {
		log.Fatalf("genesis rolls: %v", err)
	}
	var entropy [32]byte
	copy(entropy[:], models.HashData([]byte(cfg.Genesis.ChainID))[:])
	selector := consensus.NewSelector(entropy, rolls)

	clock := consensus.NewClock(cfg.Genesis.Timestamp, cfg.T0, cfg.ThreadCount, log)

	final := finalstate.New(db, log, cfg.AsyncPoolCapacity, cfg.SnapshotInterval)
	if final.Cursor().Period == 0 && final.Cursor().Thread == 0 {
		if err := cfg.Genesis.SeedFinalState(final); err != nil {
			log.Fatalf("genesis balances: %v", err)
		}
	}

	driver := execution.NewDriver(log)
	runner := vm.Default()

	opPool := pool.NewController(cfg.ThreadCount, log)

	emitter := events.NewEmitter(log)

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
		defer metricsSrv.Close()
		log.Infow("metrics listening", "port", cfg.MetricsPort)
	}

	var provider network.BlockProvider = graph
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, tlsCfg, provider, log)
	if err := node.Start(); err != nil {
		log.Fatalf("p2p start: %v", err)
	}
	defer node.Stop()
	log.Infow("p2p listening", "addr", p2pAddr)

	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Warnw("seed peer connect failed", "id", sp.ID, "addr", sp.Addr, "error", err)
			continue
		}
		log.Infow("connected to seed peer", "id", sp.ID, "addr", sp.Addr)
	}

	rpcHandler := rpc.NewHandler(graph, final, opPool, driver, runner)
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, log)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Infow("rpc listening", "addr", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Info("RPC Bearer token authentication enabled")
	}

	rt := newRuntime(cfg, privKey, genesisIds, clock, graph, selector, driver, final, opPool, runner, emitter, mtr, node, log)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	slots := make(chan models.Slot, 8)
	g.Go(func() error { return clock.Run(gctx, slots) })
	g.Go(func() error { return rt.run(gctx, slots) })

	log.Infow("node running", "node_id", cfg.NodeID, "threads", cfg.ThreadCount, "address", w.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case <-gctx.Done():
		log.Warnw("runtime stopped unexpectedly", "error", gctx.Err())
	}

	cancel()
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("timed out waiting for runtime shutdown")
	}

	log.Info("shutdown complete")
}

func loadConfig(path string, log *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnw("config file not found, using defaults", "path", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
