package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/dinofi/godino/internal/auction"
	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/internal/gateway"
	"github.com/dinofi/godino/internal/offering"
	"github.com/dinofi/godino/internal/registry"
	"github.com/dinofi/godino/pkg/config"
	"github.com/dinofi/godino/pkg/logger"
	"github.com/dinofi/godino/pkg/shutdown"
	"github.com/dinofi/godino/pkg/statestore"
)

const snapshotKey = "snapshot/latest"

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("DINO_CONFIG", ""), "YAML config file path")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		adminHex   = flag.String("admin", "", "admin account (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *adminHex != "" {
		if !common.IsHexAddress(*adminHex) {
			log.Fatalf("invalid admin address: %s", *adminHex)
		}
		cfg.Admin = common.HexToAddress(*adminHex)
	}
	if cfg.Receiver == (common.Address{}) {
		cfg.Receiver = cfg.Admin
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	journal := events.NewJournal(0)

	c := chain.New(chain.Config{
		Admin:              cfg.Admin,
		Receiver:           cfg.Receiver,
		Controller:         cfg.Admin,
		OwnPercentage:      cfg.OwnPercentage,
		FeePercentage:      cfg.FeePercentage,
		OfferingPercentage: cfg.OfferingPercentage,
		ExitPercentage:     cfg.ExitPercentage,
		NewNFTFee:          cfg.NewNFTFee,
		Journal:            journal,
	})

	mapper := registry.New(c)
	engine := auction.New(c, mapper)
	book := offering.New(c)

	shut := shutdown.NewManager()

	store, err := statestore.Open(statestore.OpenOptions{Path: cfg.StorePath})
	if err != nil {
		log.Fatalf("open state store failed: %v", err)
	}
	if data, found, err := store.Get(snapshotKey); err == nil && found {
		if snap, err := chain.UnmarshalSnapshot(data); err == nil {
			logger.Infof("[server] 发现上次运行的快照: block=%d tokens=%d", snap.Block, len(snap.Tokens))
		}
	}

	persist := func() {
		data, err := chain.MarshalSnapshot(c.Snapshot())
		if err != nil {
			logger.Errorf("[server] 快照编码失败: %v", err)
			return
		}
		if err := store.Set(snapshotKey, data); err != nil {
			logger.Errorf("[server] 快照落盘失败: %v", err)
		}
	}

	srv, err := gateway.New(gateway.Config{DBPath: cfg.DBPath}, c, mapper, engine, book, journal)
	if err != nil {
		log.Fatalf("init gateway failed: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shut.OnShutdown(func(ctx context.Context) { _ = httpSrv.Shutdown(ctx) })
	shut.OnShutdown(func(ctx context.Context) { _ = srv.Close() })
	shut.OnShutdown(func(ctx context.Context) {
		persist()
		_ = store.Close()
	})

	go func() {
		logger.Infof("[server] 网关监听 %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[server] http server error: %v", err)
		}
	}()

	snapTicker := time.NewTicker(time.Minute)
	defer snapTicker.Stop()
	snapDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-snapDone:
				return
			case <-snapTicker.C:
				persist()
			}
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh
	close(snapDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shut.Shutdown(ctx)

	fmt.Println("server stopped")
}
