package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"chestmarket.gg/internal/feed"
	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/market/goods"
	persistlog "chestmarket.gg/internal/persistence/log"
	"chestmarket.gg/internal/persistence/shopstore"
	"chestmarket.gg/internal/persistence/tradedb"
	"chestmarket.gg/internal/protocol"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/market.yaml", "market config path")
		goodsPath  = flag.String("goods", "./configs/goods.json", "goods catalog path")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite trade index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[marketd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := market.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	cat, err := goods.Load(*goodsPath)
	if err != nil {
		logger.Fatalf("load goods: %v", err)
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	store := shopstore.New(filepath.Join(*dataDir, "shops.yml"), logger)

	var db *tradedb.DB
	if !*disableDB {
		db, err = tradedb.Open(filepath.Join(*dataDir, "trades.db"))
		if err != nil {
			logger.Fatalf("open trade db: %v", err)
		}
		defer db.Close()
	}

	tradeLog := persistlog.NewTradeLog(*dataDir)
	defer tradeLog.Close()

	chests := market.NewContainerPool(cat.MaxStack)
	actors := newActorPool(cat.MaxStack)
	ledger := newMemoryLedger()

	// Registry and hub reference each other through the renderer, so the
	// registry is built first with the hub wired in afterwards via hooks.
	var reg *market.Registry
	hub := feed.NewHub(func(s *market.Shop) (protocol.SignLines, market.ShopStatus) {
		status := reg.StatusOf(s)
		return market.RenderSign(s, status, cfg.Signs), status
	}, logger)

	reg = market.NewRegistry(cfg, cat, market.RegistryDeps{
		Storage: chests,
		Store:   store,
		Hooks:   hub,
		Logger:  logger,
	})
	if err := reg.Load(); err != nil {
		logger.Fatalf("load shops: %v", err)
	}

	stats := market.MultiStats{tradeLog, hub}
	if db != nil {
		stats = append(stats, db)
	}
	notifier := market.NewNotifier(cfg.Notifications, hub, nil)
	eng := market.NewEngine(reg, market.EngineDeps{
		Ledger:   ledger,
		Stats:    stats,
		Notifier: notifier,
		Logger:   logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	// Periodic registry flush plus cooldown sweep.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reg.Save(); err != nil {
					logger.Printf("periodic save: %v", err)
				}
				eng.Cooldowns().Sweep(time.Hour)
			}
		}
	}()

	api := &apiServer{
		reg:      reg,
		eng:      eng,
		ledger:   ledger,
		actors:   actors,
		chests:   chests,
		notifier: notifier,
		db:       db,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP chestmarket_shops Current number of registered shops.\n")
		fmt.Fprintf(rw, "# TYPE chestmarket_shops gauge\n")
		fmt.Fprintf(rw, "chestmarket_shops %d\n", reg.Count())

		fmt.Fprintf(rw, "# HELP chestmarket_feed_subscribers Current feed subscriber count.\n")
		fmt.Fprintf(rw, "# TYPE chestmarket_feed_subscribers gauge\n")
		fmt.Fprintf(rw, "chestmarket_feed_subscribers %d\n", hub.Subscribers())
	})
	mux.HandleFunc("/v1/feed", hub.Handler())
	api.register(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (%d shops, %d goods)", *addr, reg.Count(), len(cat.Palette))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Shutdown: flush the registry and drain the trade index.
	if err := reg.Save(); err != nil {
		logger.Printf("final save: %v", err)
	}
	if db != nil {
		db.Barrier()
	}
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
