package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vault/config"
	"vault/crt"
	"vault/db"
	"vault/handlers"
	"vault/logs"
	"vault/middleware"
	"vault/types"
	"vault/vault"
	"vault/vm"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	listen     string
	dbPath     string
	inMemory   bool
	faucet     bool
	logLevel   string
}

func parseFlags(args []string) (*options, *config.Config, error) {
	var opts options
	flagSet := pflag.NewFlagSet("vaultnode", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&opts.listen, "listen", "", "listen address, overrides server.listen_addr")
	flagSet.StringVar(&opts.dbPath, "db", "", "badger directory, overrides database.path")
	flagSet.BoolVar(&opts.inMemory, "in-memory", false, "keep the ledger in memory only")
	flagSet.BoolVar(&opts.faucet, "faucet", false, "enable the development faucet")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "trace|debug|verbose|info|warn|error")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFromFile(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.listen != "" {
		cfg.Server.ListenAddr = opts.listen
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if flagSet.Changed("in-memory") {
		cfg.Database.InMemory = opts.inMemory
	}
	if flagSet.Changed("faucet") {
		cfg.Runtime.FaucetEnabled = opts.faucet
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &opts, cfg, nil
}

func run() error {
	_, cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logs.SetLevel(logs.ParseLevel(cfg.LogLevel))
	defer logs.Sync()

	programID, err := types.ParseAddress(cfg.Runtime.ProgramID)
	if err != nil {
		return fmt.Errorf("runtime.program_id: %w", err)
	}
	logs.MyAddress = programID.String()

	// 同一个 Logger 贯穿 db、执行器与 HTTP 层，/logs 能看到全部
	logger := logs.NewNodeLogger(cfg.Server.ListenAddr, 2000)

	store, err := db.NewManagerWithConfig(logger, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	controller := vault.NewController(types.NewDeriver(programID, cfg.Runtime.DeriveCacheSize))
	reg := vm.NewHandlerRegistry()
	if err := vault.Register(reg, controller); err != nil {
		return err
	}
	executor, err := vm.NewExecutor(store, reg, cfg.Runtime, logger)
	if err != nil {
		return err
	}

	hm := handlers.NewHandlerManager(executor, controller, cfg.Runtime, cfg.Server.ListenAddr, logger)
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)

	stop := make(chan struct{})
	defer close(stop)
	limiter := middleware.NewIPRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	limiter.StartIPCleanup(stop)
	handler := middleware.LimitBody(cfg.Server.MaxRequestBodySize, limiter.RateLimit(mux))

	cert, identity, err := crt.LoadOrCreate(cfg.Server.CertFile, cfg.Server.KeyFile, cfg.Server.CertValidityDays)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3", "http/1.1"},
	}
	quicConfig := &quic.Config{
		KeepAlivePeriod: cfg.Server.QUICKeepAlivePeriod,
		MaxIdleTimeout:  cfg.Server.QUICMaxIdleTimeout,
		Allow0RTT:       cfg.Server.QUICAllow0RTT,
	}

	h3 := &http3.Server{
		Addr:       cfg.Server.ListenAddr,
		Handler:    handler,
		TLSConfig:  tlsConfig,
		QUICConfig: quicConfig,
	}
	listener, err := quic.ListenAddrEarly(cfg.Server.ListenAddr, http3.ConfigureTLSConfig(tlsConfig), quicConfig)
	if err != nil {
		return fmt.Errorf("quic listen %s: %w", cfg.Server.ListenAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := h3.ServeListener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, quic.ErrServerClosed) {
			errCh <- fmt.Errorf("http3: %w", err)
		}
	}()

	var tcp *http.Server
	if cfg.Server.EnableTCP {
		tcp = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := tcp.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("tcp tls: %w", err)
			}
		}()
	}

	logger.Info("vaultnode listening on %s (program %s, identity %s, latest slot %d)",
		cfg.Server.ListenAddr, programID, identity, executor.LatestSlot())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("server error: %v", err)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if tcp != nil {
		_ = tcp.Shutdown(shutdownCtx)
	}
	_ = h3.Close()
	return err
}
