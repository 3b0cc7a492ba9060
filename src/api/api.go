package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/actions"
	"github.com/stake-plus/base-buddies/src/api/webserver"
	"github.com/stake-plus/base-buddies/src/app"
	"github.com/stake-plus/base-buddies/src/config"
	"github.com/stake-plus/base-buddies/src/data"
	"github.com/stake-plus/base-buddies/src/logging"
)

func main() {
	// MySQL is optional; with it, settings and webhook events live there.
	var db *gorm.DB
	if dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN")); dsn != "" {
		db = data.MustMySQL(dsn)
		if err := data.LoadSettings(db); err != nil {
			log.Printf("Failed to load settings: %v", err)
		}
	}

	cfg := config.Load(db)
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.JWTSecret == "" {
		logger.Fatal("jwt secret is empty")
	}
	if cfg.JWTSecretGenerated {
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart and are not shared between instances")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer a.Close()

	mgr, catalog, err := actions.StartAll(ctx, actions.Deps{
		Config:  cfg,
		Service: a.Service,
		Bus:     a.Bus,
		Chain:   a.Chain,
		Log:     logger,
	})
	if err != nil {
		logger.Fatal("start modules", zap.Error(err))
	}

	router := webserver.New(ctx, webserver.Deps{
		Config:     cfg,
		Catalog:    catalog,
		Challenges: a.Service,
		Events:     a.Bus,
		Nonces:     a.Nonces,
		DB:         db,
		Contract:   a.Chain.Address(),
		Log:        logger,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.Chain.TxTimeout+5*time.Second > httpSrv.WriteTimeout {
		httpSrv.WriteTimeout = cfg.Chain.TxTimeout + 5*time.Second
	}

	useTLS := cfg.TLSCert != "" && cfg.TLSKey != ""
	go func() {
		var err error
		if useTLS {
			reloader, rerr := webserver.NewTLSReloader(ctx, cfg.TLSCert, cfg.TLSKey, 0, logger)
			if rerr != nil {
				logger.Warn("failed to create TLS reloader, falling back to HTTP", zap.Error(rerr))
				err = httpSrv.ListenAndServe()
			} else {
				httpSrv.TLSConfig = reloader.GetConfig()
				err = httpSrv.ListenAndServeTLS("", "")
			}
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http", zap.Error(err))
		}
	}()

	logger.Info("Base Buddies API listening",
		zap.String("port", cfg.Port),
		zap.Bool("tls", useTLS),
		zap.String("contract", a.Chain.Address().Hex()),
		zap.Strings("modules", mgr.Names()),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
	mgr.Stop(shutCtx)
	cancel()
}
