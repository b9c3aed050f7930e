package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"signalserver/internal/auth"
	"signalserver/internal/config"
	"signalserver/internal/domain"
	"signalserver/internal/observability/logging"
	"signalserver/internal/observability/metrics"
	"signalserver/internal/service"
	"signalserver/internal/store"
	httptransport "signalserver/internal/transport/http"
	"signalserver/pkg/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	slog.SetDefault(logging.NewLogger(logging.Config{
		ServiceName: "signalserver",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	}))
	metrics.MustRegister("signalserver")

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		log.Fatalf("gorm open: %v", err)
	}
	if err := gdb.AutoMigrate(
		&domain.User{},
		&domain.Device{},
		&domain.PreKey{},
		&domain.SignedPreKey{},
		&domain.Message{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	st := store.New(gdb)
	devices := service.NewDeviceRegistry(st)
	prekeys := service.NewPreKeyService(st)
	bundles := service.NewBundleIssuer(st, devices)
	mailbox := service.NewMailbox(st)
	tokens := auth.NewTokenVerifier(cfg.TokenSecret, cfg.TokenIssuer)
	signatures := auth.NewSignatureAuthenticator(st, devices)

	handler := httptransport.NewRouter(devices, prekeys, bundles, mailbox, tokens, signatures)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server listening", "addr", cfg.Addr)
	log.Fatal(srv.ListenAndServe())
}
