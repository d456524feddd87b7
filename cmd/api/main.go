package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dealora.org/internal/auth"
	"dealora.org/internal/catalog"
	"dealora.org/internal/config"
	"dealora.org/internal/httpapi"
	"dealora.org/internal/notify"
	"dealora.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.InitBuildInfo(cfg.Version, cfg.Commit)

	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	signer, err := auth.NewTokenSigner(cfg.Token)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.SMTPEnabled {
		dispatcher, err = notify.NewSMTPDispatcher(cfg.SMTP)
		if err != nil {
			log.Fatalf("smtp: %v", err)
		}
	}

	hub := notify.NewHub()
	store := auth.NewPGStore(db)

	svc, err := auth.NewService(store, signer,
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithDispatcher(dispatcher),
		auth.WithFileStore(localFileStore(os.Getenv("DEALORA_UPLOAD_DIR"))),
		auth.WithCatalogDeleters(
			cascadeClientDeleter(db),
			cascadeCompanyDeleter(db),
		),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, cfg.Version, svc, signer, hub)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE writes outlive normal requests
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting dealora-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}

// localFileStore persists uploaded logos on disk. A CDN-backed FileStore
// can replace it without touching the auth service.
func localFileStore(dir string) catalog.FileStore {
	if dir == "" {
		dir = "uploads"
	}
	return catalog.FileStoreFunc(func(_ context.Context, name string, blob []byte) (string, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		path := dir + "/" + time.Now().UTC().Format("20060102T150405") + "-" + name
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return "", err
		}
		return "/" + path, nil
	})
}

// cascadeClientDeleter relies on the schema's cascading foreign keys; the
// hook exists so an external catalog service can be wired in later.
func cascadeClientDeleter(db *sql.DB) catalog.ClientDeleter {
	return catalog.ClientDeleterFunc(func(ctx context.Context, principalID string) (bool, error) {
		return true, db.PingContext(ctx)
	})
}

func cascadeCompanyDeleter(db *sql.DB) catalog.CompanyDeleter {
	return catalog.CompanyDeleterFunc(func(ctx context.Context, companyID string) (bool, error) {
		return true, db.PingContext(ctx)
	})
}
