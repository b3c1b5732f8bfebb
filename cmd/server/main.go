package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/npezzotti/go-supportchat/internal/api"
	"github.com/npezzotti/go-supportchat/internal/config"
	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/server"
	"github.com/npezzotti/go-supportchat/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr             string
	dsn              string
	signingKey       string
	allowedOrigins   stringSliceFlag
	adminUsername    string
	adminPassword    string
	uploadDir        string
	lockDeletedEdits bool
	migrate          bool
)

func main() {
	logger := log.New(os.Stderr, "[go-supportchat] ", log.LstdFlags)

	if err := config.LoadEnv(); err != nil {
		logger.Fatal("load .env:", err)
	}

	flag.StringVar(&addr, "addr", config.GetEnv("SUPPORTCHAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.GetEnv("SUPPORTCHAT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", config.GetEnv("SUPPORTCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&adminUsername, "admin-username", config.GetEnv("SUPPORTCHAT_ADMIN_USERNAME", "admin"), "username of the support admin")
	flag.StringVar(&adminPassword, "admin-password", config.GetEnv("SUPPORTCHAT_ADMIN_PASSWORD", ""), "password of the support admin")
	flag.StringVar(&uploadDir, "upload-dir", config.GetEnv("SUPPORTCHAT_UPLOAD_DIR", "uploads"), "directory for uploaded images")
	flag.BoolVar(&lockDeletedEdits, "lock-deleted-edits", config.GetEnvAsBool("SUPPORTCHAT_LOCK_DELETED_EDITS", false), "reject edits to deleted messages")
	flag.BoolVar(&migrate, "migrate", config.GetEnvAsBool("SUPPORTCHAT_MIGRATE", false), "apply database migrations on startup")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if origins := config.GetEnv("SUPPORTCHAT_ALLOWED_ORIGINS", ""); origins != "" {
			allowedOrigins.Set(origins)
		}
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins,
		config.WithAdmin(adminUsername, adminPassword),
		config.WithUploadDir(uploadDir),
		config.WithLockDeletedEdits(lockDeletedEdits),
		config.WithMigrate(migrate),
	)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if cfg.Migrate {
		logger.Println("applying database migrations...")
		if err := database.Migrate(cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate:", err)
		}
	}

	dbConn, err := database.NewPgSupportChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	admin, err := api.BootstrapAdmin(bootstrapCtx, dbConn, cfg.AdminUsername, cfg.AdminPassword)
	cancelBootstrap()
	if err != nil {
		logger.Fatal("admin:", err)
	}
	logger.Printf("support admin is %q (id %d)", admin.Username, admin.Id)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux, logger)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater, server.PolicyOptions{
		LockDeleted: cfg.LockDeletedEdits,
	})
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewSupportChatApp(mux, logger, chatServer, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
