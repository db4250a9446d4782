package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/ascend/server/internal/auth"
	"github.com/lawnchairsociety/ascend/server/internal/config"
	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
	"github.com/lawnchairsociety/ascend/server/internal/namefilter"
	"github.com/lawnchairsociety/ascend/server/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	nameFilterConfig := flag.String("namefilter", "data/name_filter.yaml", "Path to name filter config YAML file")
	dbFile := flag.String("db", "", "Path to SQLite database file (overrides the config)")
	ban := flag.String("ban", "", "Ban an existing account and exit (requires username)")
	unban := flag.String("unban", "", "Lift a ban on an existing account and exit (requires username)")
	flag.Parse()

	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using default logging\n", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Error("Failed to load server config", "path", *serverConfigFile, "error", err)
		os.Exit(1)
	}
	if *dbFile != "" {
		cfg.Database.SQLitePath = *dbFile
	}

	if *ban != "" || *unban != "" {
		if err := setBanned(cfg, *ban, *unban); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, *nameFilterConfig)
	if err != nil {
		logger.Error("Server exited with error", "error", err)
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, nameFilterPath string) error {
	logger.Info("Starting Ascend progression server")

	if cfg.Auth.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.Secret = secret
		logger.Warning("No JWT secret configured, generated an ephemeral one; sessions will not survive a restart",
			"env", config.EnvPrefix+"JWT_SECRET")
	}

	db, err := database.OpenWithConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetPasswordCost(cfg.Password.HashCost)

	version, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("Database ready",
		"driver", db.Dialect().DriverName(),
		"schema_version", version)

	nameCfg, err := namefilter.LoadConfig(nameFilterPath)
	if err != nil {
		logger.Warning("Failed to load name filter config, using format rules only", "path", nameFilterPath, "error", err)
	} else if nameCfg != nil && nameCfg.Enabled {
		logger.Info("Name filter enabled", "banned_words", len(nameCfg.BannedWords), "banned_names", len(nameCfg.BannedNames))
	}

	switch origins := cfg.WebSocket.AllowedOrigins; {
	case len(origins) == 0:
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	case len(origins) == 1 && origins[0] == "*":
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	default:
		logger.Info("WebSocket CORS policy", "allowed_origins", origins)
	}
	if cfg.Formula.EffectiveCap > 0 {
		logger.Info("Effective stat cap enabled", "cap", cfg.Formula.EffectiveCap)
	}

	srv, err := server.New(cfg, db, namefilter.New(nameCfg))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if len(secret) < auth.MinSecretLength {
		return "", auth.ErrWeakSecret
	}
	return secret, nil
}

// setBanned updates the ban flag of one account.
func setBanned(cfg *config.ServerConfig, ban, unban string) error {
	if ban != "" && unban != "" {
		return errors.New("-ban and -unban are mutually exclusive")
	}
	username, banned := ban, true
	if unban != "" {
		username, banned = unban, false
	}

	db, err := database.OpenWithConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	account, err := db.GetAccountByUsername(username)
	if err != nil {
		return fmt.Errorf("account %q: %w", username, err)
	}
	if account.Banned == banned {
		fmt.Printf("Account '%s' is already in that state.\n", account.Username)
		return nil
	}
	if err := db.SetBanned(account.ID, banned); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	logger.Always("Account ban changed", "account_id", account.ID, "username", account.Username, "banned", banned)
	if banned {
		fmt.Printf("Account '%s' has been banned.\n", account.Username)
	} else {
		fmt.Printf("Account '%s' has been unbanned.\n", account.Username)
	}
	return nil
}
