package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmdop/cmdop-bot/pkg/audit"
	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/channels"
	"github.com/cmdop/cmdop-bot/pkg/cmdop"
	"github.com/cmdop/cmdop-bot/pkg/commands"
	"github.com/cmdop/cmdop-bot/pkg/config"
	"github.com/cmdop/cmdop-bot/pkg/gateway"
	"github.com/cmdop/cmdop-bot/pkg/logger"
	"github.com/cmdop/cmdop-bot/pkg/ratelimit"
)

func newRunCommand(configPath *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot(*configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runBot(configPath string, debug bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if debug {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	if cfg.CMDOP.APIKey == "" {
		return fmt.Errorf("cmdop api_key is not configured (set CMDOPBOT_API_KEY or cmdop.api_key)")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var auditLog *audit.Logger
	if cfg.Log.AuditFile != "" {
		key, err := loadOrCreateAuditKey(cfg.Log.AuditFile + ".key")
		if err != nil {
			return fmt.Errorf("failed to load audit key: %w", err)
		}
		auditLog, err = audit.NewLogger(cfg.Log.AuditFile, key)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
	}

	client := cmdop.NewHTTPClient(cfg.CMDOP.APIKey, cmdop.WithServer(cfg.CMDOP.Server))
	defer client.Close()

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           cfg.RateLimits.Enabled,
		RequestsPerMinute: cfg.RateLimits.RequestsPerMinute,
		GlobalPerMinute:   cfg.RateLimits.GlobalPerMinute,
		Burst:             cfg.RateLimits.Burst,
	})

	env := commands.NewEnv(client, store, limiter, auditLog, cfg.CMDOP.Machine, cfg.CMDOP.Model)

	messageBus := bus.NewMessageBus()
	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		return fmt.Errorf("failed to initialize channels: %w", err)
	}
	if len(manager.EnabledChannels()) == 0 {
		return fmt.Errorf("no channels enabled, check the channels section of the config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := gateway.New(messageBus, env)
	gw.Start(ctx)

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	logger.InfoCF("main", "cmdop-bot running", map[string]any{
		"channels": strings.Join(manager.EnabledChannels(), ","),
		"machine":  cfg.CMDOP.Machine,
	})

	<-ctx.Done()
	logger.InfoC("main", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.StopAll(shutdownCtx); err != nil {
		logger.ErrorCF("main", "Error stopping channels", map[string]any{"error": err.Error()})
	}
	gw.Stop()
	messageBus.Close()
	return nil
}

// loadOrCreateAuditKey reads the HMAC key for the audit log, creating
// one on first run.
func loadOrCreateAuditKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil {
			return nil, fmt.Errorf("invalid key file %s: %w", path, decErr)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key, err := audit.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, err
	}
	return key, nil
}
