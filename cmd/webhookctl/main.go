package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/shopify"
)

func main() {
	var (
		logLevel string
		timeout  time.Duration
	)
	flag.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall command timeout")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command, rest := args[0], args[1:]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := run(ctx, cfg, log, command, rest); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	baseURL := fs.String("base-url", cfg.Webhook.BaseURL, "Public base URL of the sync service")
	store := fs.String("store", "", "Limit to one store (storeA or storeB)")
	subject := fs.String("subject", "operator", "Token subject")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default: auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch command {
	case "validate":
		return validate(os.Stdout, cfg.MissingRequired())

	case "token":
		issued, err := auth.NewJWTService(cfg.Auth).GenerateToken(*subject, *ttl)
		if err != nil {
			return err
		}
		fmt.Println(issued.Token)
		fmt.Fprintf(os.Stderr, "expires at %s\n", issued.ExpiresAt.Format(time.RFC3339))
		return nil
	}

	cli := &webhookCLI{
		admins: buildAdmins(cfg, log),
		out:    os.Stdout,
		log:    log,
		now:    time.Now,
	}

	switch command {
	case "register":
		db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(log, logger.MapGormLogLevel("error"), 0))
		if err != nil {
			log.Warn("Database unavailable, registration time will not be recorded", zap.Error(err))
		} else {
			defer func() {
				_ = db.Close()
			}()
			cli.configs = persistence.NewGormConfigEntryRepository(db.DB)
		}
		sum, err := cli.register(ctx, *baseURL)
		fmt.Printf("created %d, already registered %d, failed %d\n", sum.Created, sum.Skipped, sum.Failed)
		return err

	case "list":
		return cli.list(ctx, *store)

	case "delete":
		n, err := cli.remove(ctx, *baseURL)
		fmt.Printf("deleted %d webhooks\n", n)
		return err

	case "test":
		return cli.test(ctx, *store)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// buildAdmins creates a client per configured store; unconfigured stores are left out
func buildAdmins(cfg *config.Config, log *zap.Logger) map[catalogsync.Store]storeAdmin {
	admins := make(map[catalogsync.Store]storeAdmin, 2)
	for _, store := range catalogsync.AllStores() {
		sc := cfg.StoreA
		if store == catalogsync.StoreB {
			sc = cfg.StoreB
		}
		client, err := shopify.NewClient(shopify.ConfigFromApp(store, sc, cfg.Sync), shopify.WithLogger(log))
		if err != nil {
			log.Warn("Store not configured", zap.String("store", store.Slug()), zap.Error(err))
			continue
		}
		admins[store] = client
	}
	return admins
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `storesync webhook administration

Usage:
  webhookctl [flags] <command> [command flags]

Commands:
  register [-base-url URL]   Subscribe both stores to the product and inventory topics
  list [-store S]            List webhook subscriptions
  delete [-base-url URL]     Remove sync subscriptions pointing at the base URL
  test [-store S]            Check connectivity (locations and webhooks)
  validate                   Check that the required configuration is present
  token [-subject S -ttl D]  Issue an operator token for the sync API

Flags:
  -log-level string  Log level (default: warn)
  -timeout duration  Overall command timeout (default: 2m)

Environment:
  STORE_A_DOMAIN, STORE_A_ACCESS_TOKEN, STORE_B_DOMAIN, STORE_B_ACCESS_TOKEN,
  SYNC_WEBHOOK_BASE_URL, SYNC_AUTH_JWT_SECRET`)
}
