package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/interfaces/http/handler"
)

// storeAdmin is the slice of a platform client the CLI drives
type storeAdmin interface {
	catalogsync.WebhookAdmin
	GetLocations(ctx context.Context) ([]catalogsync.Location, error)
}

type webhookCLI struct {
	admins  map[catalogsync.Store]storeAdmin
	configs catalogsync.ConfigEntryRepository // optional
	out     io.Writer
	log     *zap.Logger
	now     func() time.Time
}

func (c *webhookCLI) admin(store catalogsync.Store) (storeAdmin, error) {
	a, ok := c.admins[store]
	if !ok {
		return nil, fmt.Errorf("%w: store %s is not configured", catalogsync.ErrConfigurationMissing, store.Slug())
	}
	return a, nil
}

// stores returns the selected store, or both when none is given
func stores(only string) ([]catalogsync.Store, error) {
	if only == "" {
		return catalogsync.AllStores(), nil
	}
	s, err := catalogsync.ParseStore(only)
	if err != nil {
		return nil, err
	}
	return []catalogsync.Store{s}, nil
}

type registerSummary struct {
	Created int
	Skipped int
	Failed  int
}

func (c *webhookCLI) register(ctx context.Context, baseURL string) (registerSummary, error) {
	var sum registerSummary
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return sum, fmt.Errorf("%w: webhook base url", catalogsync.ErrConfigurationMissing)
	}

	for _, store := range catalogsync.AllStores() {
		admin, err := c.admin(store)
		if err != nil {
			c.log.Warn("Skipping store", zap.String("store", store.Slug()), zap.Error(err))
			sum.Failed += len(catalogsync.SyncTopics())
			continue
		}
		existing, err := admin.ListWebhooks(ctx)
		if err != nil {
			return sum, fmt.Errorf("list webhooks for %s: %w", store.Slug(), err)
		}
		seen := make(map[string]bool, len(existing))
		for _, w := range existing {
			seen[w.Topic+"|"+w.Address] = true
		}

		for _, topic := range catalogsync.SyncTopics() {
			address := baseURL + handler.WebhookPath(store, topic)
			if seen[topic+"|"+address] {
				fmt.Fprintf(c.out, "  = %-8s %-28s %s\n", store.Slug(), topic, address)
				sum.Skipped++
				continue
			}
			if _, err := admin.CreateWebhook(ctx, topic, address); err != nil {
				c.log.Error("Failed to register webhook",
					zap.String("store", store.Slug()),
					zap.String("topic", topic),
					zap.Error(err),
				)
				sum.Failed++
				continue
			}
			fmt.Fprintf(c.out, "  + %-8s %-28s %s\n", store.Slug(), topic, address)
			sum.Created++
		}
	}

	if c.configs != nil && sum.Failed == 0 {
		stamp := c.now().UTC().Format(time.RFC3339)
		if err := c.configs.Set(ctx, catalogsync.ConfigKeyWebhooksRegisteredAt, stamp); err != nil {
			c.log.Warn("Failed to record registration time", zap.Error(err))
		}
	}
	if sum.Failed > 0 {
		return sum, fmt.Errorf("%d webhook registrations failed", sum.Failed)
	}
	return sum, nil
}

func (c *webhookCLI) list(ctx context.Context, only string) error {
	selected, err := stores(only)
	if err != nil {
		return err
	}
	for _, store := range selected {
		admin, err := c.admin(store)
		if err != nil {
			return err
		}
		subs, err := admin.ListWebhooks(ctx)
		if err != nil {
			return fmt.Errorf("list webhooks for %s: %w", store.Slug(), err)
		}
		fmt.Fprintf(c.out, "%s (%d webhooks)\n", store.Slug(), len(subs))
		for _, w := range subs {
			fmt.Fprintf(c.out, "  %-14s %-28s %s\n", w.ID, w.Topic, w.Address)
		}
	}
	return nil
}

// remove deletes the sync subscriptions pointing at baseURL and returns how many went
func (c *webhookCLI) remove(ctx context.Context, baseURL string) (int, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return 0, fmt.Errorf("%w: webhook base url", catalogsync.ErrConfigurationMissing)
	}
	topics := make(map[string]bool)
	for _, t := range catalogsync.SyncTopics() {
		topics[t] = true
	}

	deleted := 0
	for _, store := range catalogsync.AllStores() {
		admin, err := c.admin(store)
		if err != nil {
			c.log.Warn("Skipping store", zap.String("store", store.Slug()), zap.Error(err))
			continue
		}
		subs, err := admin.ListWebhooks(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list webhooks for %s: %w", store.Slug(), err)
		}
		for _, w := range subs {
			if !topics[w.Topic] || !strings.Contains(w.Address, baseURL) {
				continue
			}
			if err := admin.DeleteWebhook(ctx, w.ID); err != nil {
				return deleted, fmt.Errorf("delete webhook %s on %s: %w", w.ID, store.Slug(), err)
			}
			fmt.Fprintf(c.out, "  - %-8s %-28s %s\n", store.Slug(), w.Topic, w.Address)
			deleted++
		}
	}
	return deleted, nil
}

// test checks that each store answers with its locations and webhooks
func (c *webhookCLI) test(ctx context.Context, only string) error {
	selected, err := stores(only)
	if err != nil {
		return err
	}
	var failed []string
	for _, store := range selected {
		admin, err := c.admin(store)
		if err != nil {
			fmt.Fprintf(c.out, "%s: FAIL %v\n", store.Slug(), err)
			failed = append(failed, store.Slug())
			continue
		}
		locations, err := admin.GetLocations(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "%s: FAIL locations: %v\n", store.Slug(), err)
			failed = append(failed, store.Slug())
			continue
		}
		subs, err := admin.ListWebhooks(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "%s: FAIL webhooks: %v\n", store.Slug(), err)
			failed = append(failed, store.Slug())
			continue
		}
		primary := "none"
		if loc, ok := catalogsync.PrimaryLocation(locations); ok {
			primary = loc.Name
		}
		fmt.Fprintf(c.out, "%s: OK %d locations (primary %s), %d webhooks\n",
			store.Slug(), len(locations), primary, len(subs))
	}
	if len(failed) > 0 {
		return fmt.Errorf("connectivity check failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func validate(out io.Writer, missing []string) error {
	if len(missing) == 0 {
		fmt.Fprintln(out, "Configuration OK")
		return nil
	}
	fmt.Fprintln(out, "Missing required configuration:")
	for _, name := range missing {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return fmt.Errorf("%w: %s", catalogsync.ErrConfigurationMissing, strings.Join(missing, ", "))
}
