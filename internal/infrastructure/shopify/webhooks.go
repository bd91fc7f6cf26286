package shopify

import (
	"context"
	"net/http"
	"net/url"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

type webhookInput struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// ListWebhooks returns the shop's webhook subscriptions
func (c *Client) ListWebhooks(ctx context.Context) ([]catalogsync.WebhookSubscription, error) {
	var env webhooksEnvelope
	if _, err := c.do(ctx, "list_webhooks", http.MethodGet, "/webhooks.json", nil, nil, &env); err != nil {
		return nil, err
	}
	subs := make([]catalogsync.WebhookSubscription, 0, len(env.Webhooks))
	for _, w := range env.Webhooks {
		subs = append(subs, w.toDomain())
	}
	return subs, nil
}

// CreateWebhook subscribes address to topic with JSON payloads
func (c *Client) CreateWebhook(ctx context.Context, topic, address string) (*catalogsync.WebhookSubscription, error) {
	body := map[string]webhookInput{
		"webhook": {Topic: topic, Address: address, Format: "json"},
	}
	var env webhookEnvelope
	if _, err := c.do(ctx, "create_webhook", http.MethodPost, "/webhooks.json", nil, body, &env); err != nil {
		return nil, err
	}
	sub := env.Webhook.toDomain()
	return &sub, nil
}

// DeleteWebhook removes a webhook subscription
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	_, err := c.do(ctx, "delete_webhook", http.MethodDelete, "/webhooks/"+url.PathEscape(webhookID)+".json", nil, nil, nil)
	return err
}
