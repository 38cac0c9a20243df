package shopify

import (
	"context"
	"errors"
	"strings"
)

// Topics the service subscribes to, grouped by the callback path that receives them.
var (
	DiscountTopics = []string{"DISCOUNTS_CREATE", "DISCOUNTS_UPDATE", "DISCOUNTS_DELETE"}
	OrderTopics    = []string{"ORDERS_CREATE", "ORDERS_PAID", "ORDERS_UPDATED"}
)

const (
	DiscountWebhookPath = "/api/webhooks/shopify"
	OrderWebhookPath    = "/api/webhooks/shopify-orders"
)

type WebhookRegistration struct {
	Topic       string `json:"topic"`
	CallbackURL string `json:"callbackUrl"`
	ID          string `json:"id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type webhookCreateData struct {
	WebhookSubscriptionCreate struct {
		WebhookSubscription *struct {
			ID string `json:"id"`
		} `json:"webhookSubscription"`
		UserErrors []userError `json:"userErrors"`
	} `json:"webhookSubscriptionCreate"`
}

// RegisterWebhooks subscribes every discount and order topic to baseURL.
// Each topic is attempted even when an earlier one fails.
func (c *Client) RegisterWebhooks(ctx context.Context, baseURL string) ([]WebhookRegistration, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("shopify: base url for webhook callbacks is empty")
	}

	query := `
mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $webhookSubscription: WebhookSubscriptionInput!) {
	webhookSubscriptionCreate(topic: $topic, webhookSubscription: $webhookSubscription) {
		webhookSubscription { id }
		userErrors { field message }
	}
}`

	var results []WebhookRegistration
	register := func(topic, path string) {
		reg := WebhookRegistration{Topic: topic, CallbackURL: baseURL + path}
		var data webhookCreateData
		err := c.graphqlRequest(ctx, query, map[string]any{
			"topic": topic,
			"webhookSubscription": map[string]any{
				"callbackUrl": reg.CallbackURL,
				"format":      "JSON",
			},
		}, &data)
		if err == nil {
			err = userErrorsToError("webhookSubscriptionCreate", data.WebhookSubscriptionCreate.UserErrors)
		}
		switch {
		case err != nil:
			reg.Error = err.Error()
		case data.WebhookSubscriptionCreate.WebhookSubscription != nil:
			reg.ID = data.WebhookSubscriptionCreate.WebhookSubscription.ID
		}
		results = append(results, reg)
	}
	for _, topic := range DiscountTopics {
		register(topic, DiscountWebhookPath)
	}
	for _, topic := range OrderTopics {
		register(topic, OrderWebhookPath)
	}
	return results, nil
}
