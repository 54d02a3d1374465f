package platforms

import (
	"context"
	"strings"
)

type FeishuAdapter struct {
	client *HTTPClient
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client}
}

func (a *FeishuAdapter) Name() string {
	return "feishu"
}

func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{"tag": "markdown", "text": msg.Description}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{
			"tag":  "markdown",
			"text": "**" + f.Name + "**: " + f.Value,
		})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": msg.Title},
				"template": "blue",
			},
			"elements": elements,
		},
	}
	headers := map[string]string{}
	if sig := strings.TrimSpace(secret); sig != "" {
		headers["X-Lark-Signature"] = sig
	}
	return a.client.PostJSON(ctx, endpoint, headers, payload)
}

// WebhookAdapter posts the message as plain JSON for custom receivers.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	fields := make(map[string]string, len(msg.Fields))
	for _, f := range msg.Fields {
		fields[f.Name] = f.Value
	}
	headers := map[string]string{}
	if secret != "" {
		headers["Authorization"] = "Bearer " + secret
	}
	return a.client.PostJSON(ctx, endpoint, headers, map[string]any{
		"title":       msg.Title,
		"description": msg.Description,
		"timestamp":   msg.Timestamp,
		"fields":      fields,
	})
}
