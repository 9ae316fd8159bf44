/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	userAgent             = "nodeselector-notify/v1"
)

// webhookMessage is the JSON body accepted by Slack-style incoming webhooks.
type webhookMessage struct {
	Text string `json:"text"`
}

// WebhookSenderConfig holds the configuration for creating a WebhookSender.
type WebhookSenderConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookSender posts messages to an incoming webhook. It does not retry.
type WebhookSender struct {
	httpClient *http.Client
	url        string
}

var _ Sink = &WebhookSender{}

// NewWebhookSender creates a WebhookSender. Returns an error if the URL is invalid.
func NewWebhookSender(cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &WebhookSender{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		url: cfg.URL,
	}, nil
}

// URL returns the destination with credentials redacted, for logging.
func (ws *WebhookSender) URL() string { return RedactURL(ws.url) }

// Deliver implements Sink.
func (ws *WebhookSender) Deliver(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		// The client error embeds the full URL.
		return fmt.Errorf("post to %s: %w", RedactURL(ws.url), unwrapURLError(err))
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values. Incoming webhook
// URLs carry their secret in the path, so everything after the host is hidden.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	r := &url.URL{Scheme: u.Scheme, Host: u.Host}
	if u.User != nil {
		r.User = url.User(u.User.Username())
	}
	if u.Path != "" && u.Path != "/" {
		r.Path = "/REDACTED"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r.RawQuery = q.Encode()
	}
	return r.String()
}
