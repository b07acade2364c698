package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lootwatch/internal/textutil"
)

// Ntfy publishes artifacts to an ntfy topic as attachments.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy returns a channel for the topic URL. A non-positive timeout falls
// back to ten seconds.
func NewNtfy(topic string, timeout time.Duration) (*Ntfy, error) {
	topic = strings.TrimSpace(topic)
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("ntfy topic %q must be an absolute http(s) url", topic)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: topic, client: &http.Client{Timeout: timeout}}, nil
}

func (n *Ntfy) Name() string {
	parsed, err := url.Parse(n.endpoint)
	if err != nil {
		return "ntfy"
	}
	return "ntfy:" + strings.Trim(parsed.Path, "/")
}

func (n *Ntfy) Send(ctx context.Context, delivery Delivery) error {
	if len(delivery.Artifact) == 0 {
		return errors.New("ntfy: empty artifact")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, n.endpoint, bytes.NewReader(delivery.Artifact))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Filename", delivery.Filename)
	req.Header.Set("Tags", "lootwatch")
	if title := textutil.SingleLine(delivery.Title, " "); title != "" {
		req.Header.Set("Title", title)
	}
	if message := textutil.SingleLine(delivery.Caption, " | "); message != "" {
		req.Header.Set("Message", message)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return deliveryError(n.Name(), resp.StatusCode, string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
