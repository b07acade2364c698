package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"lootwatch/internal/textutil"
)

const discordContentLimit = 2000

type discordPayload struct {
	Content  string `json:"content,omitempty"`
	Username string `json:"username,omitempty"`
}

// Discord posts artifacts to a webhook as multipart uploads.
type Discord struct {
	webhook  string
	username string
	http     *resty.Client
}

// NewDiscord validates the webhook URL and prepares an HTTP client for it.
func NewDiscord(webhook, username string) (*Discord, error) {
	webhook = strings.TrimSpace(webhook)
	parsed, err := url.Parse(webhook)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, errors.New("discord webhook url must be an absolute http(s) url")
	}
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", userAgent)
	return &Discord{webhook: webhook, username: strings.TrimSpace(username), http: client}, nil
}

// Name identifies the channel without leaking the webhook token.
func (d *Discord) Name() string {
	parsed, err := url.Parse(d.webhook)
	if err != nil {
		return "discord"
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) >= 2 {
		return "discord:" + segments[len(segments)-2]
	}
	return "discord:" + parsed.Host
}

func (d *Discord) Send(ctx context.Context, delivery Delivery) error {
	payload, err := json.Marshal(discordPayload{
		Content:  textutil.Truncate(delivery.Caption, discordContentLimit),
		Username: d.username,
	})
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", d.Name(), err)
	}
	resp, err := d.http.R().
		SetContext(ctx).
		SetFileReader("files[0]", delivery.Filename, bytes.NewReader(delivery.Artifact)).
		SetFormData(map[string]string{"payload_json": string(payload)}).
		Post(d.webhook)
	if err != nil {
		return fmt.Errorf("%s: post webhook: %w", d.Name(), err)
	}
	if resp.StatusCode() >= 300 {
		return deliveryError(d.Name(), resp.StatusCode(), resp.String())
	}
	return nil
}
