package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lootwatch/internal/config"
	"lootwatch/internal/services"
)

const userAgent = "lootwatch/0.1.0"

// Delivery is one artifact addressed to a channel.
type Delivery struct {
	ItemID   string
	Title    string
	Caption  string
	Filename string
	Artifact []byte
}

// Channel sends deliveries to a single destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, delivery Delivery) error
}

// BuildChannels returns one channel per configured destination.
func BuildChannels(cfg *config.Config) ([]Channel, error) {
	if cfg == nil {
		return nil, nil
	}
	dispatch := cfg.Dispatch
	var (
		channels []Channel
		errs     []error
	)

	if token := strings.TrimSpace(dispatch.Telegram.Token); token != "" {
		for _, chatID := range dispatch.Telegram.ChatIDs {
			ch, err := NewTelegram(token, chatID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			channels = append(channels, ch)
		}
	}
	for _, hook := range dispatch.Discord.WebhookURLs {
		ch, err := NewDiscord(hook, dispatch.Discord.Username)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		channels = append(channels, ch)
	}
	timeout := time.Duration(dispatch.Ntfy.RequestTimeout) * time.Second
	for _, topic := range dispatch.Ntfy.Topics {
		ch, err := NewNtfy(topic, timeout)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		channels = append(channels, ch)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "notifications", "build channels", "Invalid delivery channel configuration", err)
	}
	return channels, nil
}

func deliveryError(channel string, status int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		body = body[:256]
	}
	if status == 0 {
		return fmt.Errorf("%s: %s", channel, body)
	}
	return fmt.Errorf("%s returned %d: %s", channel, status, body)
}
