package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lootwatch/internal/config"
	"lootwatch/internal/notifications"
	"lootwatch/internal/services"
)

func sampleDelivery() notifications.Delivery {
	return notifications.Delivery{
		ItemID:   "abc123",
		Title:    "Headhunter",
		Caption:  "Headhunter\nSeller: guildie\nPrice: 5 divine",
		Filename: "abc123.png",
		Artifact: []byte("\x89PNG fake"),
	}
}

func TestNtfySendsAttachment(t *testing.T) {
	var (
		method  string
		body    string
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch, err := notifications.NewNtfy(srv.URL+"/loot", time.Second)
	if err != nil {
		t.Fatalf("NewNtfy: %v", err)
	}
	if ch.Name() != "ntfy:loot" {
		t.Fatalf("unexpected name %q", ch.Name())
	}
	if err := ch.Send(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
	if body != "\x89PNG fake" {
		t.Fatalf("unexpected body %q", body)
	}
	if headers.Get("Filename") != "abc123.png" || headers.Get("Title") != "Headhunter" {
		t.Fatalf("unexpected headers %v", headers)
	}
	if got := headers.Get("Message"); got != "Headhunter | Seller: guildie | Price: 5 divine" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNtfyReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "attachment too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	ch, err := notifications.NewNtfy(srv.URL+"/loot", 0)
	if err != nil {
		t.Fatalf("NewNtfy: %v", err)
	}
	err = ch.Send(context.Background(), sampleDelivery())
	if err == nil || !strings.Contains(err.Error(), "413") || !strings.Contains(err.Error(), "attachment too large") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestDiscordPostsMultipart(t *testing.T) {
	var (
		payload  map[string]string
		filename string
		file     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/webhooks/987/secret" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		_ = json.Unmarshal([]byte(r.FormValue("payload_json")), &payload)
		f, header, err := r.FormFile("files[0]")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		filename = header.Filename
		file = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch, err := notifications.NewDiscord(srv.URL+"/api/webhooks/987/secret", "lootwatch")
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}
	if ch.Name() != "discord:987" {
		t.Fatalf("name should not expose the token, got %q", ch.Name())
	}
	if err := ch.Send(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload["username"] != "lootwatch" || !strings.HasPrefix(payload["content"], "Headhunter\nSeller") {
		t.Fatalf("unexpected payload %v", payload)
	}
	if filename != "abc123.png" || file != "\x89PNG fake" {
		t.Fatalf("unexpected attachment %q %q", filename, file)
	}
}

func TestDiscordReportsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"You are being rate limited."}`)
	}))
	defer srv.Close()

	ch, err := notifications.NewDiscord(srv.URL+"/api/webhooks/1/t", "")
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}
	if err := ch.Send(context.Background(), sampleDelivery()); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestTelegramSendsPhoto(t *testing.T) {
	var chatID, caption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bot123:abc/sendPhoto") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		chatID = r.FormValue("chat_id")
		caption = r.FormValue("caption")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1714557600,
			"chat":{"id":42,"type":"private"},"caption":"Headhunter",
			"photo":[{"file_id":"f1","file_unique_id":"u1","width":10,"height":10,"file_size":9}]}}`)
	}))
	defer srv.Close()

	ch, err := notifications.NewTelegram("123:abc", 42, notifications.WithTelegramAPI(srv.URL))
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if ch.Name() != "telegram:42" {
		t.Fatalf("unexpected name %q", ch.Name())
	}
	if err := ch.Send(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if chatID != "42" || !strings.HasPrefix(caption, "Headhunter") {
		t.Fatalf("unexpected form chat=%q caption=%q", chatID, caption)
	}
}

func TestTelegramRejectsCancelledContext(t *testing.T) {
	ch, err := notifications.NewTelegram("123:abc", 42)
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ch.Send(ctx, sampleDelivery()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestBuildChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.Telegram.Token = "123:abc"
	cfg.Dispatch.Telegram.ChatIDs = []int64{1, 2}
	cfg.Dispatch.Discord.WebhookURLs = []string{"https://discord.example/api/webhooks/5/t"}
	cfg.Dispatch.Ntfy.Topics = []string{"https://ntfy.example/loot"}

	channels, err := notifications.BuildChannels(&cfg)
	if err != nil {
		t.Fatalf("BuildChannels: %v", err)
	}
	var names []string
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	want := "telegram:1,telegram:2,discord:5,ntfy:loot"
	if strings.Join(names, ",") != want {
		t.Fatalf("unexpected channels %v", names)
	}

	cfg.Dispatch.Ntfy.Topics = []string{"loot"}
	if _, err := notifications.BuildChannels(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for relative topic, got %v", err)
	}
}
