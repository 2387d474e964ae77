package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kjannette/coinledger/internal/pricesync"
)

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot", nil)
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	if err := s.Send(context.Background(), "hello from test"); err != nil {
		t.Fatalf("Send with no webhook: %v", err)
	}
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot", nil)
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	if err := s.Send(context.Background(), "refresh complete"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if received["username"] != "TestBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] != "`[TestBot] refresh complete`" {
		t.Fatalf("text: got %q", received["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "LedgerBot", nil)
	if err := s.Send(context.Background(), "bitcoin synced to 2024-01-05"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if received["username"] != "LedgerBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSend_WebhookRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot", nil)
	err := s.Send(context.Background(), "denied")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestSyncFailures(t *testing.T) {
	var calls int
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
	}))
	defer srv.Close()
	s := NewSender(srv.URL, "TestBot", nil)

	ok := pricesync.Report{Results: []pricesync.Result{{CoinID: "bitcoin"}}}
	if err := s.SyncFailures(context.Background(), ok); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("no webhook expected for a clean run, got %d calls", calls)
	}

	bad := pricesync.Report{Results: []pricesync.Result{
		{CoinID: "bitcoin"},
		{CoinID: "nocoin", Err: errors.New("status 404")},
	}}
	if err := s.SyncFailures(context.Background(), bad); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 webhook call, got %d", calls)
	}
	if !strings.Contains(received["text"], "1 of 2 coins failed: nocoin (status 404)") {
		t.Fatalf("unexpected summary %q", received["text"])
	}
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "", nil)
	if s.botName != "CoinLedger" {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}
