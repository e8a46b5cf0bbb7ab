package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scrumcore/pkg/domain"
)

func TestWebhookNotify(t *testing.T) {
	var got webhookBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := NewWebhook(server.URL, server.Client(), nil)
	integration := domain.ChatIntegration{Token: "tok", Room: "Dev Room", Notify: true}
	if err := w.Notify(context.Background(), integration, "Sprint 4 planned"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Token != "tok" || got.Room != "Dev Room" || !got.Notify || got.Message != "Sprint 4 planned" {
		t.Fatalf("payload %+v", got)
	}
}

func TestWebhookSkipsIncompleteIntegration(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	w := NewWebhook(server.URL, server.Client(), nil)
	if err := w.Notify(context.Background(), domain.ChatIntegration{Room: "Dev"}, "hi"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if called {
		t.Fatalf("incomplete integration must not call out")
	}
}

func TestWebhookReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	w := NewWebhook(server.URL, server.Client(), nil)
	integration := domain.ChatIntegration{Token: "tok", Room: "Dev"}
	if err := w.Notify(context.Background(), integration, "hi"); err == nil {
		t.Fatalf("expected error on rejection")
	}
}

func TestWebhookReportsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	w := NewWebhook(url, nil, nil)
	integration := domain.ChatIntegration{Token: "tok", Room: "Dev"}
	if err := w.Notify(context.Background(), integration, "hi"); err == nil {
		t.Fatalf("expected transport error")
	}
}
