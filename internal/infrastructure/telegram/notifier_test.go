package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("tok", "42").WithAPIBase(server.URL)
	if err := n.Publish(context.Background(), "stage ingest aborted"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "42" || gotText != "stage ingest aborted" {
		t.Fatalf("unexpected form: chat=%s text=%s", gotChat, gotText)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if err := NewNotifier("tok", "1").WithAPIBase(server.URL).Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected status error")
	}
}
