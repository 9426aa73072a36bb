package pushover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"title":   r.PostForm.Get("title"),
			"message": r.PostForm.Get("message"),
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	c := NewClient("tok", "usr")
	c.Endpoint = srv.URL
	if err := c.SendMessage(context.Background(), "Next dose", "Ibuprofen is available again"); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := map[string]string{"token": "tok", "user": "usr", "title": "Next dose", "message": "Ibuprofen is available again"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"user":"invalid"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("tok", "bad")
	c.Endpoint = srv.URL
	err := c.SendMessage(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestConfigured(t *testing.T) {
	var nilClient *Client
	if nilClient.Configured() || NewClient("", "u").Configured() || !NewClient("t", "u").Configured() {
		t.Fatal("Configured must require both token and user")
	}
}
