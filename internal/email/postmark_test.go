package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/freshmate/internal/notify"
)

func testClient(token string, server *httptest.Server) *Client {
	return NewClient(token, "noreply@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))
}

func TestSendReminder(t *testing.T) {
	var received postmarkEmail
	var gotToken, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := testClient("test-token", server)
	msg := notify.Message{
		Kind:    notify.KindReminder,
		To:      "alice@example.com",
		Subject: "FreshMate reminder: Milk expires in 3 days",
		Body:    "Hi,\n\nYour Milk <1 litre> expires soon.\n\nFreshMate\n",
	}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if gotPath != "/email" {
		t.Errorf("path = %q, want /email", gotPath)
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != msg.Subject {
		t.Errorf("Subject = %q, want %q", received.Subject, msg.Subject)
	}
	if received.Tag != "reminder" {
		t.Errorf("Tag = %q, want reminder", received.Tag)
	}
	if received.TextBody != msg.Body {
		t.Errorf("TextBody = %q", received.TextBody)
	}
	if !strings.Contains(received.HtmlBody, "&lt;1 litre&gt;") {
		t.Errorf("HtmlBody not escaped: %q", received.HtmlBody)
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"ErrorCode": 300, "Message": "Invalid 'To' address"}`))
	}))
	defer server.Close()

	err := testClient("test-token", server).Send(context.Background(), notify.Message{To: "x@example.com", Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected error for API failure")
	}
	if !strings.Contains(err.Error(), "Invalid 'To' address") {
		t.Errorf("error = %v", err)
	}
}

func TestSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := testClient("test-token", server).Send(context.Background(), notify.Message{To: "x@example.com"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v, want status 502", err)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")
	err := client.Send(context.Background(), notify.Message{To: "alice@example.com"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendEmptyRecipient(t *testing.T) {
	client := NewClient("token", "noreply@example.com")
	if err := client.Send(context.Background(), notify.Message{}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("token", "noreply@example.com", WithHTTPClient(&http.Client{
		Timeout:   20 * time.Millisecond,
		Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL},
	}))
	if err := client.Send(context.Background(), notify.Message{To: "a@example.com"}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestConfigured(t *testing.T) {
	c1 := NewClient("token", "from@test.com")
	if !c1.Configured() {
		t.Error("expected Configured() = true")
	}

	c2 := NewClient("", "from@test.com")
	if c2.Configured() {
		t.Error("expected Configured() = false")
	}
}

func TestHTMLBody(t *testing.T) {
	got := htmlBody("Hi,\n\nLine one\nLine two\n\nBye\n")
	want := "<p>Hi,</p><p>Line one<br>Line two</p><p>Bye</p>"
	if got != want {
		t.Errorf("htmlBody = %q, want %q", got, want)
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
