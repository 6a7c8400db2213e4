package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string) *EvolutionClient {
	t.Helper()
	client, err := NewEvolutionClient(EvolutionClientConfig{
		BaseURL:   serverURL,
		Instance:  "principal",
		Token:     "test-token",
		Timeout:   2 * time.Second,
		PacingMin: time.Millisecond,
		PacingMax: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewEvolutionClient: %v", err)
	}
	return client
}

func TestEvolutionClientSendSuccess(t *testing.T) {
	var sentPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instance/connectionState/principal":
			if got := r.Header.Get("apikey"); got != "test-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"connectionState":"open"}`))
		case "/message/sendText/principal":
			_ = json.NewDecoder(r.Body).Decode(&sentPayload)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.Send(context.Background(), "+55 11 99999-0000", "Olá equipe", "A1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sentPayload["number"] != "5511999990000" {
		t.Fatalf("number not normalized: %v", sentPayload["number"])
	}
	if sentPayload["text"] != "Olá equipe" {
		t.Fatalf("unexpected text: %v", sentPayload["text"])
	}
}

func TestEvolutionClientFailsFastWhenSessionClosed(t *testing.T) {
	sendCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instance/connectionState/principal":
			_, _ = w.Write([]byte(`{"connectionState":"close"}`))
		case "/message/sendText/principal":
			sendCalled = true
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Send(context.Background(), "5511999990000", "Olá", "A1")
	if !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
	if sendCalled {
		t.Fatal("send endpoint must not be reached when the session is closed")
	}
}

func TestEvolutionClientGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instance/connectionState/principal":
			_, _ = w.Write([]byte(`{"connectionState":"open"}`))
		case "/message/sendText/principal":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid number"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Send(context.Background(), "123", "Olá", "A1")
	var deliveryErr *Error
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if deliveryErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", deliveryErr.StatusCode)
	}
}

func TestEvolutionClientRejectedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instance/connectionState/principal":
			_, _ = w.Write([]byte(`{"connectionState":"open"}`))
		case "/message/sendText/principal":
			_, _ = w.Write([]byte(`{"success":false,"message":"blocked"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Send(context.Background(), "5511999990000", "Olá", "A1")
	var deliveryErr *Error
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if deliveryErr.Detail != "blocked" {
		t.Fatalf("unexpected detail: %q", deliveryErr.Detail)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(" +55 11 99999-0000 "); got != "5511999990000" {
		t.Fatalf("FormatNumber = %q", got)
	}
}
