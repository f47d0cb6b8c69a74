package otp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatewise/gatewise/internal/config"
	"github.com/sirupsen/logrus"
)

func newTestClient(url string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(&config.VerifyConfig{
		BaseURL:    url,
		AccountSID: "AC123",
		AuthToken:  "token",
		ServiceSID: "VA123",
		Channel:    "sms",
		Timeout:    2 * time.Second,
	}, logger)
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/Services/VA123/Verifications" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Error("missing or wrong basic auth")
		}
		r.ParseForm()
		if r.PostForm.Get("To") != "+15551234567" || r.PostForm.Get("Channel") != "sms" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).Send(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).Send(context.Background(), "+15551234567"); err == nil {
		t.Fatal("expected error for a non-2xx response")
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/Services/VA123/VerificationCheck" {
			t.Errorf("path = %q", r.URL.Path)
		}
		r.ParseForm()
		if r.PostForm.Get("Code") == "123456" {
			w.Write([]byte(`{"status":"approved"}`))
			return
		}
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	status, err := client.Check(context.Background(), "+15551234567", "123456")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != "approved" {
		t.Errorf("status = %q, want approved", status)
	}

	status, err = client.Check(context.Background(), "+15551234567", "000000")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != "pending" {
		t.Errorf("status = %q, want pending", status)
	}
}

func TestCheckProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Check(context.Background(), "+15551234567", "123456"); err == nil {
		t.Fatal("expected error for a non-2xx response")
	}
}
