package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWhatsAppSend(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Messages.json") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			t.Error("missing or wrong basic auth")
		}
		r.ParseForm()
		gotForm = map[string]string{
			"To":   r.FormValue("To"),
			"From": r.FormValue("From"),
			"Body": r.FormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer server.Close()

	s := NewWhatsAppSender("AC123", "token", "whatsapp:+14155238886")
	s.baseURL = server.URL

	err := s.Send(context.Background(), Target{Channel: ChannelWhatsApp, Address: "+91 9876543210"}, Message{Body: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotForm["To"] != "whatsapp:+919876543210" {
		t.Errorf("To = %q", gotForm["To"])
	}
	if gotForm["From"] != "whatsapp:+14155238886" {
		t.Errorf("From = %q", gotForm["From"])
	}
	if gotForm["Body"] != "hi" {
		t.Errorf("Body = %q", gotForm["Body"])
	}
}

func TestWhatsAppSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"not a valid WhatsApp number","code":63015}`))
	}))
	defer server.Close()

	s := NewWhatsAppSender("AC123", "token", "whatsapp:+14155238886")
	s.baseURL = server.URL

	err := s.Send(context.Background(), Target{Address: "+15551234567"}, Message{Body: "hi"})
	if err == nil || !strings.Contains(err.Error(), "not a valid WhatsApp number") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestWhatsAppInvalidAddress(t *testing.T) {
	s := NewWhatsAppSender("AC123", "token", "whatsapp:+14155238886")
	err := s.Send(context.Background(), Target{Address: "12345"}, Message{Body: "hi"})
	if err == nil || !strings.Contains(err.Error(), "invalid phone number") {
		t.Fatalf("expected invalid address error, got %v", err)
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", maxWhatsAppLength); got != "short" {
		t.Errorf("short message changed: %q", got)
	}

	// A body of multi-byte runes must be cut on a rune boundary, never
	// mid-sequence.
	long := strings.Repeat("नमस्ते ", 200)
	got := truncateMessage(long, maxWhatsAppLength)
	if len(got) > maxWhatsAppLength {
		t.Errorf("truncated to %d bytes, limit %d", len(got), maxWhatsAppLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got[len(got)-12:])
	}
}

func TestWhatsAppSendTruncatesLongBody(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotBody = r.FormValue("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer server.Close()

	s := NewWhatsAppSender("AC123", "token", "whatsapp:+14155238886")
	s.baseURL = server.URL

	err := s.Send(context.Background(), Target{Address: "+15551234567"}, Message{Body: strings.Repeat("é", 2000)})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(gotBody) > maxWhatsAppLength {
		t.Errorf("sent %d bytes, limit %d", len(gotBody), maxWhatsAppLength)
	}
	if !utf8.ValidString(gotBody) {
		t.Error("sent body is invalid UTF-8")
	}
}

func TestWhatsAppNotConfigured(t *testing.T) {
	s := NewWhatsAppSender("", "", "whatsapp:+14155238886")
	err := s.Send(context.Background(), Target{Address: "+15551234567"}, Message{Body: "hi"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not-configured error, got %v", err)
	}
}
