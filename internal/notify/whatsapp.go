package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// maxWhatsAppLength is Twilio's message body limit.
const maxWhatsAppLength = 1600

// WhatsAppSender delivers messages through the Twilio Messages API.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewWhatsAppSender(accountSID, authToken, from string) *WhatsAppSender {
	return &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *WhatsAppSender) Name() Channel {
	return ChannelWhatsApp
}

func (s *WhatsAppSender) Send(ctx context.Context, target Target, msg Message) error {
	if s.accountSID == "" || s.authToken == "" {
		return fmt.Errorf("whatsapp not configured: set TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN")
	}

	to, err := NormalizePhone(target.Address)
	if err != nil {
		return err
	}

	body := truncateMessage(msg.Body, maxWhatsAppLength)

	form := url.Values{}
	form.Set("To", "whatsapp:"+to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio error (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("twilio error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// NormalizePhone validates a WhatsApp number and returns it in +<digits> form.
func NormalizePhone(number string) (string, error) {
	digits := digitsOnly(number)
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number: %s (include country code)", number)
	}
	return "+" + digits, nil
}
