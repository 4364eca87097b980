package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// smsGateways maps carrier names to their email-to-SMS gateway domains.
var smsGateways = map[string]string{
	"airtel": "@airtelmail.com",
	"jio":    "@jio.com",
	"vi":     "@vimail.com",
	"bsnl":   "@bsnl.in",
	// US carriers
	"att":     "@txt.att.net",
	"tmobile": "@tmomail.net",
	"verizon": "@vtext.com",
}

// SMSSender delivers through carrier email-to-SMS gateways, reusing the
// configured SMTP transport.
type SMSSender struct {
	email *EmailSender
}

func NewSMSSender(email *EmailSender) *SMSSender {
	return &SMSSender{email: email}
}

func (s *SMSSender) Name() Channel {
	return ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, target Target, msg Message) error {
	gateway, err := GatewayAddress(target.Address, target.Carrier)
	if err != nil {
		return err
	}

	body := truncateMessage(msg.Short, maxWhatsAppLength)

	return s.email.sendTo(ctx, gateway, "", body)
}

// GatewayAddress builds the carrier gateway email for a phone number.
func GatewayAddress(phone, carrier string) (string, error) {
	domain, ok := smsGateways[strings.ToLower(carrier)]
	if !ok {
		return "", fmt.Errorf("unsupported carrier: %s (supported: %s)", carrier, strings.Join(supportedCarriers(), ", "))
	}

	digits := digitsOnly(phone)
	if len(digits) < 10 {
		return "", fmt.Errorf("invalid phone number: %s", phone)
	}
	// Gateways expect the 10-digit subscriber number without country code
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}

	return digits + domain, nil
}

func supportedCarriers() []string {
	names := make([]string, 0, len(smsGateways))
	for name := range smsGateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
