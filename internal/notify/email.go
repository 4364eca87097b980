package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// EmailSender delivers messages over SMTP with STARTTLS.
type EmailSender struct {
	host     string
	port     int
	from     string
	password string

	// sendMail is swappable for tests; defaults to dialAndSend.
	sendMail func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(host string, port int, from, password string) *EmailSender {
	s := &EmailSender{
		host:     host,
		port:     port,
		from:     from,
		password: password,
	}
	s.sendMail = s.dialAndSend
	return s
}

func (s *EmailSender) Name() Channel {
	return ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, target Target, msg Message) error {
	if err := ValidateEmail(target.Address); err != nil {
		return err
	}
	return s.sendTo(ctx, target.Address, msg.Subject, msg.Body)
}

// sendTo is shared with the SMS gateway sender, which delivers through an
// email address with an empty subject.
func (s *EmailSender) sendTo(ctx context.Context, to, subject, body string) error {
	if s.from == "" || s.password == "" {
		return fmt.Errorf("email not configured: set SMTP_EMAIL and SMTP_PASSWORD")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	if err := s.sendMail(ctx, addr, auth, s.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// dialAndSend is smtp.SendMail with the connection bound to ctx, so the
// delivery stage timeout bounds the whole SMTP exchange, not just the dial.
func (s *EmailSender) dialAndSend(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// ValidateEmail does a shape check, not RFC validation.
func ValidateEmail(address string) error {
	at := strings.Index(address, "@")
	if at < 1 || at == len(address)-1 || !strings.Contains(address[at:], ".") {
		return fmt.Errorf("invalid email address: %s", address)
	}
	return nil
}
