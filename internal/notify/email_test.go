package notify

import (
	"context"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailSendUsesConfiguredTransport(t *testing.T) {
	var gotTo []string
	var gotMsg []byte
	s := NewEmailSender("smtp.example.com", 587, "from@example.com", "secret")
	s.sendMail = func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := s.Send(context.Background(), Target{Channel: ChannelEmail, Address: "user@example.com"}, Message{Subject: "hi", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: hi")
	assert.Contains(t, string(gotMsg), "hello")
}

func TestEmailSendHonorsContextDeadline(t *testing.T) {
	// A server that accepts connections but never sends the SMTP greeting.
	// The client must give up at the context deadline, not hang.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				<-hold
				c.Close()
			}(conn)
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s := NewEmailSender("127.0.0.1", port, "from@example.com", "secret")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.sendTo(ctx, "to@example.com", "subject", "body")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
