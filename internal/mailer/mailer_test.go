package mailer

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"portfolio/internal/config"
	"portfolio/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_NotConfigured(t *testing.T) {
	s := NewSMTPSender(config.EmailConfig{}, logging.Discard())
	err := s.Send(context.Background(), Message{To: "ann@example.com", Subject: "hi", Body: "text"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildMessage_Headers(t *testing.T) {
	s := NewSMTPSender(config.EmailConfig{SMTPHost: "smtp.example.com", FromEmail: "site@example.com"}, logging.Discard())

	var buf bytes.Buffer
	_, err := s.buildMessage(Message{
		To:      "ann@example.com",
		Subject: "Reset",
		Body:    "follow the link",
		ReplyTo: "bob@example.com",
	}).WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: site@example.com")
	assert.Contains(t, raw, "To: ann@example.com")
	assert.Contains(t, raw, "Reply-To: bob@example.com")
	assert.Contains(t, raw, "Subject: Reset")
	assert.Contains(t, raw, "follow the link")
}

// Сервер принимает соединение и молчит: отправка должна завершиться по таймауту.
func TestSend_RespectsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	s := NewSMTPSender(config.EmailConfig{
		SMTPHost:  host,
		SMTPPort:  portNum,
		FromEmail: "site@example.com",
		Timeout:   100 * time.Millisecond,
	}, logging.Discard())

	start := time.Now()
	err = s.Send(context.Background(), Message{To: "ann@example.com", Subject: "hi", Body: "text"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
