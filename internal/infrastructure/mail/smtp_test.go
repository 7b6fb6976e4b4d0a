package mail

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

func digest() ports.Message {
	return ports.Message{
		To:      []string{"ops@example.com", "legal@example.com"},
		Subject: "ALERTA: Novas publicações do Decreto 46930",
		Text:    "Foram encontradas 1 nova(s) publicação(ões)\n- 12/03/2025\n",
		HTML:    "<p>12/03/2025</p>",
	}
}

func newTestMailer(send func(context.Context, *gomail.Msg) error) *SMTPMailer {
	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "watcher@example.com",
		Password: "secret",
	}, nil)
	m.send = send
	return m
}

func TestSendBuildsOneMultipartMessage(t *testing.T) {
	var captured []*gomail.Msg
	m := newTestMailer(func(_ context.Context, msg *gomail.Msg) error {
		captured = append(captured, msg)
		return nil
	})

	require.NoError(t, m.Send(context.Background(), digest()))
	require.Len(t, captured, 1)

	msg := captured[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ops@example.com", "legal@example.com"}, rcpts)

	from, err := msg.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "watcher@example.com", from, "sender defaults to the SMTP user")

	subjects := msg.GetGenHeader(gomail.HeaderSubject)
	require.Len(t, subjects, 1)
	subject, err := new(mime.WordDecoder).DecodeHeader(subjects[0])
	require.NoError(t, err)
	assert.Equal(t, "ALERTA: Novas publicações do Decreto 46930", subject)

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	body := raw.String()
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "text/plain")
	assert.Contains(t, body, "text/html")
}

func TestSendWithoutRecipients(t *testing.T) {
	called := false
	m := newTestMailer(func(context.Context, *gomail.Msg) error {
		called = true
		return nil
	})

	msg := digest()
	msg.To = nil
	err := m.Send(context.Background(), msg)

	require.ErrorIs(t, err, domain.ErrNotificationDelivery)
	assert.False(t, called)
}

func TestSendInvalidRecipient(t *testing.T) {
	m := newTestMailer(func(context.Context, *gomail.Msg) error { return nil })

	msg := digest()
	msg.To = []string{"not an address"}
	assert.ErrorIs(t, m.Send(context.Background(), msg), domain.ErrNotificationDelivery)
}

func TestSendWrapsTransportFailure(t *testing.T) {
	authErr := errors.New("535 5.7.8 Username and Password not accepted")
	m := newTestMailer(func(context.Context, *gomail.Msg) error { return authErr })

	err := m.Send(context.Background(), digest())
	require.ErrorIs(t, err, domain.ErrNotificationDelivery)
	assert.ErrorIs(t, err, authErr)
	assert.Contains(t, err.Error(), "smtp.example.com:587")
}

func TestDialFailsFast(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, Username: "u@example.com", Password: "p"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, digest())
	assert.ErrorIs(t, err, domain.ErrNotificationDelivery)
}
