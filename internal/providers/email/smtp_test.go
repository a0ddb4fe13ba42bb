package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPProviderBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.test", Port: "2525", From: "MakerHub <no-reply@makerhub.test>"})

	var sent *email.Email
	var addr string
	p.send = func(e *email.Email, a string, auth smtp.Auth) error {
		sent, addr = e, a
		assert.Nil(t, auth)
		return nil
	}

	msg, err := RenderPurchaseConfirmation("buyer@example.com", PurchaseConfirmation{
		Brand: "Alpha <Calls>", PlanName: "VIP", Amount: "€9.20", ChannelURL: "https://t.me/alpha",
	})
	require.NoError(t, err)
	require.NoError(t, p.Send(context.Background(), msg))

	require.NotNil(t, sent)
	assert.Equal(t, "smtp.test:2525", addr)
	assert.Equal(t, []string{"buyer@example.com"}, sent.To)
	assert.Contains(t, string(sent.HTML), "Alpha &lt;Calls&gt;")
	assert.Contains(t, string(sent.Text), "€9.20")
}

func TestSMTPProviderRequiresRecipient(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.test", Port: "25"})
	assert.Error(t, p.Send(context.Background(), Message{Subject: "x"}))
}
