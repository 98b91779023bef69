package providers

import (
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderSend(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "user", "pass", "bot@example.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, s.Send("ops@example.com", "Gönderi başarısız", "<p>hi</p>", "hi"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "multipart/alternative; boundary=\"tp-")
	assert.Equal(t, 3, strings.Count(msg, "--tp-"))
	assert.Contains(t, msg, "<p>hi</p>")
}

func TestSMTPSenderNoAuth(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "bot@example.com")
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	s.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		gotAuth = a
		return nil
	}
	require.NoError(t, s.Send("a@b", "s", "h", "p"))
	assert.Nil(t, gotAuth)
}
