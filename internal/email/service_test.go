package email

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SendActivation(t *testing.T) {
	svc := NewService("mail.local", "1025", "noreply@example.com")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := svc.SendActivation("alex@example.com", "alex", "https://app.example.com/activate?token=abc")
	require.NoError(t, err)

	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alex@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: "+activationSubject)
	assert.Contains(t, string(gotMsg), "https://app.example.com/activate?token=abc")
}

func TestService_SendActivation_EmptyRecipient(t *testing.T) {
	svc := NewService("mail.local", "1025", "noreply@example.com")
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	assert.Error(t, svc.SendActivation("", "alex", "https://x"))
}

func TestService_SendActivation_SMTPFailure(t *testing.T) {
	svc := NewService("mail.local", "1025", "noreply@example.com")
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := svc.SendActivation("alex@example.com", "alex", "https://x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail.local:1025")
}

func TestBuildActivationBody_EscapesInput(t *testing.T) {
	body := BuildActivationBody("<b>eve</b>", "https://x/?a=1&b=2")

	assert.NotContains(t, body, "<b>eve</b>")
	assert.Contains(t, body, "&lt;b&gt;eve&lt;/b&gt;")
	assert.Contains(t, body, "a=1&amp;b=2")
}

func TestBuildActivationBody_DefaultGreeting(t *testing.T) {
	assert.Contains(t, BuildActivationBody("", "https://x"), "Hi there,")
}
