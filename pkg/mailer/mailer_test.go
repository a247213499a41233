package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/smtp"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleHTML = `<html><body><h2>New messages</h2><p>You have <strong>2</strong> unread messages in Food Drive.</p></body></html>`

func TestAPISenderSuccess(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	var got apiRequest
	var auth string
	httpmock.RegisterResponder(http.MethodPost, "https://mail.test/emails",
		func(req *http.Request) (*http.Response, error) {
			auth = req.Header.Get("Authorization")
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad json"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"abc"}`), nil
		})

	s := NewAPISender(Config{FromAddress: "noreply@campusreach.org", FromName: "CampusReach", APIKey: "key-1", APIBaseURL: "https://mail.test/"}, client)
	res := s.Send(context.Background(), "vol@example.edu", "New messages", sampleHTML)

	require.True(t, res.Success, "send failed: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, "CampusReach <noreply@campusreach.org>", got.From)
	assert.Equal(t, []string{"vol@example.edu"}, got.To)
	assert.Equal(t, sampleHTML, got.HTML)
	assert.Contains(t, got.Text, "unread messages in Food Drive")
	assert.NotContains(t, got.Text, "<strong>")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestAPISenderProviderError(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://mail.test/emails",
		httpmock.NewStringResponder(http.StatusUnprocessableEntity, `{"message":"invalid to"}`))

	s := NewAPISender(Config{APIKey: "k", APIBaseURL: "https://mail.test"}, client)
	res := s.Send(context.Background(), "bad", "s", "<p>x</p>")

	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "422")
}

func TestAPISenderTransportError(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://mail.test/emails",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	res := NewAPISender(Config{APIKey: "k", APIBaseURL: "https://mail.test"}, client).
		Send(context.Background(), "a@b.c", "s", "<p>x</p>")

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "connection refused")
}

func TestSMTPSenderBuildsMultipart(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	s := NewSMTPSender(Config{FromAddress: "noreply@campusreach.org", SMTPHost: "smtp.test", SMTPPort: 2525, SMTPUser: "u", SMTPPass: "p"})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "noreply@campusreach.org", from)
		assert.Equal(t, []string{"org@example.org"}, to)
		return nil
	}

	res := s.Send(context.Background(), "org@example.org", "Reminder", sampleHTML)
	require.True(t, res.Success)
	assert.Equal(t, "smtp.test:2525", gotAddr)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Reminder\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/plain; charset=UTF-8")
	assert.Contains(t, msg, "text/html; charset=UTF-8")
	assert.True(t, strings.Index(msg, "text/plain") < strings.Index(msg, "text/html"))
}

func TestSMTPSenderFailure(t *testing.T) {
	s := NewSMTPSender(Config{SMTPHost: "smtp.test", SMTPPort: 25})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("451 try later")
	}
	res := s.Send(context.Background(), "a@b.c", "s", "<p>x</p>")
	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "451")
}

func TestSMTPSenderCancelledContext(t *testing.T) {
	s := NewSMTPSender(Config{SMTPHost: "smtp.test", SMTPPort: 25})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not dial with a cancelled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.Send(ctx, "a@b.c", "s", "<p>x</p>")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestNewSelectsProvider(t *testing.T) {
	logger := zap.NewNop()
	assert.IsType(t, &APISender{}, New(Config{APIKey: "k", SMTPHost: "smtp"}, logger))
	assert.IsType(t, &SMTPSender{}, New(Config{SMTPHost: "smtp"}, logger))
	assert.IsType(t, &LogSender{}, New(Config{}, nil))
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	res := NewLogSender(nil).Send(context.Background(), "a@b.c", "s", sampleHTML)
	assert.True(t, res.Success)
	assert.NoError(t, res.Err)
}
