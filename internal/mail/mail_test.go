package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/logger"
)

func TestNew_PicksDriver(t *testing.T) {
	assert.IsType(t, &LogMailer{}, New(config.SMTPConfig{}, logger.Discard()))
	assert.IsType(t, &SMTP{}, New(config.SMTPConfig{Host: "smtp.test", Port: 587}, logger.Discard()))
}

func TestSMTP_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	m := &SMTP{
		cfg: config.SMTPConfig{Host: "smtp.test", Port: 2525, User: "u", Password: "p", From: "no-reply@test"},
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
			return nil
		},
	}

	require.NoError(t, m.Send(context.Background(), "x@test", "Account inactivity", "line one\nline two"))
	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "no-reply@test", gotFrom)
	assert.Equal(t, []string{"x@test"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Account inactivity\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "line one\r\nline two"))
}

func TestSMTP_SendError(t *testing.T) {
	m := &SMTP{
		cfg:  config.SMTPConfig{Host: "smtp.test", Port: 25},
		send: func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") },
	}
	assert.ErrorContains(t, m.Send(context.Background(), "x@test", "s", "b"), "refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "x@test", "s", "b"), context.Canceled)
}

func TestCompose_StripsHeaderInjection(t *testing.T) {
	msg := string(compose("a@test", "b@test", "hi\r\nBcc: evil@test", "body", time.Unix(0, 0)))
	assert.NotContains(t, msg, "\r\nBcc:")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := &LogMailer{Logger: logger.New(logger.Config{Level: "info", Output: &buf})}
	require.NoError(t, m.Send(context.Background(), "x@test", "hello", "body"))
	assert.Contains(t, buf.String(), "to=x@test")
}
