package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = email
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func testConfig() *Config {
	return &Config{
		FromEmail: "crm@grbpwr.com",
		FromName:  "grbpwr crm",
		ReplyTo:   "ops@grbpwr.com",
		To:        []string{"owner@grbpwr.com", "ops@grbpwr.com"},
	}
}

func TestDeliver(t *testing.T) {
	fs := &fakeSender{status: http.StatusAccepted}
	m, err := NewWithSender(testConfig(), fs)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

	to, err := m.Deliver(context.Background(), &entity.File{
		Name:     "top_products_2024-03-09.csv",
		MIMEType: "text/csv; charset=utf-8",
		Content:  []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@grbpwr.com, ops@grbpwr.com", to)

	require.NotNil(t, fs.sent)
	assert.Equal(t, "Report export: top products", fs.sent.Subject)
	require.Len(t, fs.sent.Personalizations, 1)
	assert.Len(t, fs.sent.Personalizations[0].To, 2)
	require.Len(t, fs.sent.Attachments, 1)
	att := fs.sent.Attachments[0]
	assert.Equal(t, "top_products_2024-03-09.csv", att.Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("x")), att.Content)
	require.Len(t, fs.sent.Content, 1)
	assert.Contains(t, fs.sent.Content[0].Value, "2024-03-09 10:00 UTC")
}

func TestDeliverFailures(t *testing.T) {
	m, err := NewWithSender(testConfig(), &fakeSender{err: errors.New("timeout")})
	require.NoError(t, err)
	_, err = m.Deliver(context.Background(), &entity.File{Name: "a.csv"})
	assert.ErrorIs(t, err, gerr.DeliveryFailure)

	m, err = NewWithSender(testConfig(), &fakeSender{status: http.StatusUnauthorized})
	require.NoError(t, err)
	_, err = m.Deliver(context.Background(), &entity.File{Name: "a.csv"})
	assert.ErrorIs(t, err, gerr.DeliveryFailure)
}

func TestIncompleteConfig(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
	_, err = NewWithSender(&Config{FromEmail: "a@b.c", FromName: "a"}, &fakeSender{})
	assert.Error(t, err)
}

func TestReportName(t *testing.T) {
	assert.Equal(t, "orders", reportName("orders_2024-03-09.json"))
	assert.Equal(t, "daily revenue", reportName("daily_revenue_2024-03-09.html"))
	assert.Equal(t, "plain", reportName("plain"))
}
