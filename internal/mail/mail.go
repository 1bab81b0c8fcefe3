// Package mail delivers rendered exports as email attachments via SendGrid.
package mail

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

const reportExport = "report_export.gohtml"

type Config struct {
	APIKey    string   `mapstructure:"sendgrid_api_key"`
	FromEmail string   `mapstructure:"from_email"`
	FromName  string   `mapstructure:"from_email_name"`
	ReplyTo   string   `mapstructure:"reply_to"`
	To        []string `mapstructure:"to"`
}

type Mailer struct {
	cli  dependency.Sender
	from *mail.Email
	c    *Config
	tmpl *template.Template
	now  func() time.Time
}

func New(c *Config) (*Mailer, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("incomplete config: sendgrid api key is required")
	}
	return NewWithSender(c, sendgrid.NewSendClient(c.APIKey))
}

// NewWithSender builds a Mailer over an existing sender.
func NewWithSender(c *Config, cli dependency.Sender) (*Mailer, error) {
	if c.FromEmail == "" || c.FromName == "" || len(c.To) == 0 {
		return nil, fmt.Errorf("incomplete config: from and to addresses are required")
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/"+reportExport)
	if err != nil {
		return nil, fmt.Errorf("error parsing template '%s': %w", reportExport, err)
	}
	return &Mailer{
		cli:  cli,
		from: mail.NewEmail(c.FromName, c.FromEmail),
		c:    c,
		tmpl: tmpl,
		now:  time.Now,
	}, nil
}

type exportDetails struct {
	Report      string
	FileName    string
	GeneratedAt string
}

// Deliver mails f as an attachment to the configured recipients and returns
// the recipient list.
func (m *Mailer) Deliver(ctx context.Context, f *entity.File) (string, error) {
	details := exportDetails{
		Report:      reportName(f.Name),
		FileName:    f.Name,
		GeneratedAt: m.now().UTC().Format("2006-01-02 15:04 MST"),
	}
	var body bytes.Buffer
	if err := m.tmpl.Execute(&body, details); err != nil {
		return "", fmt.Errorf("can't execute template: %w", err)
	}

	msg := mail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.Subject = fmt.Sprintf("Report export: %s", details.Report)
	p := mail.NewPersonalization()
	for _, to := range m.c.To {
		p.AddTos(mail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/html", body.String()))
	if m.c.ReplyTo != "" {
		msg.SetReplyTo(mail.NewEmail("", m.c.ReplyTo))
	}

	a := mail.NewAttachment()
	a.SetContent(base64.StdEncoding.EncodeToString(f.Content))
	a.SetType(f.MIMEType)
	a.SetFilename(f.Name)
	a.SetDisposition("attachment")
	msg.AddAttachment(a)

	resp, err := m.cli.SendWithContext(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("can't send export mail: %s: %w", err.Error(), gerr.DeliveryFailure)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sendgrid responded %d: %s: %w", resp.StatusCode, resp.Body, gerr.DeliveryFailure)
	}

	to := strings.Join(m.c.To, ", ")
	slog.Default().InfoContext(ctx, "export mailed",
		slog.String("file", f.Name),
		slog.String("to", to),
	)
	return to, nil
}

// reportName strips the date and extension from an export file name.
func reportName(file string) string {
	name := file
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "_"); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "_", " ")
}
