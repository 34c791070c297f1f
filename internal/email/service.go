// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-thesisdesk"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// InvitationData holds data for the committee invitation email
type InvitationData struct {
	AppName        string
	ProfessorName  string
	SupervisorName string
	ThesisTitle    string
}

// InvitationResponseData holds data for the invitation response email sent to
// the supervisor
type InvitationResponseData struct {
	AppName        string
	SupervisorName string
	ProfessorName  string
	ThesisTitle    string
	Accepted       bool
}

// SendInvitationEmail notifies a professor of a new committee invitation
func (s *Service) SendInvitationEmail(to, professorName, supervisorName, thesisTitle string) error {
	data := InvitationData{
		AppName:        "ThesisDesk",
		ProfessorName:  professorName,
		SupervisorName: supervisorName,
		ThesisTitle:    thesisTitle,
	}

	subject := "Committee invitation: " + thesisTitle
	html, err := renderTemplate(invitationEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render invitation template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendInvitationResponseEmail notifies the supervisor of a professor's answer
func (s *Service) SendInvitationResponseEmail(to, supervisorName, professorName, thesisTitle string, accepted bool) error {
	data := InvitationResponseData{
		AppName:        "ThesisDesk",
		SupervisorName: supervisorName,
		ProfessorName:  professorName,
		ThesisTitle:    thesisTitle,
		Accepted:       accepted,
	}

	subject := "Invitation response: " + thesisTitle
	html, err := renderTemplate(invitationResponseEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render invitation response template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const invitationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Committee invitation</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Dear {{.ProfessorName}},</h2>

    <p>{{.SupervisorName}} has invited you to join the three-member examination committee for the thesis:</p>

    <p><strong>{{.ThesisTitle}}</strong></p>

    <p>Please sign in to {{.AppName}} to accept or decline the invitation.</p>

    <div class="footer">
        <p>You are receiving this because you are registered as a professor in {{.AppName}}.</p>
    </div>
</body>
</html>`

const invitationResponseEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invitation response</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Dear {{.SupervisorName}},</h2>

    {{if .Accepted}}
    <p>{{.ProfessorName}} has <strong>accepted</strong> your committee invitation for the thesis:</p>
    {{else}}
    <p>{{.ProfessorName}} has <strong>declined</strong> your committee invitation for the thesis:</p>
    {{end}}

    <p><strong>{{.ThesisTitle}}</strong></p>

    <div class="footer">
        <p>You are receiving this because you supervise this thesis in {{.AppName}}.</p>
    </div>
</body>
</html>`
