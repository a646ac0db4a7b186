// Package email sends the account mail for contributors: verification links
// on signup and password reset links. Delivery is plain SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration. An empty Host, Port or From disables
// sending; signup then falls back to dev tokens in the API response.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service renders and sends contributor mail.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
	}
}

// IsConfigured reports whether outgoing mail can be sent.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendVerificationEmail mails the signup verification link.
func (s *Service) SendVerificationEmail(to, userName, verificationURL string) error {
	html, err := renderMail(verifyMail{UserName: userName, ActionURL: verificationURL})
	if err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}
	return s.send(to, "Confirm your email to start contributing", html)
}

// SendPasswordResetEmail mails a password reset link.
func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	html, err := renderMail(resetMail{UserName: userName, ActionURL: resetURL})
	if err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}
	return s.send(to, "Reset your Mosaic password", html)
}

// send delivers one multipart message with a plain-text fallback part.
func (s *Service) send(to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	const boundary = "boundary-mosaic"
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString("Please view this email in an HTML-capable email client.\r\n\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)
	fmt.Fprintf(&msg, "\r\n\r\n--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, []string{to}, msg.Bytes())
}

type verifyMail struct {
	UserName  string
	ActionURL string
}

type resetMail struct {
	UserName  string
	ActionURL string
}

// renderMail picks the template by payload type and wraps it in the shared
// layout.
func renderMail(data any) (string, error) {
	var name string
	switch data.(type) {
	case verifyMail:
		name = "verify"
	case resetMail:
		name = "reset"
	default:
		return "", fmt.Errorf("no mail template for %T", data)
	}
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var mailTemplates = template.Must(template.New("mail").Parse(strings.TrimSpace(`
{{define "layout_top"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #7c5cad; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #7c5cad; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #7c5cad; }
    </style>
</head>
<body>
    <div class="header"><h1>Mosaic</h1></div>
{{end}}

{{define "layout_bottom"}}
</body>
</html>{{end}}

{{define "verify"}}{{template "layout_top" .}}
    <h2>Welcome, {{.UserName}}!</h2>
    <p>You have been invited to help tell a shared story. Confirm your email
    address to start writing notes.</p>
    <p><a href="{{.ActionURL}}" class="button">Confirm email</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.ActionURL}}</p>
    <p>This confirmation link expires in 24 hours.</p>
    <div class="footer">
        <p>If you did not sign up for Mosaic, you can safely ignore this email.</p>
    </div>
{{template "layout_bottom" .}}{{end}}

{{define "reset"}}{{template "layout_top" .}}
    <h2>Password reset</h2>
    <p>Hi {{.UserName}},</p>
    <p>We received a request to reset your password. The link below expires in
    1 hour:</p>
    <p><a href="{{.ActionURL}}" class="button">Choose a new password</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.ActionURL}}</p>
    <div class="footer">
        <p>If you did not request a reset, ignore this email and your password
        stays unchanged.</p>
    </div>
{{template "layout_bottom" .}}{{end}}
`)))
