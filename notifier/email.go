package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

type EmailNotifier struct {
	smtpHost   string
	smtpPort   string
	username   string
	password   string
	from       string
	recipients []string
	agendaURL  string
	now        func() time.Time
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type EmailConfig struct {
	SMTPHost   string
	SMTPPort   string
	Username   string
	Password   string
	From       string
	Recipients []string
	// AgendaURL, when set, is linked from the message body.
	AgendaURL string
}

func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		smtpHost:   config.SMTPHost,
		smtpPort:   config.SMTPPort,
		username:   config.Username,
		password:   config.Password,
		from:       config.From,
		recipients: config.Recipients,
		agendaURL:  config.AgendaURL,
		now:        time.Now,
		sendMail:   smtp.SendMail,
	}
}

func (e *EmailNotifier) GetType() string {
	return "email"
}

func (e *EmailNotifier) Deliver(ctx context.Context, message string) error {
	if len(e.recipients) == 0 {
		return errors.New("no email recipients configured")
	}

	now := e.now()
	subject := fmt.Sprintf("Court session reminder - %s", now.Format("Mon, Jan 2"))
	body, err := e.buildEmailBody(message, now)
	if err != nil {
		return fmt.Errorf("building email body: %w", err)
	}

	msg := e.buildMessage(subject, body)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	}
	addr := fmt.Sprintf("%s:%s", e.smtpHost, e.smtpPort)

	// net/smtp has no context support; give up waiting once ctx is done.
	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(addr, auth, e.from, e.recipients, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending email: %w", ctx.Err())
	}
}

func (e *EmailNotifier) buildMessage(subject, body string) string {
	headers := [][2]string{
		{"From", fmt.Sprintf("Docket Watcher <%s>", e.from)},
		{"To", strings.Join(e.recipients, ", ")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	return message.String()
}

var emailTemplate = template.Must(template.New("email").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; }
        .header { background-color: #1e3a5f; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: white; padding: 30px; border-radius: 0 0 5px 5px; }
        .reminder { background-color: #fef3c7; border-left: 4px solid #d97706; padding: 15px; margin: 20px 0; font-size: 16px; }
        .agenda-link { display: block; text-align: center; margin: 25px 0; }
        .agenda-link a { display: inline-block; padding: 12px 30px; background-color: #1e3a5f; color: white; text-decoration: none; border-radius: 5px; font-weight: bold; }
        .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #7f8c8d; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Upcoming court sessions</h1>
        </div>
        <div class="content">
            <div class="reminder">{{.Message}}</div>
            {{if .AgendaURL}}
            <div class="agenda-link">
                <a href="{{.AgendaURL}}" target="_blank">Open the agenda</a>
            </div>
            {{end}}
            <div class="footer">
                <p>Sent by Docket Watcher on {{.SentAt}}</p>
            </div>
        </div>
    </div>
</body>
</html>
`))

func (e *EmailNotifier) buildEmailBody(message string, now time.Time) (string, error) {
	data := struct {
		Message   string
		AgendaURL string
		SentAt    string
	}{
		Message:   message,
		AgendaURL: e.agendaURL,
		SentAt:    now.Format("Monday, January 2, 2006 15:04"),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
