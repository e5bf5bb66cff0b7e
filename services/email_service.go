package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/google/uuid"

	"github.com/courtside/cbbpoll/config"
)

// EmailService delivers transactional mail over SMTP. Delivery is best
// effort; callers log failures instead of failing the request.
type EmailService struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewEmailService(cfg *config.Config, logger *slog.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger}
}

func (s *EmailService) SendEmail(to []string, subject string, body string) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial failed: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("smtp client setup failed: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial failed: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp STARTTLS failed: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO failed: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("smtp message write failed: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp DATA close failed: %w", err)
	}
	return nil
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<p>Hi {{.Nickname}},</p>
<p>Confirm the email address on your poll account by following this link:</p>
<p><a href="{{.ConfirmationLink}}">{{.ConfirmationLink}}</a></p>
<p>The link expires in 48 hours. If you didn't request this, ignore this message.</p>
`))

var applicationTemplate = template.Must(template.New("application").Parse(`
<p>Hi {{.Nickname}},</p>
<p>Your voter application has been received and is waiting for review.</p>
`))

// SendConfirmationEmail sends the address-verification link. The message
// id ties log lines on both ends of the delivery together.
func (s *EmailService) SendConfirmationEmail(userEmail, nickname, confirmationToken string) error {
	messageID := uuid.NewString()
	data := struct {
		Nickname         string
		ConfirmationLink string
	}{
		Nickname:         nickname,
		ConfirmationLink: fmt.Sprintf("%s/v1/auth/confirm-email?token=%s", s.cfg.PublicURL, confirmationToken),
	}

	body, err := renderTemplate(confirmationTemplate, data)
	if err != nil {
		return err
	}
	if err := s.SendEmail([]string{userEmail}, "Confirm your email address", body); err != nil {
		return err
	}
	s.logger.Info("confirmation email sent",
		slog.String("message_id", messageID), slog.String("nickname", nickname))
	return nil
}

func (s *EmailService) SendApplicationNotice(userEmail, nickname string) error {
	body, err := renderTemplate(applicationTemplate, struct{ Nickname string }{nickname})
	if err != nil {
		return err
	}
	return s.SendEmail([]string{userEmail}, "Voter application received", body)
}

func renderTemplate(t *template.Template, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return body.String(), nil
}
