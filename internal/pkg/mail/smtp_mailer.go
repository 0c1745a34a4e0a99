package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/archiprisma/memberops/internal/pkg/env"
)

// retryDelays spaces out resend attempts after transient SMTP failures.
var retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// SendMail sends a single HTML email via SMTP. In dev mode the mail is
// logged instead of sent, so local runs need no SMTP server.
func SendMail(to string, subject string, body string) error {
	if env.IsDev() {
		log.Printf("[mail] dev mode, not sending to=%s subject=%q", to, subject)
		return nil
	}

	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendMailWithRetry retries transient SMTP failures before giving up.
func SendMailWithRetry(to string, subject string, body string) error {
	var err error
	if err = SendMail(to, subject, body); err == nil {
		return nil
	}
	for i, delay := range retryDelays {
		time.Sleep(delay)
		log.Printf("SMTP retry %d/%d for %s", i+1, len(retryDelays), to)
		if err = SendMail(to, subject, body); err == nil {
			return nil
		}
	}
	return err
}
