// Package notify turns user events into notification emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmpl "html/template"
	texttpl "text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-management/internal/application"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTpl = htmpl.Must(htmpl.ParseFS(templateFS, "templates/notification.html.tmpl"))
	textTpl = texttpl.Must(texttpl.ParseFS(templateFS, "templates/notification.txt.tmpl"))
)

// ErrBadMessage marks a delivery that can never be processed and must not be requeued.
var ErrBadMessage = errors.New("bad message")

// Sender is satisfied by *mailer.Mailgun.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type Notifier struct {
	Sender    Sender
	Recipient string
	Company   string
	Logger    *logrus.Logger
	// DryRun renders but does not send.
	DryRun bool
}

type view struct {
	Subject  string
	Message  string
	Username string
	Fullname string
	When     string
	ImageURL string
	Company  string
}

// Render builds the subject, text and HTML bodies for ev.
func Render(ev application.UserEvent, company string) (subject, text, html string, err error) {
	v := view{
		Username: ev.Username,
		Fullname: ev.Fullname,
		When:     ev.OccurredAt.UTC().Format(time.RFC1123),
		ImageURL: ev.ImageURL,
		Company:  company,
	}
	switch ev.Type {
	case application.EventUserSaved:
		v.Subject, v.Message = "User account saved", "The account was created or its profile was updated."
	case application.EventUserRemoved:
		v.Subject, v.Message = "User account removed", "The account and its history were removed."
	case application.EventUserPasswordChanged:
		v.Subject, v.Message = "Password changed", "A new password was set for the account."
	case application.EventUserImageUploaded:
		v.Subject, v.Message = "Profile image updated", "A new profile image was uploaded."
	default:
		return "", "", "", fmt.Errorf("%w: unknown event type %q", ErrBadMessage, ev.Type)
	}

	var tb, hb bytes.Buffer
	if err := textTpl.Execute(&tb, v); err != nil {
		return "", "", "", err
	}
	if err := htmlTpl.Execute(&hb, v); err != nil {
		return "", "", "", err
	}
	return v.Subject, tb.String(), hb.String(), nil
}

// Handle decodes one message body and sends the notification for it.
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	var ev application.UserEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if ev.Username == "" {
		return fmt.Errorf("%w: event without username", ErrBadMessage)
	}
	subject, text, html, err := Render(ev, n.Company)
	if err != nil {
		return err
	}

	log := n.Logger.WithFields(logrus.Fields{"event": ev.Type, "username": ev.Username})
	if n.DryRun || n.Sender == nil {
		log.Info("notification rendered, sending disabled")
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := n.Sender.Send(c, n.Recipient, subject, text, html); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	log.Info("notification sent")
	return nil
}
