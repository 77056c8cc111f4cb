// Package notify sends the access request and access approval emails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/bibliotecavirtual/biblioteca-sheets/log"
)

// Mailer delivers a single plain text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier informs the administrator of access requests and requesters of approved access.
type Notifier struct {
	mailer  Mailer
	admin   string
	approve string
}

var adminMessage = template.Must(template.New("admin").Parse(`
El usuario {{.Email}} ha solicitado acceso temporal a la biblioteca.

Autorizar acceso:
{{.URL}}
`))

var userMessage = template.Must(template.New("user").Parse(`
Su solicitud de acceso temporal a la biblioteca virtual ha sido aprobada.

Puede ingresar con el siguiente enlace, válido por un solo uso:
{{.URL}}
`))

// New returns a Notifier that sends administrator notifications to 'admin' with approval
// links relative to 'publicURL'.
func New(mailer Mailer, admin, publicURL string) (*Notifier, error) {
	if mailer == nil {
		return nil, fmt.Errorf("missing mailer")
	}

	if strings.TrimSpace(admin) == "" {
		return nil, fmt.Errorf("missing administrator email address")
	}

	if _, err := url.Parse(publicURL); err != nil || strings.TrimSpace(publicURL) == "" {
		return nil, fmt.Errorf("invalid public URL '%v'", publicURL)
	}

	return &Notifier{
		mailer:  mailer,
		admin:   strings.TrimSpace(admin),
		approve: strings.TrimSpace(publicURL),
	}, nil
}

func (n *Notifier) NotifyAdmin(ctx context.Context, email string) error {
	link, err := ApprovalURL(n.approve, email)
	if err != nil {
		return err
	}

	body, err := render(adminMessage, email, link)
	if err != nil {
		return err
	}

	if err := n.mailer.Send(ctx, n.admin, "Solicitud de acceso temporal", body); err != nil {
		return fmt.Errorf("error notifying administrator (%w)", err)
	}

	log.Infof("notified administrator of access request from %v", email)

	return nil
}

func (n *Notifier) NotifyUser(ctx context.Context, email string, accessURL string) error {
	body, err := render(userMessage, email, accessURL)
	if err != nil {
		return err
	}

	if err := n.mailer.Send(ctx, email, "Acceso temporal aprobado", body); err != nil {
		return fmt.Errorf("error notifying %v (%w)", email, err)
	}

	log.Infof("sent access link to %v", email)

	return nil
}

// ApprovalURL returns the administrator's approval link for an email address.
func ApprovalURL(base string, email string) (string, error) {
	return withQuery(strings.TrimSuffix(base, "/")+"/autorizar", "email", email)
}

// AccessURL returns the requester's access link for a token.
func AccessURL(base string, token string) (string, error) {
	return withQuery(base, "token", token)
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid URL '%v' (%w)", base, err)
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func render(t *template.Template, email, link string) (string, error) {
	var b bytes.Buffer

	page := struct {
		Email string
		URL   string
	}{
		Email: email,
		URL:   link,
	}

	if err := t.Execute(&b, page); err != nil {
		return "", fmt.Errorf("error formatting %v message (%w)", t.Name(), err)
	}

	return b.String(), nil
}
