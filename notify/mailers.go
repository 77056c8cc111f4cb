package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/wneessen/go-mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bibliotecavirtual/biblioteca-sheets/log"
)

// SMTP sends email through an authenticated SMTP relay (e.g. smtp.gmail.com with an app password).
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Gmail sends email with the Gmail API using the same Google credentials as the ledger.
type Gmail struct {
	from    string
	connect func(ctx context.Context) (*http.Client, error)
	service *gmail.Service
	sync.Mutex
}

// Log writes notifications to the log instead of sending them.
type Log struct {
}

func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	m, err := message(s.From, to, subject, body)
	if err != nil {
		return err
	}

	options := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}

	if s.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password))
	}

	client, err := mail.NewClient(s.Host, options...)
	if err != nil {
		return fmt.Errorf("unable to create SMTP client (%w)", err)
	}

	return client.DialAndSendWithContext(ctx, m)
}

func NewGmail(from string, connect func(ctx context.Context) (*http.Client, error)) *Gmail {
	return &Gmail{
		from:    from,
		connect: connect,
	}
}

func (g *Gmail) Send(ctx context.Context, to, subject, body string) error {
	service, err := g.client(ctx)
	if err != nil {
		return err
	}

	m, err := message(g.from, to, subject, body)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if _, err := m.WriteTo(&b); err != nil {
		return fmt.Errorf("error formatting message (%w)", err)
	}

	rq := gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(b.Bytes()),
	}

	if _, err := service.Users.Messages.Send("me", &rq).Context(ctx).Do(); err != nil {
		return err
	}

	return nil
}

func (g *Gmail) client(ctx context.Context) (*gmail.Service, error) {
	g.Lock()
	defer g.Unlock()

	if g.service != nil {
		return g.service, nil
	}

	client, err := g.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication/authorization error (%w)", err)
	}

	service, err := gmail.NewService(context.WithoutCancel(ctx), option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Gmail client (%w)", err)
	}

	g.service = service

	return g.service, nil
}

func (l Log) Send(ctx context.Context, to, subject, body string) error {
	log.Infof("mail to:%v  subject:%q\n%v", to, subject, body)

	return nil
}

func message(from, to, subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address '%v' (%w)", from, err)
	}

	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address '%v' (%w)", to, err)
	}

	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	return m, nil
}
