// Package config loads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	StoreSheets = "sheets"
	StoreMemory = "memory"

	MailerLog   = "log"
	MailerSMTP  = "smtp"
	MailerGmail = "gmail"
)

var ErrMissing = errors.New("missing required setting")

// Config holds the runtime settings. Everything has a default except the signing secret,
// the spreadsheet and the administrator address, which are checked by Validate.
type Config struct {
	HTTPAddr        string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	Store       string
	Spreadsheet string
	Sheet       string
	Credentials string
	Tokens      string

	JWTSecret    string
	SelfExpiring bool
	Window       time.Duration
	Timezone     *time.Location
	Serialize    bool

	AdminEmail string
	PublicURL  string
	AccessURL  string
	NotifyUser bool
	Mailer     string
	MailFrom   string
	SMTP       SMTP

	LogLevel string
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Load reads the environment. Malformed values are reported immediately, missing required
// values are left for Validate.
func Load() (*Config, error) {
	c := Config{
		HTTPAddr:        ":3000",
		CORSOrigins:     []string{"*"},
		ShutdownTimeout: 10 * time.Second,
		Store:           StoreSheets,
		Sheet:           "UsuariosTemporales",
		SelfExpiring:    true,
		Window:          30 * time.Minute,
		Timezone:        time.UTC,
		PublicURL:       "http://localhost:3000",
		NotifyUser:      true,
		Mailer:          MailerLog,
		SMTP: SMTP{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		LogLevel: "info",
	}

	if v, ok := lookup("PORT"); ok {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return nil, fmt.Errorf("PORT has invalid value %q (%w)", v, err)
		}

		c.HTTPAddr = ":" + v
	}

	if v, ok := lookup("HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}

	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSOrigins = list(v)
	}

	if v, ok := lookup("LEDGER_STORE"); ok {
		switch store := strings.ToLower(v); store {
		case StoreSheets, StoreMemory:
			c.Store = store
		default:
			return nil, fmt.Errorf("LEDGER_STORE has invalid value %q (expected 'sheets' or 'memory')", v)
		}
	}

	c.Spreadsheet, _ = lookup("SPREADSHEET_ID")
	c.Credentials, _ = lookup("GOOGLE_CREDENTIALS")
	c.Tokens, _ = lookup("GOOGLE_TOKENS")
	c.JWTSecret, _ = lookup("JWT_SECRET")
	c.AdminEmail, _ = lookup("ADMIN_EMAIL")
	c.AccessURL, _ = lookup("ACCESS_URL")
	c.SMTP.Username, _ = lookup("SMTP_USERNAME")
	c.SMTP.Password, _ = lookup("SMTP_PASSWORD")

	if v, ok := lookup("SHEET_NAME"); ok {
		c.Sheet = v
	}

	if v, ok := lookup("PUBLIC_URL"); ok {
		c.PublicURL = v
	}

	if v, ok := lookup("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}

	if v, ok := lookup("MAIL_FROM"); ok {
		c.MailFrom = v
	} else {
		c.MailFrom = c.AdminEmail
	}

	if v, ok := lookup("MAILER"); ok {
		switch mailer := strings.ToLower(v); mailer {
		case MailerLog, MailerSMTP, MailerGmail:
			c.Mailer = mailer
		default:
			return nil, fmt.Errorf("MAILER has invalid value %q (expected 'log', 'smtp' or 'gmail')", v)
		}
	}

	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}

	var err error

	if c.SelfExpiring, err = boolean("TOKEN_SELF_EXPIRING", c.SelfExpiring); err != nil {
		return nil, err
	}

	if c.Serialize, err = boolean("LEDGER_SERIALIZE", c.Serialize); err != nil {
		return nil, err
	}

	if c.NotifyUser, err = boolean("NOTIFY_USER", c.NotifyUser); err != nil {
		return nil, err
	}

	if c.Window, err = duration("ACCESS_WINDOW", c.Window); err != nil {
		return nil, err
	} else if c.Window <= 0 {
		return nil, fmt.Errorf("ACCESS_WINDOW must be positive (%v)", c.Window)
	}

	if c.ShutdownTimeout, err = duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return nil, err
	}

	if v, ok := lookup("SMTP_PORT"); ok {
		if c.SMTP.Port, err = strconv.Atoi(v); err != nil || c.SMTP.Port <= 0 {
			return nil, fmt.Errorf("SMTP_PORT has invalid value %q", v)
		}
	}

	if v, ok := lookup("LEDGER_TIMEZONE"); ok {
		if c.Timezone, err = time.LoadLocation(v); err != nil {
			return nil, fmt.Errorf("LEDGER_TIMEZONE has invalid value %q (%w)", v, err)
		}
	}

	return &c, nil
}

// Validate checks the settings required to operate on the ledger.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissing)
	}

	if c.Store == StoreSheets {
		if c.Spreadsheet == "" {
			return fmt.Errorf("%w: SPREADSHEET_ID", ErrMissing)
		}

		if c.Credentials == "" {
			return fmt.Errorf("%w: GOOGLE_CREDENTIALS", ErrMissing)
		}
	}

	return nil
}

// ValidateMail checks the settings required to send notifications.
func (c *Config) ValidateMail() error {
	if c.AdminEmail == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL", ErrMissing)
	}

	switch c.Mailer {
	case MailerSMTP:
		if c.SMTP.Host == "" {
			return fmt.Errorf("%w: SMTP_HOST", ErrMissing)
		}

		if c.MailFrom == "" {
			return fmt.Errorf("%w: MAIL_FROM", ErrMissing)
		}

	case MailerGmail:
		if c.Credentials == "" {
			return fmt.Errorf("%w: GOOGLE_CREDENTIALS", ErrMissing)
		}
	}

	return nil
}

// lookup treats an empty variable as unset.
func lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}

	return "", false
}

func boolean(key string, defval bool) (bool, error) {
	v, ok := lookup(key)
	if !ok {
		return defval, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defval, fmt.Errorf("%v has invalid value %q (%w)", key, v, err)
	}

	return b, nil
}

func duration(key string, defval time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok {
		return defval, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return defval, fmt.Errorf("%v has invalid duration %q (%w)", key, v, err)
	}

	return d, nil
}

func list(v string) []string {
	items := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
