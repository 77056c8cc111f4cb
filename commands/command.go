package commands

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bibliotecavirtual/biblioteca-sheets/codec"
	"github.com/bibliotecavirtual/biblioteca-sheets/config"
	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/notify"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

const APP = "biblioteca-sheets"

type Options struct {
	Debug bool
}

// rowstore is the worksheet holding the ledger, as either a Google Sheets worksheet or an
// in-memory table.
type rowstore interface {
	ledger.RowStore
	Sheet() string
}

// command holds the settings shared by the commands that operate on the ledger worksheet.
// Command line flags take precedence over the environment.
type command struct {
	credentials string
	tokens      string
	spreadsheet string
	sheet       string
	debug       bool
}

func (c *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&c.credentials, "credentials", c.credentials, "Google credentials file (defaults to GOOGLE_CREDENTIALS)")
	flagset.StringVar(&c.tokens, "tokens", c.tokens, "OAuth2 tokens file for user credentials (defaults to GOOGLE_TOKENS)")
	flagset.StringVar(&c.spreadsheet, "url", c.spreadsheet, "Spreadsheet URL or ID (defaults to SPREADSHEET_ID)")
	flagset.StringVar(&c.sheet, "sheet", c.sheet, "Ledger worksheet name (defaults to SHEET_NAME)")

	return flagset
}

// configure loads the environment configuration and applies the command line overrides.
func (c *command) configure(options *Options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	c.debug = options.Debug
	if c.debug {
		log.SetDebug(true)
	} else {
		log.SetLevel(cfg.LogLevel)
	}

	if v := strings.TrimSpace(c.credentials); v != "" {
		cfg.Credentials = v
	}

	if v := strings.TrimSpace(c.tokens); v != "" {
		cfg.Tokens = v
	}

	if v := strings.TrimSpace(c.spreadsheet); v != "" {
		cfg.Spreadsheet = v
	}

	if v := strings.TrimSpace(c.sheet); v != "" {
		cfg.Sheet = v
	}

	if cfg.Credentials == "" {
		if _, err := os.Stat(DEFAULT_CREDENTIALS); err == nil {
			cfg.Credentials = DEFAULT_CREDENTIALS
		}
	}

	return cfg, nil
}

// connect returns a function that authorises an HTTP client for the Google API scopes.
func connect(cfg *config.Config, scopes ...string) (store.Connect, error) {
	credentials, err := store.LoadCredentials(cfg.Credentials, cfg.Tokens)
	if err != nil {
		return nil, err
	}

	if cfg.Mailer == config.MailerGmail && credentials.IsServiceAccount() {
		credentials.Subject = cfg.MailFrom
	}

	return func(ctx context.Context) (*http.Client, error) {
		return store.Authorize(ctx, credentials, scopes...)
	}, nil
}

func openSpreadsheet(cfg *config.Config, scopes ...string) (*store.Sheets, error) {
	if cfg.Spreadsheet == "" {
		return nil, fmt.Errorf("%w: SPREADSHEET_ID (or --url)", config.ErrMissing)
	}

	if cfg.Credentials == "" {
		return nil, fmt.Errorf("%w: GOOGLE_CREDENTIALS (or --credentials)", config.ErrMissing)
	}

	id, err := store.SpreadsheetID(cfg.Spreadsheet)
	if err != nil {
		return nil, err
	}

	google, err := connect(cfg, scopes...)
	if err != nil {
		return nil, err
	}

	log.Debugf("spreadsheet ID:%v  sheet:%v", id, cfg.Sheet)

	return store.NewSheets(id, cfg.Sheet, google), nil
}

func openStore(cfg *config.Config) (rowstore, error) {
	if cfg.Store == config.StoreMemory {
		log.Warnf("using in-memory ledger, access records will not be persisted")

		return store.NewMemory(cfg.Sheet), nil
	}

	sheets, err := openSpreadsheet(cfg, store.SHEETS)
	if err != nil {
		return nil, err
	}

	return sheets, nil
}

// newLedger constructs the access ledger on the configured worksheet.
func newLedger(cfg *config.Config, rows rowstore) (*ledger.Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := []codec.Option{}
	if cfg.SelfExpiring {
		options = append(options, codec.WithExpiry(cfg.Window))
	}

	tokens, err := codec.New(cfg.JWTSecret, options...)
	if err != nil {
		return nil, err
	}

	l, err := ledger.New(rows, tokens, ledger.Options{
		Sheet:     rows.Sheet(),
		Window:    cfg.Window,
		Location:  cfg.Timezone,
		Serialize: cfg.Serialize,
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("ledger sheet:%v  window:%v  self-expiring:%v", rows.Sheet(), l.Window(), tokens.SelfExpiring())

	return l, nil
}

// newNotifier constructs the notifier for the configured mailer.
func newNotifier(cfg *config.Config) (*notify.Notifier, error) {
	if err := cfg.ValidateMail(); err != nil {
		return nil, err
	}

	var mailer notify.Mailer

	switch cfg.Mailer {
	case config.MailerSMTP:
		mailer = &notify.SMTP{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.MailFrom,
		}

	case config.MailerGmail:
		google, err := connect(cfg, store.GMAIL)
		if err != nil {
			return nil, err
		}

		mailer = notify.NewGmail(cfg.MailFrom, google)

	default:
		mailer = notify.Log{}
	}

	return notify.New(mailer, cfg.AdminEmail, cfg.PublicURL)
}

func helpOptions(flagset *flag.FlagSet) {
	count := 0
	flag.VisitAll(func(f *flag.Flag) {
		count++
	})

	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
	})

	if count > 0 {
		fmt.Println()
		fmt.Println("  Options:")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
		})
	}
}
