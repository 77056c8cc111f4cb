package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bibliotecavirtual/biblioteca-sheets/config"
	"github.com/bibliotecavirtual/biblioteca-sheets/notify"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

func setenv(t *testing.T, env map[string]string) {
	t.Helper()

	for _, key := range []string{"LEDGER_STORE", "SPREADSHEET_ID", "SHEET_NAME", "GOOGLE_CREDENTIALS", "GOOGLE_TOKENS",
		"JWT_SECRET", "TOKEN_SELF_EXPIRING", "ACCESS_WINDOW", "MAILER", "ADMIN_EMAIL", "MAIL_FROM", "LOG_LEVEL"} {
		t.Setenv(key, env[key])
	}
}

func TestConfigureWithOverrides(t *testing.T) {
	setenv(t, map[string]string{
		"SPREADSHEET_ID":     "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
		"SHEET_NAME":         "Accesos",
		"GOOGLE_CREDENTIALS": "env.json",
	})

	cmd := command{
		spreadsheet: "https://docs.google.com/spreadsheets/d/1XyzABC/edit#gid=0",
		sheet:       "UsuariosTemporales",
	}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if cfg.Spreadsheet != "https://docs.google.com/spreadsheets/d/1XyzABC/edit#gid=0" {
		t.Errorf("Incorrect spreadsheet - expected:%v, got:%v", "https://docs.google.com/spreadsheets/d/1XyzABC/edit#gid=0", cfg.Spreadsheet)
	}

	if cfg.Sheet != "UsuariosTemporales" {
		t.Errorf("Incorrect sheet - expected:%v, got:%v", "UsuariosTemporales", cfg.Sheet)
	}

	if cfg.Credentials != "env.json" {
		t.Errorf("Incorrect credentials - expected:%v, got:%v", "env.json", cfg.Credentials)
	}
}

func TestOpenStoreWithMissingSpreadsheet(t *testing.T) {
	setenv(t, map[string]string{
		"JWT_SECRET": "qwerty",
	})

	cmd := command{}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if _, err := openStore(cfg); !errors.Is(err, config.ErrMissing) {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
}

func TestLedgerWithMemoryStore(t *testing.T) {
	setenv(t, map[string]string{
		"LEDGER_STORE": "memory",
		"JWT_SECRET":   "qwerty",
	})

	cmd := command{}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	rows, err := openStore(cfg)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if _, ok := rows.(*store.Memory); !ok {
		t.Fatalf("Expected in-memory store, got %T", rows)
	}

	l, err := newLedger(cfg, rows)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if l.Window() != 30*time.Minute {
		t.Errorf("Incorrect access window - expected:%v, got:%v", 30*time.Minute, l.Window())
	}

	issued, err := l.Issue(context.Background(), "Lector@Example.com")
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	result, err := l.Validate(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if !result.OK || result.Email != "lector@example.com" {
		t.Errorf("Expected valid token for %v, got %+v", "lector@example.com", result)
	}
}

func TestNewLedgerWithoutSecret(t *testing.T) {
	setenv(t, map[string]string{
		"LEDGER_STORE": "memory",
	})

	cmd := command{}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if _, err := newLedger(cfg, store.NewMemory(cfg.Sheet)); !errors.Is(err, config.ErrMissing) {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
}

func TestNewNotifier(t *testing.T) {
	setenv(t, map[string]string{
		"ADMIN_EMAIL": "admin@biblioteca.org",
	})

	cmd := command{}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if n, err := newNotifier(cfg); err != nil {
		t.Errorf("Unexpected error (%v)", err)
	} else if n == nil {
		t.Errorf("Expected notifier, got nil")
	}

	cfg.Mailer = config.MailerSMTP
	if _, err := newNotifier(cfg); err != nil {
		t.Errorf("Unexpected error (%v)", err)
	}

	cfg.AdminEmail = ""
	if _, err := newNotifier(cfg); !errors.Is(err, config.ErrMissing) {
		t.Errorf("Expected ErrMissing, got %v", err)
	}
}

func TestNewNotifierSendsToLog(t *testing.T) {
	setenv(t, map[string]string{
		"ADMIN_EMAIL": "admin@biblioteca.org",
		"MAILER":      "log",
	})

	cmd := command{}

	cfg, err := cmd.configure(&Options{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	n, err := newNotifier(cfg)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	link, _ := notify.AccessURL("https://biblioteca.example.com", "T1")
	if err := n.NotifyUser(context.Background(), "lector@example.com", link); err != nil {
		t.Errorf("Unexpected error (%v)", err)
	}
}
