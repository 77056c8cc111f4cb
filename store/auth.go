package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	SHEETS = "https://www.googleapis.com/auth/spreadsheets"
	DRIVE  = "https://www.googleapis.com/auth/drive.metadata.readonly"
	GMAIL  = "https://www.googleapis.com/auth/gmail.send"
)

// Credentials holds the Google credentials used to construct API clients. JSON is either a
// service account key or an OAuth2 client configuration, in which case Tokens is the path to
// the file holding the OAuth2 tokens saved by the 'authorise' command.
type Credentials struct {
	JSON    []byte
	Tokens  string
	Subject string
}

// LoadCredentials accepts either the JSON credentials themselves (as supplied in an
// environment variable) or the path to a credentials file.
func LoadCredentials(v string, tokens string) (*Credentials, error) {
	var b []byte

	if s := strings.TrimSpace(v); s == "" {
		return nil, fmt.Errorf("missing Google credentials")
	} else if strings.HasPrefix(s, "{") {
		b = []byte(s)
	} else if bytes, err := os.ReadFile(s); err != nil {
		return nil, err
	} else {
		b = bytes
	}

	fixed, err := fixPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("error parsing Google credentials (%w)", err)
	}

	if tokens == "" && !strings.HasPrefix(strings.TrimSpace(v), "{") {
		dir, file := filepath.Split(strings.TrimSpace(v))
		name := strings.TrimSuffix(file, filepath.Ext(file))
		tokens = filepath.Join(dir, fmt.Sprintf("%s.tokens", name))
	}

	return &Credentials{
		JSON:   fixed,
		Tokens: tokens,
	}, nil
}

// IsServiceAccount returns true if the credentials are a service account key.
func (c *Credentials) IsServiceAccount() bool {
	v := struct {
		Type string `json:"type"`
	}{}

	if err := json.Unmarshal(c.JSON, &v); err != nil {
		return false
	}

	return v.Type == "service_account"
}

// Authorize returns an HTTP client authorised for the requested scopes. The client outlives
// the supplied context.
func Authorize(ctx context.Context, credentials *Credentials, scopes ...string) (*http.Client, error) {
	ctx = context.WithoutCancel(ctx)

	if credentials.IsServiceAccount() {
		config, err := google.JWTConfigFromJSON(credentials.JSON, scopes...)
		if err != nil {
			return nil, err
		}

		if credentials.Subject != "" {
			config.Subject = credentials.Subject
		}

		return config.Client(ctx), nil
	}

	config, err := OAuth2Config(credentials, scopes...)
	if err != nil {
		return nil, err
	}

	token, err := tokenFromFile(credentials.Tokens)
	if err != nil {
		return nil, fmt.Errorf("no OAuth2 tokens for %v - run 'authorise' first (%w)", scopes, err)
	}

	return config.Client(ctx, token), nil
}

// OAuth2Config returns the OAuth2 client configuration for user credentials.
func OAuth2Config(credentials *Credentials, scopes ...string) (*oauth2.Config, error) {
	if credentials.IsServiceAccount() {
		return nil, fmt.Errorf("service account credentials do not require authorisation")
	}

	return google.ConfigFromJSON(credentials.JSON, scopes...)
}

// SaveToken stores OAuth2 tokens to the credentials tokens file.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth2 token (%w)", err)
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	token := oauth2.Token{}
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

// Service account keys pasted into environment variables frequently carry escaped
// newlines in the private key.
func fixPrivateKey(b []byte) ([]byte, error) {
	v := map[string]any{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}

	key, ok := v["private_key"].(string)
	if !ok || !strings.Contains(key, `\n`) {
		return b, nil
	}

	v["private_key"] = strings.ReplaceAll(key, `\n`, "\n")

	return json.Marshal(v)
}
