package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"

	"github.com/bibliotecavirtual/biblioteca-sheets/config"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

var AuthoriseCmd = Authorise{
	command: command{},
	addr:    "localhost:8085",
}

// Authorise obtains OAuth2 tokens for user (as opposed to service account) credentials and
// saves them to the tokens file.
type Authorise struct {
	command
	addr string
}

func (cmd *Authorise) Name() string {
	return "authorise"
}

func (cmd *Authorise) Description() string {
	return "Authorises access to the ledger spreadsheet (and Gmail) for OAuth2 user credentials"
}

func (cmd *Authorise) Usage() string {
	return "--credentials <file>"
}

func (cmd *Authorise) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] authorise [options] --credentials <file>\n", APP)
	fmt.Println()
	fmt.Println("  Opens a Google consent page for the OAuth2 client credentials and saves the granted tokens.")
	fmt.Println("  Not required for service account credentials.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s authorise --credentials \"credentials.json\"\n", APP)
	fmt.Println()
}

func (cmd *Authorise) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("authorise")

	flagset.StringVar(&cmd.addr, "addr", cmd.addr, "Loopback address for the OAuth2 redirect")

	return flagset
}

func (cmd *Authorise) Execute(args ...any) error {
	options := args[0].(*Options)

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Credentials) == "" {
		return fmt.Errorf("--credentials is a required option")
	}

	credentials, err := store.LoadCredentials(cfg.Credentials, cfg.Tokens)
	if err != nil {
		return err
	}

	if credentials.IsServiceAccount() {
		log.Infof("%v is a service account key and does not require authorisation", cfg.Credentials)
		return nil
	}

	if credentials.Tokens == "" {
		return fmt.Errorf("--tokens is a required option for inline credentials")
	}

	scopes := []string{store.SHEETS, store.DRIVE}
	if cfg.Mailer == config.MailerGmail {
		scopes = append(scopes, store.GMAIL)
	}

	oauth, err := store.OAuth2Config(credentials, scopes...)
	if err != nil {
		return err
	}

	token, err := authenticate(oauth, cmd.addr)
	if err != nil {
		return fmt.Errorf("authorisation error (%w)", err)
	} else if token == nil {
		return nil
	}

	if err := store.SaveToken(credentials.Tokens, token); err != nil {
		return err
	}

	log.Infof("saved OAuth2 tokens to %v", credentials.Tokens)

	return nil
}

// authenticate runs the OAuth2 authorisation code flow with a loopback redirect. Returns
// nil if cancelled with CTRL-C.
func authenticate(oauth *oauth2.Config, addr string) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	state := ulid.Make().String()
	codes := make(chan string, 1)
	errs := make(chan error, 1)

	oauth.RedirectURL = fmt.Sprintf("http://%v/", listener.Addr())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, rq *http.Request) {
		if rq.FormValue("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		if e := rq.FormValue("error"); e != "" {
			fmt.Fprintf(w, "Authorisation failed (%v) - you can close this window", e)
			select {
			case errs <- errors.New(e):
			default:
			}
			return
		}

		if code := rq.FormValue("code"); code != "" {
			fmt.Fprintln(w, "Authorised - you can close this window")
			select {
			case codes <- code:
			default:
			}
		}
	})

	srv := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warnf("%v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fmt.Println()
	fmt.Println("  Open the following link in your browser to authorise access:")
	fmt.Println()
	fmt.Printf("  %v\n", oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Println()

	select {
	case <-interrupt:
		fmt.Printf("\n.. cancelled\n\n")
		return nil, nil

	case err := <-errs:
		return nil, err

	case code := <-codes:
		return oauth.Exchange(context.Background(), code)
	}
}
