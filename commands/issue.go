package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/bibliotecavirtual/biblioteca-sheets/notify"
)

var IssueCmd = Issue{
	command: command{},
	email:   "",
	notify:  false,
}

// Issue issues (or re-issues) an access token from the command line.
type Issue struct {
	command
	email  string
	notify bool
}

func (cmd *Issue) Name() string {
	return "issue"
}

func (cmd *Issue) Description() string {
	return "Issues a new access token for an email address"
}

func (cmd *Issue) Usage() string {
	return "--email <email> [--notify]"
}

func (cmd *Issue) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] issue [options] --email <email>\n", APP)
	fmt.Println()
	fmt.Println("  Issues a new access token for the email address, superseding any previously issued token,")
	fmt.Println("  and optionally emails the access link to the user.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s issue --email \"lector@example.com\" --notify\n", APP)
	fmt.Println()
}

func (cmd *Issue) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("issue")

	flagset.StringVar(&cmd.email, "email", cmd.email, "Email address")
	flagset.BoolVar(&cmd.notify, "notify", cmd.notify, "Emails the access link (ACCESS_URL?token=...) to the user")

	return flagset
}

func (cmd *Issue) Execute(args ...any) error {
	options := args[0].(*Options)

	if strings.TrimSpace(cmd.email) == "" {
		return fmt.Errorf("--email is a required option")
	}

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	if cmd.notify && cfg.AccessURL == "" {
		return fmt.Errorf("--notify requires ACCESS_URL")
	}

	rows, err := openStore(cfg)
	if err != nil {
		return err
	}

	l, err := newLedger(cfg, rows)
	if err != nil {
		return err
	}

	ctx := context.Background()

	result, err := l.Issue(ctx, cmd.email)
	if err != nil {
		return err
	}

	fmt.Printf("%v  %v  %v\n", result.Email, result.ExpiresAt.In(cfg.Timezone).Format(time.RFC3339), result.Token)

	if cmd.notify {
		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}

		link, err := notify.AccessURL(cfg.AccessURL, result.Token)
		if err != nil {
			return err
		}

		if err := notifier.NotifyUser(ctx, result.Email, link); err != nil {
			return err
		}
	}

	return nil
}
