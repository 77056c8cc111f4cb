package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

var MarkUsedCmd = MarkUsed{
	command: command{},
	token:   "",
}

type MarkUsed struct {
	command
	token string
}

func (cmd *MarkUsed) Name() string {
	return "mark-used"
}

func (cmd *MarkUsed) Description() string {
	return "Marks an access token as used"
}

func (cmd *MarkUsed) Usage() string {
	return "--token <token>"
}

func (cmd *MarkUsed) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] mark-used [options] --token <token>\n", APP)
	fmt.Println()
	fmt.Println("  Sets the 'used' flag of the ledger record holding the token. The token is not verified")
	fmt.Println("  and may be marked as used even if it has expired or the record is disabled.")
	fmt.Println()

	helpOptions(cmd.FlagSet())
	fmt.Println()
}

func (cmd *MarkUsed) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("mark-used")

	flagset.StringVar(&cmd.token, "token", cmd.token, "Access token")

	return flagset
}

func (cmd *MarkUsed) Execute(args ...any) error {
	options := args[0].(*Options)

	if strings.TrimSpace(cmd.token) == "" {
		return fmt.Errorf("--token is a required option")
	}

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	rows, err := openStore(cfg)
	if err != nil {
		return err
	}

	l, err := newLedger(cfg, rows)
	if err != nil {
		return err
	}

	result, err := l.MarkUsed(context.Background(), cmd.token)
	if err != nil {
		return err
	}

	if !result.OK {
		return fmt.Errorf("%v", result.Reason)
	}

	fmt.Printf("used  %v\n", result.Email)

	return nil
}
