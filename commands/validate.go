package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

var ValidateCmd = Validate{
	command: command{},
	token:   "",
}

type Validate struct {
	command
	token string
}

func (cmd *Validate) Name() string {
	return "validate"
}

func (cmd *Validate) Description() string {
	return "Validates an access token against the ledger"
}

func (cmd *Validate) Usage() string {
	return "--token <token>"
}

func (cmd *Validate) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] validate [options] --token <token>\n", APP)
	fmt.Println()
	fmt.Println("  Verifies the token signature and checks that the ledger record holding it is enabled,")
	fmt.Println("  unused and unexpired. The token is not marked as used.")
	fmt.Println()

	helpOptions(cmd.FlagSet())
	fmt.Println()
}

func (cmd *Validate) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("validate")

	flagset.StringVar(&cmd.token, "token", cmd.token, "Access token")

	return flagset
}

func (cmd *Validate) Execute(args ...any) error {
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

	result, err := l.Validate(context.Background(), cmd.token)
	if err != nil {
		return err
	}

	if !result.OK {
		return fmt.Errorf("%v", result.Reason)
	}

	fmt.Printf("valid  %v\n", result.Email)

	return nil
}
