package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

var PutCmd = Put{
	command: command{},
	file:    "",
}

// Put replaces the ledger worksheet with the contents of a TSV file.
type Put struct {
	command
	file string
}

func (cmd *Put) Name() string {
	return "put"
}

func (cmd *Put) Description() string {
	return "Uploads a TSV file to the access ledger worksheet"
}

func (cmd *Put) Usage() string {
	return "--credentials <file> --url <url> --file <file>"
}

func (cmd *Put) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] put [options] --url <URL> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Replaces the contents of the access ledger worksheet with a TSV file. The file must")
	fmt.Println("  have the header 'email, token, expires, quota, enabled, used'.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s --debug put --credentials \"credentials.json\" \\\n", APP)
	fmt.Println(`                             --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                             --file "ledger.tsv"`)
	fmt.Println()
}

func (cmd *Put) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("put")

	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file")

	return flagset
}

func (cmd *Put) Execute(args ...any) error {
	options := args[0].(*Options)

	if strings.TrimSpace(cmd.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	f, err := os.Open(cmd.file)
	if err != nil {
		return err
	}

	defer f.Close()

	rows, err := ledger.ParseTSV(f)
	if err != nil {
		return fmt.Errorf("invalid TSV file (%w)", err)
	}

	google, err := openSpreadsheet(cfg, store.SHEETS)
	if err != nil {
		return err
	}

	if err := google.Replace(context.Background(), rows); err != nil {
		return err
	}

	log.Infof("uploaded %v records from TSV file %v to worksheet %v", len(rows)-1, cmd.file, google.Sheet())

	return nil
}
