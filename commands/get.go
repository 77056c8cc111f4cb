package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

var GetCmd = Get{
	command: command{},

	file:     time.Now().Format("ledger 2006-01-02T150405.tsv"),
	revision: false,
}

// Get downloads the ledger worksheet to a TSV file.
type Get struct {
	command
	file     string
	revision bool
}

func (cmd *Get) Name() string {
	return "get"
}

func (cmd *Get) Description() string {
	return "Retrieves the access ledger from the Google Sheets worksheet and stores it to a local file"
}

func (cmd *Get) Usage() string {
	return "--credentials <file> --url <url> --file <file>"
}

func (cmd *Get) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] get [options] --url <URL> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Downloads the access ledger worksheet to a TSV file")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s --debug get --credentials \"credentials.json\" \\\n", APP)
	fmt.Println(`                             --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                             --sheet "UsuariosTemporales" \`)
	fmt.Println(`                             --file "ledger.tsv"`)
	fmt.Println()
}

func (cmd *Get) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("get")

	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file name. Defaults to 'ledger <yyyy-mm-ddTHHmmss>.tsv'")
	flagset.BoolVar(&cmd.revision, "revision", cmd.revision, "Logs the latest Google Drive revision of the spreadsheet")

	return flagset
}

func (cmd *Get) Execute(args ...any) error {
	options := args[0].(*Options)

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	scopes := []string{store.SHEETS}
	if cmd.revision {
		scopes = append(scopes, store.DRIVE)
	}

	google, err := openSpreadsheet(cfg, scopes...)
	if err != nil {
		return err
	}

	ctx := context.Background()

	rows, err := google.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("unable to retrieve data from sheet (%w)", err)
	}

	if len(rows) == 0 {
		return fmt.Errorf("no data in worksheet %v", cfg.Sheet)
	}

	if err := saveTSV(cmd.file, rows, cfg.Timezone); err != nil {
		return err
	}

	log.Infof("retrieved ledger to file %s", cmd.file)

	if cmd.revision {
		if revision, err := google.Revision(ctx); err != nil {
			log.Warnf("%v", err)
		} else {
			log.Infof("spreadsheet revision %v (modified %v)", revision.ID, revision.Modified.Format(time.RFC3339))
		}
	}

	return nil
}

// saveTSV writes the TSV to a temporary file in the destination directory and renames it
// over 'file' once it has been completely written.
func saveTSV(file string, rows [][]string, location *time.Location) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tsv")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if err := ledger.MakeTSV(tmp, rows, location); err != nil {
		tmp.Close()
		return fmt.Errorf("error creating TSV file (%w)", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing TSV file (%w)", err)
	}

	return os.Rename(tmp.Name(), file)
}
