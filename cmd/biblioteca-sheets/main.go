package main

import (
	"flag"
	"fmt"
	"os"
	_ "time/tzdata"

	uhppoted "github.com/uhppoted/uhppoted-lib/command"

	"github.com/bibliotecavirtual/biblioteca-sheets/commands"
)

var cli = []uhppoted.Command{
	&commands.RunCmd,
	&commands.AuthoriseCmd,
	&commands.GetCmd,
	&commands.PutCmd,
	&commands.IssueCmd,
	&commands.ValidateCmd,
	&commands.MarkUsedCmd,
	&commands.VersionCmd,
}

var options = commands.Options{
	Debug: false,
}

var help = uhppoted.NewHelp(commands.APP, cli, nil)

func main() {
	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	cmd, err := uhppoted.Parse(cli, nil, help)
	if err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		os.Exit(1)
	}

	if cmd == nil {
		help.Execute()
		os.Exit(1)
	}

	if err = cmd.Execute(&options); err != nil {
		fmt.Printf("\nERROR: %v\n\n", err)
		os.Exit(1)
	}
}
