package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/cgbcreil/gestio/core/budget"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB // nil with the memory engine
	budget *budget.Service
	in     io.Reader
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  ventilate -subvention ID -mode reset|copy_base|prorata_base [-target recu|attribue] [-yes] - rewrite the real amounts of a grant")
	fmt.Fprintln(cli.out, "  export -kind depenses|subvention [-id ID] [-o FILE] - export expenses or a grant as CSV")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ventilateCmd := flag.NewFlagSet("ventilate", flag.ContinueOnError)
	ventilateCmd.SetOutput(cli.out)
	ventilateID := ventilateCmd.Int("subvention", 0, "The grant id.")
	ventilateMode := ventilateCmd.String("mode", "", "reset, copy_base or prorata_base.")
	ventilateTarget := ventilateCmd.String("target", budget.TargetRecu, "The pro-rata target: recu or attribue.")
	ventilateYes := ventilateCmd.Bool("yes", false, "Do not ask for confirmation.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCmd.SetOutput(cli.out)
	exportKind := exportCmd.String("kind", "depenses", "depenses or subvention.")
	exportID := exportCmd.Int("id", 0, "The grant id, for -kind subvention.")
	exportFile := exportCmd.String("o", "", "The output file. Defaults to stdout.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "ventilate":
		if err := ventilateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ventilateID <= 0 || *ventilateMode == "" {
			ventilateCmd.Usage()
			return errHelp
		}
		req := budget.VentilationRequest{Mode: *ventilateMode, Target: *ventilateTarget}
		return cli.ventilate(*ventilateID, req, *ventilateYes)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		switch *exportKind {
		case "depenses":
		case "subvention":
			if *exportID <= 0 {
				exportCmd.Usage()
				return errHelp
			}
		default:
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportKind, *exportID, *exportFile)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks `question` on the terminal. Without a terminal, nothing is confirmed.
func (cli *commandLine) confirm(question string) (bool, error) {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return false, errNoTerminal
	}
	fmt.Fprint(cli.out, question+" [o/N] ")
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch answer {
	case "o\n", "O\n", "oui\n", "y\n", "yes\n":
		return true, nil
	}
	return false, nil
}
