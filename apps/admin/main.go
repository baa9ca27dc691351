package main

import (
	"fmt"
	"os"

	"github.com/cgbcreil/gestio/apps/shared"
	"github.com/cgbcreil/gestio/core"
)

func main() {
	conf := core.NewConfig()

	logger, err := shared.NewLogger(conf, "ADMIN")
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}

	// set up DB; migrations are left to the migrate command
	store, err := shared.OpenStore(conf, false)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:     store.SQL,
		budget: shared.NewServices(conf, store).Budget,
		in:     os.Stdin,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := store.Close(); cErr != nil {
		logger.Error("closing storage", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
