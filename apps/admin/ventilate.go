package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/money"
	"github.com/cgbcreil/gestio/core/scope"
)

var (
	errNoTerminal = errors.New("no terminal to confirm on, use -yes")
	errAborted    = errors.New("aborted")
)

// ventilate rewrites the real amounts of grant `id`, after confirmation unless `yes` is set.
func (cli *commandLine) ventilate(id int, req budget.VentilationRequest, yes bool) error {
	ctx := context.Background()
	sc := scope.All()

	report, err := cli.budget.Pilotage(ctx, sc, id)
	if err != nil {
		return err
	}
	if !yes {
		req.Clean()
		question := fmt.Sprintf("Ventiler %q (%d) en mode %s ? Les montants réels de toutes ses lignes seront remplacés.",
			report.Grant.Name, id, req.Mode)
		ok, err := cli.confirm(question)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	reals, err := cli.budget.Ventilate(ctx, sc, id, req)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(reals))
	for lineID := range reals {
		ids = append(ids, lineID)
	}
	sort.Ints(ids)
	for _, lineID := range ids {
		fmt.Fprintf(cli.out, "ligne %d : %s €\n", lineID, money.FormatFR(reals[lineID]))
	}
	fmt.Fprintf(cli.out, "%d ligne(s) ventilée(s).\n", len(reals))
	return nil
}
