package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/scope"
)

// export writes the CSV export of `kind` to `path`, or to the CLI output when `path` is empty.
func (cli *commandLine) export(kind string, id int, path string) (err error) {
	w := cli.out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating export file")
		}
		defer func() {
			if cErr := f.Close(); err == nil {
				err = cErr
			}
		}()
		w = f
	}
	return cli.writeExport(w, kind, id)
}

func (cli *commandLine) writeExport(w io.Writer, kind string, id int) error {
	ctx := context.Background()
	if kind == "subvention" {
		return cli.budget.ExportGrantCSV(ctx, scope.All(), id, w)
	}
	return cli.budget.ExportExpensesCSV(ctx, scope.All(), w)
}
