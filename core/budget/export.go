package budget

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/money"
	"github.com/cgbcreil/gestio/core/scope"
)

// utf-8-sig, so spreadsheet software picks the right encoding.
const bom = "\ufeff"

var (
	expensesHeader = []string{"secteur", "subvention", "annee", "compte", "ligne", "depense", "montant", "date_paiement", "type"}
	grantHeader    = []string{"subvention", "secteur", "annee", "compte", "ligne", "base", "reel", "engage", "reste"}
)

func newCSVWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, bom); err != nil {
		return nil, errors.Wrap(err, "writing BOM")
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw, nil
}

// WriteExpensesCSV writes one row per expense of `grants`, ordered by grant, line and expense.
func WriteExpensesCSV(w io.Writer, grants []Grant) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(expensesHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}

	grants = uniqueGrants(grants)
	sort.SliceStable(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	for _, g := range grants {
		for _, l := range sortedLines(g) {
			expenses := append([]Expense{}, l.Expenses...)
			sort.SliceStable(expenses, func(i, j int) bool { return expenses[i].ID < expenses[j].ID })
			for _, e := range expenses {
				paidOn := ""
				if e.PaidOn.Valid {
					paidOn = e.PaidOn.Time.Format(core.DateLayout)
				}
				row := []string{
					g.Secteur, g.Name, strconv.Itoa(g.Year),
					l.Compte, l.Label,
					e.Label, money.FormatFR(e.Amount), paidOn, e.Kind,
				}
				if err := cw.Write(row); err != nil {
					return errors.Wrap(err, "writing expense row")
				}
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// WriteGrantCSV writes one row per line of `g`.
func WriteGrantCSV(w io.Writer, g Grant) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(grantHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, l := range sortedLines(g) {
		row := []string{
			g.Name, g.Secteur, strconv.Itoa(g.Year),
			l.Compte, l.Label,
			money.FormatFR(l.Base),
			money.FormatFR(l.Real),
			money.FormatFR(money.Float(l.Engaged())),
			money.FormatFR(money.Float(l.Remaining())),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing line row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// ExportExpensesCSV writes every expense visible in `sc`, archived grants included.
func (svc *Service) ExportExpensesCSV(ctx context.Context, sc scope.Scope, w io.Writer) error {
	return core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		if sc.IsNone() {
			return core.NewForbiddenError("aucun secteur accessible")
		}
		grants, err := svc.repo.QueryGrants(ctx, GrantFilter{Secteurs: sc.Secteurs(), IncludeArchived: true})
		if err != nil {
			return errors.Wrap(err, "querying grants")
		}
		return WriteExpensesCSV(w, grants)
	})
}

func (svc *Service) ExportGrantCSV(ctx context.Context, sc scope.Scope, id int, w io.Writer) error {
	return core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, id)
		if err != nil {
			return err
		}
		return WriteGrantCSV(w, g)
	})
}
