package budget

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

func assertCSV(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  1,
	})
	t.Errorf("csv mismatch:\n%s", diff)
}

func TestWriteExpensesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExpensesCSV(&buf, sampleGrants()))

	want := bom + strings.Join([]string{
		"secteur;subvention;annee;compte;ligne;depense;montant;date_paiement;type",
		"Numérique;CAF Numérique;2024;60;Achats;;100,10;2024-03-03;",
		"Numérique;CAF Numérique;2024;60;Achats;;50,05;2024-03-20;",
		"Numérique;CAF Numérique;2024;62;Intervenants;;400,00;2024-06-01;",
		"Familles;Ville Familles;2024;60;Goûters;;250,00;2024-06-15;",
		"Familles;Ville Familles;2024;60;Goûters;;10,00;;",
	}, "\n") + "\n"
	assertCSV(t, want, buf.String())
}

func TestWriteGrantCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGrantCSV(&buf, sampleGrants()[1]))

	want := bom + strings.Join([]string{
		"subvention;secteur;annee;compte;ligne;base;reel;engage;reste",
		"Ville Familles;Familles;2024;60;Goûters;200,00;200,00;260,00;-60,00",
	}, "\n") + "\n"
	assertCSV(t, want, buf.String())
}
