package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func paid(y int, m time.Month, d int) null.Time {
	return null.TimeFrom(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func sampleGrants() []Grant {
	return []Grant{
		{
			ID: 1, Name: "CAF Numérique", Secteur: "Numérique", Year: 2024,
			Requested: 1500, Allocated: 1200, Received: 1000,
			ProjectIDs: []int{10, 10},
			Lines: []BudgetLine{
				{ID: 1, Nature: NatureCharge, Compte: "60", Label: "Achats", Base: 300, Real: 300, Expenses: []Expense{
					{ID: 1, Amount: 100.10, PaidOn: paid(2024, time.March, 3)},
					{ID: 2, Amount: 50.05, PaidOn: paid(2024, time.March, 20)},
				}},
				{ID: 2, Nature: NatureCharge, Compte: "62", Label: "Intervenants", Base: 700, Real: 700, Expenses: []Expense{
					{ID: 3, Amount: 400, PaidOn: paid(2024, time.June, 1)},
				}},
				{ID: 3, Nature: NatureProduit, Compte: "74", Label: "Subvention", Base: 1000, Real: 1000},
			},
		},
		{
			ID: 2, Name: "Ville Familles", Secteur: "Familles", Year: 2024,
			Requested: 800, Allocated: 600, Received: 600,
			ProjectIDs: []int{20},
			Lines: []BudgetLine{
				{ID: 4, Compte: "60", Label: "Goûters", Base: 200, Real: 200, Expenses: []Expense{
					{ID: 4, Amount: 250, PaidOn: paid(2024, time.June, 15)},
					{ID: 5, Amount: 10},
				}},
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	grants := sampleGrants()
	projects := []Project{{ID: 20, Name: "Parents", Secteur: "Familles"}, {ID: 10, Name: "Code club", Secteur: "Numérique"}}

	// a grant listed twice counts once
	sum := Summarize(append(grants, grants[0]), projects)

	assert.Equal(t, KPIs{NbSubventions: 2, Recu: 1600, Engage: 810.15, Reste: 389.85}, sum.KPIs)
	assert.Equal(t, []SecteurRow{
		{Secteur: "Familles", Recu: 600, Engage: 260, Reste: -60},
		{Secteur: "Numérique", Recu: 1000, Engage: 550.15, Reste: 449.85},
	}, sum.BySecteur)
	assert.Equal(t, []CompteRow{
		{Compte: "60", Reel: 500, Engage: 410.15, Reste: 89.85},
		{Compte: "62", Reel: 700, Engage: 400, Reste: 300},
		{Compte: "74", Reel: 1000, Engage: 0, Reste: 1000},
	}, sum.ByCompte)
	require.Len(t, sum.ByProjet, 2)
	assert.Equal(t, ProjectRow{
		ID: 10, Name: "Code club", Secteur: "Numérique",
		Demande: 1500, Attribue: 1200, Recu: 1000, ReelLignes: 1000, Engage: 550.15, Reste: 449.85,
	}, sum.ByProjet[0])
	assert.Equal(t, "Parents", sum.ByProjet[1].Name)
	assert.Equal(t, 2000.0, sum.MaxSecteurTotal)
	assert.Equal(t, 2000.0, sum.MaxCompteTotal)
	assert.Equal(t, 2000.0, sum.MaxProjetTotal)
}

func TestSummarize_noGrants(t *testing.T) {
	sum := Summarize(nil, nil)
	assert.Equal(t, KPIs{}, sum.KPIs)
	assert.NotNil(t, sum.BySecteur)
	assert.NotNil(t, sum.ByCompte)
	assert.NotNil(t, sum.ByProjet)
}

func TestSummarize_roundsOnlyAtOutput(t *testing.T) {
	lines := make([]BudgetLine, 3)
	for i := range lines {
		lines[i] = BudgetLine{ID: i + 1, Compte: "60", Real: 0.005}
	}
	sum := Summarize([]Grant{{ID: 1, Secteur: "Numérique", Lines: lines}}, nil)
	// 3 x 0.005 = 0.015 -> 0.02, while rounding every line first would give 0.03
	assert.Equal(t, 0.02, sum.ByCompte[0].Reel)
}

func TestGrantWarnings(t *testing.T) {
	tests := []struct {
		name  string
		grant Grant
		want  []WarningKind
	}{
		{
			name:  "missing breakdown",
			grant: Grant{Received: 1000},
			want:  []WarningKind{WarnMissingBreakdown},
		},
		{
			name:  "partial breakdown",
			grant: Grant{Received: 1000, Lines: []BudgetLine{{Real: 400}}},
			want:  []WarningKind{WarnPartialBreakdown},
		},
		{
			name: "overspend only",
			grant: Grant{Received: 1000, Lines: []BudgetLine{
				{Real: 1000, Expenses: []Expense{{Amount: 1200}}},
			}},
			want: []WarningKind{WarnOverspend},
		},
		{
			name: "partial and overspend",
			grant: Grant{Received: 1000, Lines: []BudgetLine{
				{Real: 500, Expenses: []Expense{{Amount: 600}}},
			}},
			want: []WarningKind{WarnPartialBreakdown, WarnOverspend},
		},
		{
			name:  "produit lines are not a breakdown",
			grant: Grant{Received: 1000, Lines: []BudgetLine{{Nature: NatureProduit, Real: 1000}}},
			want:  []WarningKind{WarnMissingBreakdown},
		},
		{
			name:  "nothing received",
			grant: Grant{Lines: []BudgetLine{{Real: 100}}},
		},
		{
			name:  "fully broken down",
			grant: Grant{Received: 1000, Lines: []BudgetLine{{Real: 1000, Expenses: []Expense{{Amount: 1000}}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []WarningKind
			for _, w := range GrantWarnings(tt.grant) {
				got = append(got, w.Kind)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrantWarnings_message(t *testing.T) {
	ws := GrantWarnings(Grant{ID: 3, Name: "CAF", Received: 1000})
	require.Len(t, ws, 1)
	assert.Equal(t, 3, ws[0].GrantID)
	assert.Equal(t, "CAF : reçu 1000.00€ mais lignes réel = 0€ (ventilation manquante).", ws[0].Message)
}

func TestWarnings_neverNil(t *testing.T) {
	assert.NotNil(t, Warnings(nil))
	assert.Len(t, Warnings(sampleGrants()), 2)
}

func TestMonthlyExpenses(t *testing.T) {
	series := MonthlyExpenses(sampleGrants(), 2024)
	require.Len(t, series, 12)
	want := map[int]float64{3: 150.15, 6: 650}
	for _, m := range series {
		if m.Montant != want[m.Month] {
			t.Errorf("MonthlyExpenses() month %d = %v, want %v", m.Month, m.Montant, want[m.Month])
		}
	}
	for _, m := range MonthlyExpenses(sampleGrants(), 2023) {
		assert.Zero(t, m.Montant)
	}
}

func TestExpensesBySecteur(t *testing.T) {
	assert.Equal(t, []SecteurAmount{
		{Secteur: "Familles", Montant: 260},
		{Secteur: "Numérique", Montant: 550.15},
	}, ExpensesBySecteur(sampleGrants()))
}

func TestAccounts(t *testing.T) {
	g := sampleGrants()[0]
	tests := []struct {
		nature string
		want   []string
	}{
		{nature: "", want: []string{"60", "62", "74"}},
		{nature: NatureCharge, want: []string{"60", "62"}},
		{nature: NatureProduit, want: []string{"74"}},
	}
	for _, tt := range tests {
		t.Run(tt.nature, func(t *testing.T) {
			assert.Equal(t, tt.want, Accounts(g, tt.nature))
		})
	}
}

func TestLines(t *testing.T) {
	g := sampleGrants()[0]
	rows := Lines(g, "60", "")
	require.Len(t, rows, 1)
	assert.Equal(t, LineRow{ID: 1, Compte: "60", Label: "Achats", Nature: NatureCharge, Base: 300, Reel: 300, Engage: 150.15, Reste: 149.85}, rows[0])
	assert.Len(t, Lines(g, "", NatureProduit), 1)
	assert.Empty(t, Lines(g, "99", ""))
}

func TestComputeTotals(t *testing.T) {
	assert.Equal(t, Totals{
		Demande: 2300, Attribue: 1800, Recu: 1600, ReelLignes: 1200, Engage: 810.15, Reste: 389.85,
	}, ComputeTotals(sampleGrants()))
}

func TestRealByNature(t *testing.T) {
	charges, produits := RealByNature(sampleGrants())
	// the Goûters line has no nature: it is in neither sum
	assert.Equal(t, "1000", charges.String())
	assert.Equal(t, "1000", produits.String())
}
