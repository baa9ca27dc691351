package budget

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cgbcreil/gestio/core/money"
)

type (
	KPIs struct {
		NbSubventions int     `json:"nb_subventions"`
		Recu          float64 `json:"recu"`
		Engage        float64 `json:"engage"`
		Reste         float64 `json:"reste"`
	}

	SecteurRow struct {
		Secteur string  `json:"secteur"`
		Recu    float64 `json:"recu"`
		Engage  float64 `json:"engage"`
		Reste   float64 `json:"reste"`
	}

	CompteRow struct {
		Compte string  `json:"compte"`
		Reel   float64 `json:"reel"`
		Engage float64 `json:"engage"`
		Reste  float64 `json:"reste"`
	}

	ProjectRow struct {
		ID         int     `json:"id"`
		Name       string  `json:"nom"`
		Secteur    string  `json:"secteur"`
		Demande    float64 `json:"demande"`
		Attribue   float64 `json:"attribue"`
		Recu       float64 `json:"recu"`
		ReelLignes float64 `json:"reel_lignes"`
		Engage     float64 `json:"engage"`
		Reste      float64 `json:"reste"`
	}

	// Summary is the rollup behind the stats page.
	Summary struct {
		KPIs            KPIs         `json:"kpis"`
		BySecteur       []SecteurRow `json:"by_secteur"`
		ByCompte        []CompteRow  `json:"by_compte"`
		ByProjet        []ProjectRow `json:"by_projet"`
		MaxSecteurTotal float64      `json:"max_secteur_total"`
		MaxCompteTotal  float64      `json:"max_compte_total"`
		MaxProjetTotal  float64      `json:"max_projet_total"`
	}

	Totals struct {
		Demande    float64 `json:"demande"`
		Attribue   float64 `json:"attribue"`
		Recu       float64 `json:"recu"`
		ReelLignes float64 `json:"reel_lignes"`
		Engage     float64 `json:"engage"`
		Reste      float64 `json:"reste"`
	}
)

// triple accumulates received|real, engaged and remaining amounts.
type triple struct {
	a, engaged, remaining decimal.Decimal
}

func (t triple) total() decimal.Decimal { return t.a.Add(t.engaged).Add(t.remaining) }

// uniqueGrants drops repeated grants (same ID), keeping the first occurrence.
func uniqueGrants(grants []Grant) []Grant {
	seen := make(map[int]bool, len(grants))
	out := make([]Grant, 0, len(grants))
	for _, g := range grants {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}

// Summarize computes the KPIs and the per sector, per account and per project rollups of `grants`.
// Projects are rolled up over the grants they are linked to within `grants`.
func Summarize(grants []Grant, projects []Project) Summary {
	grants = uniqueGrants(grants)

	var kpi triple
	bySecteur := make(map[string]*triple)
	byCompte := make(map[string]*triple)
	for _, g := range grants {
		recu, engaged, remaining := money.Dec(g.Received), g.TotalEngaged(), g.TotalRemaining()
		kpi.a = kpi.a.Add(recu)
		kpi.engaged = kpi.engaged.Add(engaged)
		kpi.remaining = kpi.remaining.Add(remaining)

		sec, ok := bySecteur[g.Secteur]
		if !ok {
			sec = &triple{}
			bySecteur[g.Secteur] = sec
		}
		sec.a = sec.a.Add(recu)
		sec.engaged = sec.engaged.Add(engaged)
		sec.remaining = sec.remaining.Add(remaining)

		for _, l := range g.Lines {
			cpt, ok := byCompte[l.Compte]
			if !ok {
				cpt = &triple{}
				byCompte[l.Compte] = cpt
			}
			cpt.a = cpt.a.Add(money.Dec(l.Real))
			cpt.engaged = cpt.engaged.Add(l.Engaged())
			cpt.remaining = cpt.remaining.Add(l.Remaining())
		}
	}

	sum := Summary{
		KPIs: KPIs{
			NbSubventions: len(grants),
			Recu:          money.Float(kpi.a),
			Engage:        money.Float(kpi.engaged),
			Reste:         money.Float(kpi.remaining),
		},
		BySecteur: make([]SecteurRow, 0, len(bySecteur)),
		ByCompte:  make([]CompteRow, 0, len(byCompte)),
		ByProjet:  make([]ProjectRow, 0, len(projects)),
	}

	maxSecteur := decimal.Zero
	for name, t := range bySecteur {
		sum.BySecteur = append(sum.BySecteur, SecteurRow{
			Secteur: name,
			Recu:    money.Float(t.a),
			Engage:  money.Float(t.engaged),
			Reste:   money.Float(t.remaining),
		})
		maxSecteur = decimal.Max(maxSecteur, t.total())
	}
	sort.Slice(sum.BySecteur, func(i, j int) bool { return sum.BySecteur[i].Secteur < sum.BySecteur[j].Secteur })

	maxCompte := decimal.Zero
	for name, t := range byCompte {
		sum.ByCompte = append(sum.ByCompte, CompteRow{
			Compte: name,
			Reel:   money.Float(t.a),
			Engage: money.Float(t.engaged),
			Reste:  money.Float(t.remaining),
		})
		maxCompte = decimal.Max(maxCompte, t.total())
	}
	sort.Slice(sum.ByCompte, func(i, j int) bool { return sum.ByCompte[i].Compte < sum.ByCompte[j].Compte })

	maxProjet := decimal.Zero
	for _, p := range projects {
		row, t := projectRollup(p, grants)
		sum.ByProjet = append(sum.ByProjet, row)
		maxProjet = decimal.Max(maxProjet, t.total())
	}
	sort.SliceStable(sum.ByProjet, func(i, j int) bool { return sum.ByProjet[i].Name < sum.ByProjet[j].Name })

	sum.MaxSecteurTotal = money.Float(maxSecteur)
	sum.MaxCompteTotal = money.Float(maxCompte)
	sum.MaxProjetTotal = money.Float(maxProjet)
	return sum
}

// ProjectRollup sums the amounts of the grants linked to `p`. A grant linked several times counts once.
func ProjectRollup(p Project, grants []Grant) ProjectRow {
	row, _ := projectRollup(p, uniqueGrants(grants))
	return row
}

func projectRollup(p Project, grants []Grant) (ProjectRow, triple) {
	var demande, attribue, reel decimal.Decimal
	var t triple
	for _, g := range grants {
		if !g.LinkedTo(p.ID) {
			continue
		}
		demande = demande.Add(money.Dec(g.Requested))
		attribue = attribue.Add(money.Dec(g.Allocated))
		reel = reel.Add(g.TotalRealLines())
		t.a = t.a.Add(money.Dec(g.Received))
		t.engaged = t.engaged.Add(g.TotalEngaged())
		t.remaining = t.remaining.Add(g.TotalRemaining())
	}
	return ProjectRow{
		ID:         p.ID,
		Name:       p.Name,
		Secteur:    p.Secteur,
		Demande:    money.Float(demande),
		Attribue:   money.Float(attribue),
		Recu:       money.Float(t.a),
		ReelLignes: money.Float(reel),
		Engage:     money.Float(t.engaged),
		Reste:      money.Float(t.remaining),
	}, t
}

// ComputeTotals sums the negotiated and derived amounts of `grants`.
func ComputeTotals(grants []Grant) Totals {
	var demande, attribue, recu, reel, engaged, remaining decimal.Decimal
	for _, g := range uniqueGrants(grants) {
		demande = demande.Add(money.Dec(g.Requested))
		attribue = attribue.Add(money.Dec(g.Allocated))
		recu = recu.Add(money.Dec(g.Received))
		reel = reel.Add(g.TotalRealLines())
		engaged = engaged.Add(g.TotalEngaged())
		remaining = remaining.Add(g.TotalRemaining())
	}
	return Totals{
		Demande:    money.Float(demande),
		Attribue:   money.Float(attribue),
		Recu:       money.Float(recu),
		ReelLignes: money.Float(reel),
		Engage:     money.Float(engaged),
		Reste:      money.Float(remaining),
	}
}

// WarningKind identifies a consistency check.
type WarningKind string

const (
	WarnMissingBreakdown WarningKind = "ventilation_manquante"
	WarnPartialBreakdown WarningKind = "ventilation_incomplete"
	WarnOverspend        WarningKind = "depassement"
)

type Warning struct {
	Kind      WarningKind `json:"kind"`
	GrantID   int         `json:"subvention_id"`
	GrantName string      `json:"subvention"`
	Message   string      `json:"message"`
}

// GrantWarnings runs the three consistency checks on `g`. Each check is independent.
func GrantWarnings(g Grant) []Warning {
	recu := money.Dec(g.Received)
	reel := g.TotalRealLines()
	engaged := g.TotalEngaged()

	var warnings []Warning
	add := func(kind WarningKind, msg string) {
		warnings = append(warnings, Warning{Kind: kind, GrantID: g.ID, GrantName: g.Name, Message: msg})
	}
	if recu.IsPositive() && reel.IsZero() {
		add(WarnMissingBreakdown, fmt.Sprintf("%s : reçu %s€ mais lignes réel = 0€ (ventilation manquante).",
			g.Name, recu.StringFixed(2)))
	}
	if recu.IsPositive() && reel.IsPositive() && reel.LessThan(recu) {
		add(WarnPartialBreakdown, fmt.Sprintf("%s : reçu %s€ mais lignes réel = %s€ (ventilation incomplète).",
			g.Name, recu.StringFixed(2), reel.StringFixed(2)))
	}
	if reel.IsPositive() && engaged.GreaterThan(reel) {
		add(WarnOverspend, fmt.Sprintf("%s : engagé %s€ > lignes réel %s€ (dépassement).",
			g.Name, engaged.StringFixed(2), reel.StringFixed(2)))
	}
	return warnings
}

// Warnings runs GrantWarnings over every grant, in order.
func Warnings(grants []Grant) []Warning {
	warnings := make([]Warning, 0)
	for _, g := range uniqueGrants(grants) {
		warnings = append(warnings, GrantWarnings(g)...)
	}
	return warnings
}

type MonthAmount struct {
	Month   int     `json:"mois"`
	Montant float64 `json:"montant"`
}

// MonthlyExpenses sums the expenses of `grants` paid during `year`, month by month.
// Expenses without a payment date are left out.
func MonthlyExpenses(grants []Grant, year int) []MonthAmount {
	var months [12]decimal.Decimal
	for _, g := range uniqueGrants(grants) {
		for _, l := range g.Lines {
			for _, e := range l.Expenses {
				if !e.PaidOn.Valid || e.PaidOn.Time.Year() != year {
					continue
				}
				m := int(e.PaidOn.Time.Month()) - 1
				months[m] = months[m].Add(money.Dec(e.Amount))
			}
		}
	}
	out := make([]MonthAmount, 12)
	for i, d := range months {
		out[i] = MonthAmount{Month: i + 1, Montant: money.Float(d)}
	}
	return out
}

type SecteurAmount struct {
	Secteur string  `json:"secteur"`
	Montant float64 `json:"montant"`
}

// ExpensesBySecteur sums what is engaged on the charge lines of `grants`, per sector.
func ExpensesBySecteur(grants []Grant) []SecteurAmount {
	bySecteur := make(map[string]decimal.Decimal)
	for _, g := range uniqueGrants(grants) {
		bySecteur[g.Secteur] = bySecteur[g.Secteur].Add(g.TotalEngaged())
	}
	out := make([]SecteurAmount, 0, len(bySecteur))
	for sec, d := range bySecteur {
		out = append(out, SecteurAmount{Secteur: sec, Montant: money.Float(d)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Secteur < out[j].Secteur })
	return out
}

// Accounts lists the distinct accounts of the lines of `g`, optionally restricted to a nature.
func Accounts(g Grant, nature string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, l := range g.Lines {
		if nature != "" && !strings.EqualFold(l.Nature, nature) {
			continue
		}
		if l.Compte == "" || seen[l.Compte] {
			continue
		}
		seen[l.Compte] = true
		out = append(out, l.Compte)
	}
	sort.Strings(out)
	return out
}

type LineRow struct {
	ID      int     `json:"id"`
	Compte  string  `json:"compte"`
	Label   string  `json:"libelle"`
	Nature  string  `json:"nature"`
	Base    float64 `json:"base"`
	Reel    float64 `json:"montant_reel"`
	Engage  float64 `json:"engage"`
	Reste   float64 `json:"reste"`
	PReel   float64 `json:"p_reel,omitempty"`
	PEngage float64 `json:"p_engage,omitempty"`
	PReste  float64 `json:"p_reste,omitempty"`
}

func lineRow(l BudgetLine) LineRow {
	return LineRow{
		ID:     l.ID,
		Compte: l.Compte,
		Label:  l.Label,
		Nature: l.Nature,
		Base:   money.Round(l.Base),
		Reel:   money.Round(l.Real),
		Engage: money.Float(l.Engaged()),
		Reste:  money.Float(l.Remaining()),
	}
}

// Lines lists the lines of `g` ordered by account then label, optionally filtered by account and nature.
func Lines(g Grant, compte, nature string) []LineRow {
	out := make([]LineRow, 0, len(g.Lines))
	for _, l := range g.Lines {
		if nature != "" && !strings.EqualFold(l.Nature, nature) {
			continue
		}
		if compte != "" && l.Compte != compte {
			continue
		}
		out = append(out, lineRow(l))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Compte != out[j].Compte {
			return out[i].Compte < out[j].Compte
		}
		return out[i].Label < out[j].Label
	})
	return out
}
