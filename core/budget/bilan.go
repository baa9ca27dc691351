package budget

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cgbcreil/gestio/core/money"
	"github.com/cgbcreil/gestio/core/prorata"
)

type (
	GrantTotals struct {
		Demande      float64 `json:"demande"`
		Attribue     float64 `json:"attribue"`
		Recu         float64 `json:"recu"`
		BaseCharges  float64 `json:"base_charges"`
		BaseProduits float64 `json:"base_produits"`
		ReelCharges  float64 `json:"reel_charges"`
		ReelProduits float64 `json:"reel_produits"`
		Engage       float64 `json:"engage"`
		Reste        float64 `json:"reste"`
	}

	// GrantReport is the detailed view of one grant: its lines, scaled against the largest one, and totals
	// split between charges and produits.
	GrantReport struct {
		Grant    GrantHeader `json:"subvention"`
		Lines    []LineRow   `json:"lignes"`
		Totals   GrantTotals `json:"totals"`
		MaxTotal float64     `json:"max_total"`
		Warnings []Warning   `json:"warnings"`
	}

	GrantHeader struct {
		ID       int     `json:"id"`
		Name     string  `json:"nom"`
		Secteur  string  `json:"secteur"`
		Year     int     `json:"annee_exercice"`
		Demande  float64 `json:"montant_demande"`
		Attribue float64 `json:"montant_attribue"`
		Recu     float64 `json:"montant_recu"`
		Archived bool    `json:"est_archive"`
	}
)

func header(g Grant) GrantHeader {
	return GrantHeader{
		ID:       g.ID,
		Name:     g.Name,
		Secteur:  g.Secteur,
		Year:     g.Year,
		Demande:  money.Round(g.Requested),
		Attribue: money.Round(g.Allocated),
		Recu:     money.Round(g.Received),
		Archived: g.Archived,
	}
}

// sortedLines returns the lines of `g` ordered by ID, without touching `g`.
func sortedLines(g Grant) []BudgetLine {
	lines := append([]BudgetLine{}, g.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

// BuildGrantReport computes the detailed report of `g`.
func BuildGrantReport(g Grant) GrantReport {
	lines := sortedLines(g)

	maxTotal := decimal.Zero
	for _, l := range lines {
		total := money.Dec(l.Real).Add(l.Engaged()).Add(l.Remaining())
		maxTotal = decimal.Max(maxTotal, total)
	}

	hundred := decimal.NewFromInt(100)
	pct := func(d decimal.Decimal) float64 {
		if d.IsZero() || !maxTotal.IsPositive() {
			return 0
		}
		return money.Float(d.Mul(hundred).DivRound(maxTotal, 16))
	}

	var baseCh, baseProd, reelCh, reelProd, engaged, remaining decimal.Decimal
	rows := make([]LineRow, 0, len(lines))
	for _, l := range lines {
		row := lineRow(l)
		row.PReel = pct(money.Dec(l.Real))
		row.PEngage = pct(l.Engaged())
		row.PReste = pct(l.Remaining())
		rows = append(rows, row)

		if l.IsCharge() {
			baseCh = baseCh.Add(money.Dec(l.Base))
			reelCh = reelCh.Add(money.Dec(l.Real))
			engaged = engaged.Add(l.Engaged())
			remaining = remaining.Add(l.Remaining())
		} else {
			baseProd = baseProd.Add(money.Dec(l.Base))
			reelProd = reelProd.Add(money.Dec(l.Real))
		}
	}

	warnings := GrantWarnings(g)
	if warnings == nil {
		warnings = []Warning{}
	}
	return GrantReport{
		Grant: header(g),
		Lines: rows,
		Totals: GrantTotals{
			Demande:      money.Round(g.Requested),
			Attribue:     money.Round(g.Allocated),
			Recu:         money.Round(g.Received),
			BaseCharges:  money.Float(baseCh),
			BaseProduits: money.Float(baseProd),
			ReelCharges:  money.Float(reelCh),
			ReelProduits: money.Float(reelProd),
			Engage:       money.Float(engaged),
			Reste:        money.Float(remaining),
		},
		MaxTotal: money.Float(maxTotal),
		Warnings: warnings,
	}
}

// PilotageReport is what the grant steering page shows before a ventilation.
type PilotageReport struct {
	Grant         GrantHeader        `json:"subvention"`
	TotalBase     float64            `json:"total_base"`
	TheorRecu     prorata.Allocation `json:"theor_recu"`
	TheorAttribue prorata.Allocation `json:"theor_attribue"`
	ReelLignes    float64            `json:"reel_lignes"`
	Engage        float64            `json:"engage"`
	Warnings      []Warning          `json:"warnings"`
}

var pilotageMessages = map[WarningKind]string{
	WarnMissingBreakdown: "Montant reçu sans ventilation en lignes réel : utiliser la ventilation auto ou renseigner le réel par ligne.",
	WarnPartialBreakdown: "Ventilation partielle : total lignes réel < montant reçu. Il manque une répartition.",
	WarnOverspend:        "Attention : engagé > total lignes réel (dépenses au-dessus de l'enveloppe ventilée).",
}

func prorataLines(lines []BudgetLine) []prorata.Line {
	out := make([]prorata.Line, len(lines))
	for i, l := range lines {
		out[i] = prorata.Line{ID: l.ID, Base: l.Base}
	}
	return out
}

// Pilotage computes the theoretical pro-rata of the received and allocated amounts of `g` on its lines.
func Pilotage(g Grant) PilotageReport {
	lines := prorataLines(sortedLines(g))

	warnings := make([]Warning, 0)
	for _, w := range GrantWarnings(g) {
		w.Message = pilotageMessages[w.Kind]
		warnings = append(warnings, w)
	}
	return PilotageReport{
		Grant:         header(g),
		TotalBase:     money.Float(g.TotalBase()),
		TheorRecu:     prorata.Allocate(lines, g.Received),
		TheorAttribue: prorata.Allocate(lines, g.Allocated),
		ReelLignes:    money.Float(g.TotalRealLines()),
		Engage:        money.Float(g.TotalEngaged()),
		Warnings:      warnings,
	}
}

// Ventilation computes the new real amount of every line of `g` for `req`, keyed by line ID.
// It fails with a validation error when `g` has no line or, for a pro-rata, when the total base is not positive.
func Ventilation(g Grant, req VentilationRequest) (map[int]float64, error) {
	lines := sortedLines(g)
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	reals := make(map[int]float64, len(lines))
	switch req.Mode {
	case ModeReset:
		for _, l := range lines {
			reals[l.ID] = 0
		}
	case ModeCopyBase:
		for _, l := range lines {
			reals[l.ID] = money.Round(l.Base)
		}
	case ModeProrataBase:
		if !g.TotalBase().IsPositive() {
			return nil, ErrZeroBase
		}
		target := g.Received
		if req.Target == TargetAttribue {
			target = g.Allocated
		}
		reals = prorata.Allocate(prorataLines(lines), target).Map()
	default:
		return nil, ErrUnknownMode
	}
	return reals, nil
}

// Quality sums up how well the grants of an exercise are kept.
type Quality struct {
	NbSubventions      int     `json:"nb_subventions"`
	NbManquantes       int     `json:"nb_ventilations_manquantes"`
	NbIncompletes      int     `json:"nb_ventilations_incompletes"`
	NbDepassements     int     `json:"nb_depassements"`
	NbLignesDepassees  int     `json:"nb_lignes_depassees"`
	NbDepensesSansDate int     `json:"nb_depenses_sans_date"`
	NbSansLigne        int     `json:"nb_subventions_sans_ligne"`
	TauxVentilation    float64 `json:"taux_ventilation"`
}

// ComputeQuality counts the warnings and data gaps of `grants`.
// TauxVentilation is the share (in %) of grants with a received amount whose real lines cover it.
func ComputeQuality(grants []Grant) Quality {
	grants = uniqueGrants(grants)
	q := Quality{NbSubventions: len(grants)}

	var withRecu, covered int64
	for _, g := range grants {
		for _, w := range GrantWarnings(g) {
			switch w.Kind {
			case WarnMissingBreakdown:
				q.NbManquantes++
			case WarnPartialBreakdown:
				q.NbIncompletes++
			case WarnOverspend:
				q.NbDepassements++
			}
		}
		if len(g.Lines) == 0 {
			q.NbSansLigne++
		}
		for _, l := range g.Lines {
			if l.Engaged().GreaterThan(money.Dec(l.Real)) {
				q.NbLignesDepassees++
			}
			for _, e := range l.Expenses {
				if !e.PaidOn.Valid {
					q.NbDepensesSansDate++
				}
			}
		}

		recu := money.Dec(g.Received)
		if recu.IsPositive() {
			withRecu++
			if g.TotalRealLines().GreaterThanOrEqual(recu) {
				covered++
			}
		}
	}
	if withRecu > 0 {
		q.TauxVentilation = money.Float(decimal.NewFromInt(covered*100).DivRound(decimal.NewFromInt(withRecu), 16))
	}
	return q
}
