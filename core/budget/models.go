package budget

import (
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/money"
)

// Natures
const (
	NatureCharge  = "charge"
	NatureProduit = "produit"

	DefaultCompte = "60"
)

type (
	// Grant (subvention) is an external funding award. Requested, Allocated and Received are negotiated
	// amounts; everything else is derived from its lines.
	Grant struct {
		ID         int          `json:"id"`
		Name       string       `json:"nom"`
		Secteur    string       `json:"secteur"`
		Year       int          `json:"annee_exercice"`
		Requested  float64      `json:"montant_demande"`
		Allocated  float64      `json:"montant_attribue"`
		Received   float64      `json:"montant_recu"`
		Archived   bool         `json:"est_archive"`
		Lines      []BudgetLine `json:"lignes"`
		ProjectIDs []int        `json:"projet_ids"`
	}

	BudgetLine struct {
		ID       int       `json:"id"`
		GrantID  int       `json:"subvention_id"`
		Nature   string    `json:"nature"`
		Compte   string    `json:"compte"`
		Label    string    `json:"libelle"`
		Base     float64   `json:"montant_base"`
		Real     float64   `json:"montant_reel"`
		Expenses []Expense `json:"depenses,omitempty"`
	}

	Expense struct {
		ID     int       `json:"id"`
		LineID int       `json:"ligne_id"`
		Label  string    `json:"libelle"`
		Amount float64   `json:"montant"`
		PaidOn null.Time `json:"date_paiement"`
		Kind   string    `json:"type_depense"`
	}

	Project struct {
		ID          int    `json:"id"`
		Name        string `json:"nom"`
		Secteur     string `json:"secteur"`
		Description string `json:"description,omitempty"`
		WorkshopIDs []int  `json:"atelier_ids"`
	}
)

// IsCharge reports whether the line is an expense line. Lines with an empty nature count as charges.
func (l BudgetLine) IsCharge() bool {
	return core.CleanString(l.Nature, true) != NatureProduit
}

// Engaged is the sum of the line's expenses.
func (l BudgetLine) Engaged() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Expenses {
		total = total.Add(money.Dec(e.Amount))
	}
	return total
}

// Remaining is the line's real amount minus what is engaged.
func (l BudgetLine) Remaining() decimal.Decimal {
	return money.Dec(l.Real).Sub(l.Engaged())
}

// TotalRealLines sums the real amount of the grant's charge lines.
func (g Grant) TotalRealLines() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		if l.IsCharge() {
			total = total.Add(money.Dec(l.Real))
		}
	}
	return total
}

// TotalEngaged sums the expenses of the grant's charge lines.
func (g Grant) TotalEngaged() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		if l.IsCharge() {
			total = total.Add(l.Engaged())
		}
	}
	return total
}

// TotalRemaining sums the remaining amount of the grant's charge lines.
func (g Grant) TotalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		if l.IsCharge() {
			total = total.Add(l.Remaining())
		}
	}
	return total
}

// TotalBase sums the base amount of every line.
func (g Grant) TotalBase() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		total = total.Add(money.Dec(l.Base))
	}
	return total
}

// LinkedTo reports whether the grant has at least one link to `projectID`.
func (g Grant) LinkedTo(projectID int) bool {
	for _, id := range g.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// NewLine contains information needed to add a BudgetLine to a Grant.
type NewLine struct {
	Nature string  `json:"nature" validate:"required,nature"`
	Compte string  `json:"compte" validate:"required,compte"`
	Label  string  `json:"libelle" validate:"required"`
	Base   float64 `json:"montant_base" validate:"gte=0"`
	Real   float64 `json:"montant_reel" validate:"gte=0"`
}

// Clean applies the defaults of a new line: nature "charge" and account "60".
func (nl *NewLine) Clean() {
	nl.Nature = core.CleanString(nl.Nature, true /* lower */)
	if nl.Nature == "" {
		nl.Nature = NatureCharge
	}
	nl.Compte = core.CleanString(nl.Compte)
	if nl.Compte == "" {
		nl.Compte = DefaultCompte
	}
	nl.Label = core.CleanString(nl.Label)
}

// Ventilation modes
const (
	ModeReset       = "reset"
	ModeCopyBase    = "copy_base"
	ModeProrataBase = "prorata_base"

	TargetRecu     = "recu"
	TargetAttribue = "attribue"
)

// VentilationRequest asks to rewrite the real amount of every line of a grant.
type VentilationRequest struct {
	Mode   string `json:"mode" validate:"required,oneof=reset copy_base prorata_base"`
	Target string `json:"target" validate:"omitempty,oneof=recu attribue"`
}

func (vr *VentilationRequest) Clean() {
	vr.Mode = core.CleanString(vr.Mode, true)
	if vr.Mode == "" {
		vr.Mode = ModeCopyBase
	}
	vr.Target = core.CleanString(vr.Target, true)
	if vr.Target == "" {
		vr.Target = TargetRecu
	}
}

// Filter is the page-level filter of the financial reports. Zero values mean "no filter".
type Filter struct {
	Year      int    `query:"annee"`
	Secteur   string `query:"secteur"`
	ProjectID int    `query:"projet_id"`
}

func (f *Filter) Clean() {
	if f.Year < 0 {
		f.Year = 0
	}
	if f.ProjectID < 0 {
		f.ProjectID = 0
	}
	f.Secteur = core.CleanString(f.Secteur)
}

// GrantFilter is what repositories filter grants on. A nil Secteurs means every sector.
type GrantFilter struct {
	Year            int
	Secteurs        []string
	ProjectID       int
	IncludeArchived bool
}

// ProjectFilter is what repositories filter projects on. A nil Secteurs means every sector.
type ProjectFilter struct {
	Secteurs []string
	ID       int
}
