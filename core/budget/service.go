package budget

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/money"
	"github.com/cgbcreil/gestio/core/scope"
)

type (
	Service struct {
		repo Repository
		tx   core.Transactor
	}

	GrantRow struct {
		GrantHeader
		ReelLignes float64 `json:"reel_lignes"`
		Engage     float64 `json:"engage"`
		Reste      float64 `json:"reste"`
	}

	StatsReport struct {
		Filter   Filter    `json:"filter"`
		Summary  Summary   `json:"summary"`
		Warnings []Warning `json:"warnings"`
	}

	BilanReport struct {
		Filter   Filter     `json:"filter"`
		Totals   Totals     `json:"totals"`
		Grants   []GrantRow `json:"subventions"`
		Warnings []Warning  `json:"alertes"`
	}

	DashboardReport struct {
		Year          int             `json:"year"`
		Years         []int           `json:"years"`
		KPIs          KPIs            `json:"kpis"`
		Series        []MonthAmount   `json:"series"`
		BySecteur     []SecteurAmount `json:"par_secteur"`
		Alerts        []Warning       `json:"alertes"`
		MultiSecteurs bool            `json:"multi_secteurs"`
	}

	SecteurReport struct {
		Year     int         `json:"year"`
		Years    []int       `json:"years"`
		Secteurs []string    `json:"secteurs"`
		Selected string      `json:"selected_secteur"`
		Totals   Totals      `json:"totals"`
		Grants   []GrantRow  `json:"subventions"`
		Accounts []CompteRow `json:"comptes"`
		Alerts   []Warning   `json:"alertes"`
	}

	YearGrantReport struct {
		Year     int           `json:"year"`
		Years    []int         `json:"years"`
		Grants   []GrantHeader `json:"subventions"`
		Selected *GrantReport  `json:"data"`
	}

	QualityReport struct {
		Year    int     `json:"year"`
		Years   []int   `json:"years"`
		Quality Quality `json:"data"`
	}
)

func NewService(repo Repository, tx core.Transactor) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
	).CheckAndPanic()
	return &Service{repo: repo, tx: tx}
}

func grantRow(g Grant) GrantRow {
	return GrantRow{
		GrantHeader: header(g),
		ReelLignes:  money.Float(g.TotalRealLines()),
		Engage:      money.Float(g.TotalEngaged()),
		Reste:       money.Float(g.TotalRemaining()),
	}
}

func grantRows(grants []Grant) []GrantRow {
	rows := make([]GrantRow, 0, len(grants))
	for _, g := range uniqueGrants(grants) {
		rows = append(rows, grantRow(g))
	}
	return rows
}

func secteursFor(sc scope.Scope, secteur string) []string {
	if secteur != "" {
		return []string{secteur}
	}
	return sc.Secteurs()
}

// resolveFilter applies `sc` to `f`: a sector manager's own sector replaces an empty sector,
// and an out-of-scope sector or project is forbidden.
func (svc *Service) resolveFilter(ctx context.Context, sc scope.Scope, f Filter) (Filter, GrantFilter, error) {
	f.Clean()
	secteur, err := sc.Effective(f.Secteur)
	if err != nil {
		return f, GrantFilter{}, err
	}
	f.Secteur = secteur

	if f.ProjectID != 0 {
		p, err := svc.repo.GetProject(ctx, f.ProjectID)
		if err != nil {
			return f, GrantFilter{}, err
		}
		if err := sc.Check(p.Secteur); err != nil {
			return f, GrantFilter{}, err
		}
	}
	return f, GrantFilter{Year: f.Year, Secteurs: secteursFor(sc, secteur), ProjectID: f.ProjectID}, nil
}

// Grants returns the non-archived grants selected by `f` within `sc`.
func (svc *Service) Grants(ctx context.Context, sc scope.Scope, f Filter) ([]Grant, error) {
	var grants []Grant
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		_, gf, err := svc.resolveFilter(ctx, sc, f)
		if err != nil {
			return err
		}
		grants, err = svc.repo.QueryGrants(ctx, gf)
		return errors.Wrap(err, "querying grants")
	})
	return uniqueGrants(grants), err
}

// Project returns project `id` when it is in `sc`.
func (svc *Service) Project(ctx context.Context, sc scope.Scope, id int) (Project, error) {
	var p Project
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.GetProject(ctx, id); err != nil {
			return err
		}
		return sc.Check(p.Secteur)
	})
	return p, err
}

func (svc *Service) Stats(ctx context.Context, sc scope.Scope, f Filter) (StatsReport, error) {
	var report StatsReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		f, gf, err := svc.resolveFilter(ctx, sc, f)
		if err != nil {
			return err
		}
		grants, err := svc.repo.QueryGrants(ctx, gf)
		if err != nil {
			return errors.Wrap(err, "querying grants")
		}
		projects, err := svc.repo.QueryProjects(ctx, ProjectFilter{Secteurs: gf.Secteurs, ID: f.ProjectID})
		if err != nil {
			return errors.Wrap(err, "querying projects")
		}
		report = StatsReport{Filter: f, Summary: Summarize(grants, projects), Warnings: Warnings(grants)}
		return nil
	})
	return report, err
}

func (svc *Service) Bilan(ctx context.Context, sc scope.Scope, f Filter) (BilanReport, error) {
	var report BilanReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		f, gf, err := svc.resolveFilter(ctx, sc, f)
		if err != nil {
			return err
		}
		grants, err := svc.repo.QueryGrants(ctx, gf)
		if err != nil {
			return errors.Wrap(err, "querying grants")
		}
		report = BilanReport{Filter: f, Totals: ComputeTotals(grants), Grants: grantRows(grants), Warnings: Warnings(grants)}
		return nil
	})
	return report, err
}

// ExerciseYears returns the exercise years visible in `sc`, latest first.
func (svc *Service) ExerciseYears(ctx context.Context, sc scope.Scope) ([]int, error) {
	var years []int
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		if sc.IsNone() {
			return core.NewForbiddenError("aucun secteur accessible")
		}
		var err error
		years, err = svc.exerciseYears(ctx, sc)
		return err
	})
	return years, err
}

func (svc *Service) exerciseYears(ctx context.Context, sc scope.Scope) ([]int, error) {
	years, err := svc.repo.ExerciseYears(ctx, sc.Secteurs())
	if err != nil {
		return nil, errors.Wrap(err, "querying exercise years")
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// resolveYear picks the latest year when `year` is 0. A year that is not available in `sc` is forbidden.
// When nothing is available, year 0 resolves to 0 and every report is empty.
func (svc *Service) resolveYear(ctx context.Context, sc scope.Scope, year int) (int, []int, error) {
	if sc.IsNone() {
		return 0, nil, core.NewForbiddenError("aucun secteur accessible")
	}
	years, err := svc.exerciseYears(ctx, sc)
	if err != nil {
		return 0, nil, err
	}
	if year <= 0 {
		if len(years) == 0 {
			return 0, years, nil
		}
		return years[0], years, nil
	}
	for _, y := range years {
		if y == year {
			return year, years, nil
		}
	}
	return 0, nil, core.NewForbiddenError("exercice non disponible: " + strconv.Itoa(year))
}

func (svc *Service) yearGrants(ctx context.Context, sc scope.Scope, year int, secteurs []string) ([]Grant, error) {
	if year == 0 {
		return nil, nil
	}
	grants, err := svc.repo.QueryGrants(ctx, GrantFilter{Year: year, Secteurs: secteurs})
	if err != nil {
		return nil, errors.Wrap(err, "querying grants")
	}
	return uniqueGrants(grants), nil
}

func (svc *Service) Dashboard(ctx context.Context, sc scope.Scope, year int) (DashboardReport, error) {
	var report DashboardReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		year, years, err := svc.resolveYear(ctx, sc, year)
		if err != nil {
			return err
		}
		grants, err := svc.yearGrants(ctx, sc, year, sc.Secteurs())
		if err != nil {
			return err
		}
		report = DashboardReport{
			Year:          year,
			Years:         years,
			KPIs:          Summarize(grants, nil).KPIs,
			Series:        MonthlyExpenses(grants, year),
			BySecteur:     ExpensesBySecteur(grants),
			Alerts:        Warnings(grants),
			MultiSecteurs: sc.IsAll(),
		}
		return nil
	})
	return report, err
}

func distinctSecteurs(grants []Grant) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, g := range grants {
		if !seen[g.Secteur] {
			seen[g.Secteur] = true
			out = append(out, g.Secteur)
		}
	}
	sort.Strings(out)
	return out
}

// SecteurBilan reports on one sector for an exercise year.
// A sector manager always gets their own sector; any other requested sector must have grants that year.
func (svc *Service) SecteurBilan(ctx context.Context, sc scope.Scope, year int, secteur string) (SecteurReport, error) {
	var report SecteurReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		year, years, err := svc.resolveYear(ctx, sc, year)
		if err != nil {
			return err
		}
		grants, err := svc.yearGrants(ctx, sc, year, sc.Secteurs())
		if err != nil {
			return err
		}
		secteurs := distinctSecteurs(grants)

		selected := core.CleanString(secteur)
		if own := sc.Secteurs(); len(own) == 1 {
			selected = own[0]
		}
		if selected != "" {
			found := false
			for _, s := range secteurs {
				if strings.EqualFold(s, selected) {
					selected, found = s, true
					break
				}
			}
			if !found {
				return core.NewForbiddenError("secteur hors périmètre: " + selected)
			}
		} else if len(secteurs) > 0 {
			selected = secteurs[0]
		}

		report = SecteurReport{Year: year, Years: years, Secteurs: secteurs, Selected: selected, Grants: []GrantRow{}}
		if selected == "" {
			return nil
		}
		var selGrants []Grant
		for _, g := range grants {
			if strings.EqualFold(g.Secteur, selected) {
				selGrants = append(selGrants, g)
			}
		}
		report.Totals = ComputeTotals(selGrants)
		report.Grants = grantRows(selGrants)
		report.Accounts = Summarize(selGrants, nil).ByCompte
		report.Alerts = Warnings(selGrants)
		return nil
	})
	return report, err
}

// GrantBilanForYear reports on one grant of an exercise year. `grantID` 0 selects the first grant of the year;
// any other id must be among the year's grants.
func (svc *Service) GrantBilanForYear(ctx context.Context, sc scope.Scope, year, grantID int) (YearGrantReport, error) {
	var report YearGrantReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		year, years, err := svc.resolveYear(ctx, sc, year)
		if err != nil {
			return err
		}
		grants, err := svc.yearGrants(ctx, sc, year, sc.Secteurs())
		if err != nil {
			return err
		}
		sort.SliceStable(grants, func(i, j int) bool { return grants[i].Name < grants[j].Name })

		report = YearGrantReport{Year: year, Years: years, Grants: make([]GrantHeader, 0, len(grants))}
		var selected *Grant
		for i, g := range grants {
			report.Grants = append(report.Grants, header(g))
			if grantID != 0 && g.ID == grantID {
				selected = &grants[i]
			}
		}
		if grantID != 0 && selected == nil {
			return core.NewForbiddenError("subvention hors périmètre: " + strconv.Itoa(grantID))
		}
		if selected == nil && len(grants) > 0 {
			selected = &grants[0]
		}
		if selected != nil {
			gr := BuildGrantReport(*selected)
			report.Selected = &gr
		}
		return nil
	})
	return report, err
}

func (svc *Service) Quality(ctx context.Context, sc scope.Scope, year int) (QualityReport, error) {
	var report QualityReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		year, years, err := svc.resolveYear(ctx, sc, year)
		if err != nil {
			return err
		}
		grants, err := svc.yearGrants(ctx, sc, year, sc.Secteurs())
		if err != nil {
			return err
		}
		report = QualityReport{Year: year, Years: years, Quality: ComputeQuality(grants)}
		return nil
	})
	return report, err
}

// grant loads grant `id` and checks it is in `sc`.
func (svc *Service) grant(ctx context.Context, sc scope.Scope, id int) (Grant, error) {
	g, err := svc.repo.GetGrant(ctx, id)
	if err != nil {
		return Grant{}, err
	}
	if err := sc.Check(g.Secteur); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (svc *Service) GrantBilan(ctx context.Context, sc scope.Scope, id int) (GrantReport, error) {
	var report GrantReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, id)
		if err != nil {
			return err
		}
		report = BuildGrantReport(g)
		return nil
	})
	return report, err
}

func (svc *Service) Pilotage(ctx context.Context, sc scope.Scope, id int) (PilotageReport, error) {
	var report PilotageReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, id)
		if err != nil {
			return err
		}
		report = Pilotage(g)
		return nil
	})
	return report, err
}

// Ventilate rewrites the real amount of every line of grant `id`, in one transaction.
// On error, no line is changed.
func (svc *Service) Ventilate(ctx context.Context, sc scope.Scope, id int, req VentilationRequest) (map[int]float64, error) {
	req.Clean()
	var reals map[int]float64
	err := core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, id)
		if err != nil {
			return err
		}
		if reals, err = Ventilation(g, req); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.UpdateLineReals(ctx, g.ID, reals), "updating line reals")
	})
	if err != nil {
		return nil, err
	}
	return reals, nil
}

// AddLine adds a budget line to grant `grantID`. The label is required.
func (svc *Service) AddLine(ctx context.Context, sc scope.Scope, grantID int, nl NewLine) (BudgetLine, error) {
	nl.Clean()
	if nl.Label == "" {
		return BudgetLine{}, core.NewValidationError(nil, core.FieldError{Field: "libelle", Error: "Libellé obligatoire."})
	}
	if nl.Nature != NatureCharge && nl.Nature != NatureProduit {
		return BudgetLine{}, core.NewValidationError(nil, core.FieldError{Field: "nature", Error: "nature inconnue"})
	}

	var line BudgetLine
	err := core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, grantID)
		if err != nil {
			return err
		}
		line, err = svc.repo.CreateLine(ctx, BudgetLine{
			GrantID: g.ID,
			Nature:  nl.Nature,
			Compte:  nl.Compte,
			Label:   nl.Label,
			Base:    nl.Base,
			Real:    nl.Real,
		})
		return errors.Wrap(err, "creating line")
	})
	return line, err
}

func (svc *Service) Accounts(ctx context.Context, sc scope.Scope, grantID int, nature string) ([]string, error) {
	var accounts []string
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, grantID)
		if err != nil {
			return err
		}
		accounts = Accounts(g, core.CleanString(nature, true))
		return nil
	})
	return accounts, err
}

func (svc *Service) Lines(ctx context.Context, sc scope.Scope, grantID int, compte, nature string) ([]LineRow, error) {
	var rows []LineRow
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		g, err := svc.grant(ctx, sc, grantID)
		if err != nil {
			return err
		}
		rows = Lines(g, core.CleanString(compte), core.CleanString(nature, true))
		return nil
	})
	return rows, err
}

// RealByNature sums the real amount of the charge lines and of the produit lines of `grants`.
// Only explicit natures count here: a line without a nature is in neither sum.
func RealByNature(grants []Grant) (charges, produits decimal.Decimal) {
	for _, g := range uniqueGrants(grants) {
		for _, l := range g.Lines {
			switch core.CleanString(l.Nature, true) {
			case NatureCharge:
				charges = charges.Add(money.Dec(l.Real))
			case NatureProduit:
				produits = produits.Add(money.Dec(l.Real))
			}
		}
	}
	return charges, produits
}
