package indicator

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/scope"
)

var ErrNotFound = errors.New("indicateur introuvable")

type (
	Repository interface {
		QueryIndicators(ctx context.Context, projectID int) ([]Indicator, error)
		GetIndicator(ctx context.Context, id int) (Indicator, error)
		CreateIndicator(ctx context.Context, ind Indicator) (Indicator, error)
		UpdateIndicator(ctx context.Context, ind Indicator) (Indicator, error)
		DeleteIndicator(ctx context.Context, id int) error
	}

	// Finance gives the scoped projects and grants indicators are computed against.
	Finance interface {
		Project(ctx context.Context, sc scope.Scope, id int) (budget.Project, error)
		Grants(ctx context.Context, sc scope.Scope, f budget.Filter) ([]budget.Grant, error)
	}

	// Attendance gives the scoped attendance data.
	Attendance interface {
		Dataset(ctx context.Context, sc scope.Scope) (activity.Dataset, error)
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		finance    Finance
		attendance Attendance
		now        func() time.Time
	}

	// NewIndicator contains information needed to add an indicator to a project.
	NewIndicator struct {
		Code  string `json:"code" validate:"required"`
		Label string `json:"label"`
	}

	Report struct {
		ProjectID  int      `json:"projet_id"`
		Year       int      `json:"annee"`
		Indicators []Result `json:"indicateurs"`
	}
)

func NewService(repo Repository, tx core.Transactor, finance Finance, attendance Attendance) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(finance, "finance"),
		vala.IsNotNil(attendance, "attendance"),
	).CheckAndPanic()
	return &Service{repo: repo, tx: tx, finance: finance, attendance: attendance, now: time.Now}
}

// Evaluate computes the active indicators of project `projectID`, for the page filter `f`.
func (svc *Service) Evaluate(ctx context.Context, sc scope.Scope, projectID int, f budget.Filter) (Report, error) {
	var report Report
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		p, err := svc.finance.Project(ctx, sc, projectID)
		if err != nil {
			return err
		}
		f.ProjectID = p.ID
		f.Clean()
		grants, err := svc.finance.Grants(ctx, sc, f)
		if err != nil {
			return err
		}
		ds, err := svc.attendance.Dataset(ctx, sc)
		if err != nil {
			return err
		}
		indicators, err := svc.repo.QueryIndicators(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "querying indicators")
		}

		dep, rec := budget.RealByNature(grants)
		report = Report{
			ProjectID: p.ID,
			Year:      f.Year,
			Indicators: Evaluate(indicators, Inputs{
				SelectedYear: f.Year,
				WorkshopIDs:  p.WorkshopIDs,
				Dataset:      ds,
				Depenses:     dep,
				Recettes:     rec,
			}),
		}
		return nil
	})
	return report, err
}

// List returns every indicator of project `projectID`, active or not.
func (svc *Service) List(ctx context.Context, sc scope.Scope, projectID int) ([]Indicator, error) {
	var indicators []Indicator
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		p, err := svc.finance.Project(ctx, sc, projectID)
		if err != nil {
			return err
		}
		indicators, err = svc.repo.QueryIndicators(ctx, p.ID)
		return errors.Wrap(err, "querying indicators")
	})
	return indicators, err
}

func hasKind(indicators []Indicator, k Kind) bool {
	for _, ind := range indicators {
		if ind.Kind == k {
			return true
		}
	}
	return false
}

// Add adds an indicator of kind `ni.Code` to project `projectID`. A project has at most one indicator per kind.
// The label defaults to the kind's label.
func (svc *Service) Add(ctx context.Context, sc scope.Scope, projectID int, ni NewIndicator) (Indicator, error) {
	kind, err := ParseKind(ni.Code)
	if err != nil {
		msg := "Indicateur invalide."
		if suggestion, ok := Suggest(ni.Code); ok {
			msg += " Vouliez-vous dire « " + suggestion + " » ?"
		}
		return Indicator{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: msg})
	}
	label := core.CleanString(ni.Label)
	if label == "" {
		label = kind.Label()
	}

	var ind Indicator
	err = core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		p, err := svc.finance.Project(ctx, sc, projectID)
		if err != nil {
			return err
		}
		existing, err := svc.repo.QueryIndicators(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "querying indicators")
		}
		if hasKind(existing, kind) {
			return core.NewValidationError(nil, core.FieldError{Field: "code", Error: "Indicateur déjà présent pour ce projet."})
		}
		ind, err = svc.repo.CreateIndicator(ctx, Indicator{
			ProjectID: p.ID,
			Kind:      kind,
			Label:     label,
			Active:    true,
			Params:    DefaultParams(),
			CreatedAt: svc.now().UTC(),
		})
		return errors.Wrap(err, "creating indicator")
	})
	return ind, err
}

// AddPack adds the kinds of pack `code` the project does not track yet, and returns how many were added.
func (svc *Service) AddPack(ctx context.Context, sc scope.Scope, projectID int, code string) (int, error) {
	pack, ok := PackByCode(code)
	if !ok {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "pack", Error: "Pack invalide."})
	}

	added := 0
	err := core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		p, err := svc.finance.Project(ctx, sc, projectID)
		if err != nil {
			return err
		}
		existing, err := svc.repo.QueryIndicators(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "querying indicators")
		}
		now := svc.now().UTC()
		for _, k := range pack.Kinds {
			if hasKind(existing, k) {
				continue
			}
			ind, err := svc.repo.CreateIndicator(ctx, Indicator{
				ProjectID: p.ID,
				Kind:      k,
				Label:     k.Label(),
				Active:    true,
				Params:    DefaultParams(),
				CreatedAt: now,
			})
			if err != nil {
				return errors.Wrap(err, "creating indicator")
			}
			existing = append(existing, ind)
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// indicator loads indicator `id` and checks its project is in `sc`.
func (svc *Service) indicator(ctx context.Context, sc scope.Scope, id int) (Indicator, error) {
	ind, err := svc.repo.GetIndicator(ctx, id)
	if err != nil {
		return Indicator{}, err
	}
	if _, err := svc.finance.Project(ctx, sc, ind.ProjectID); err != nil {
		return Indicator{}, err
	}
	return ind, nil
}

// SaveParams replaces the params of indicator `id`, and its label when one is given.
func (svc *Service) SaveParams(ctx context.Context, sc scope.Scope, id int, rp RawParams) (Indicator, error) {
	params, err := ParseParams(rp)
	if err != nil {
		return Indicator{}, err
	}

	var ind Indicator
	err = core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		var err error
		if ind, err = svc.indicator(ctx, sc, id); err != nil {
			return err
		}
		if label := core.CleanString(rp.Label); label != "" {
			ind.Label = label
		}
		ind.Params = params
		ind, err = svc.repo.UpdateIndicator(ctx, ind)
		return errors.Wrap(err, "updating indicator")
	})
	return ind, err
}

// Toggle flips the active flag of indicator `id`.
func (svc *Service) Toggle(ctx context.Context, sc scope.Scope, id int) (Indicator, error) {
	var ind Indicator
	err := core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		var err error
		if ind, err = svc.indicator(ctx, sc, id); err != nil {
			return err
		}
		ind.Active = !ind.Active
		ind, err = svc.repo.UpdateIndicator(ctx, ind)
		return errors.Wrap(err, "updating indicator")
	})
	return ind, err
}

func (svc *Service) Delete(ctx context.Context, sc scope.Scope, id int) error {
	return core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		if _, err := svc.indicator(ctx, sc, id); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteIndicator(ctx, id), "deleting indicator")
	})
}
