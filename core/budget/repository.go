package budget

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
)

var (
	// errors
	ErrGrantNotFound   = errors.New("subvention introuvable")
	ErrProjectNotFound = errors.New("projet introuvable")

	ErrNoLines     = core.NewValidationError(errors.New("aucune ligne à ventiler"))
	ErrZeroBase    = core.NewValidationError(errors.New("impossible : total des bases = 0"))
	ErrUnknownMode = core.NewValidationError(errors.New("mode de ventilation inconnu"))
)

// Repository gives read access to grants and projects. Every method runs in the transaction carried by `ctx`,
// if any (see core.Transactor).
type Repository interface {
	// QueryGrants returns the grants matching `filter`, with their lines, expenses and project links loaded.
	QueryGrants(ctx context.Context, filter GrantFilter) ([]Grant, error)
	GetGrant(ctx context.Context, id int) (Grant, error)
	QueryProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
	GetProject(ctx context.Context, id int) (Project, error)
	// ExerciseYears returns the distinct exercise years of the non-archived grants of `secteurs`,
	// latest first. A nil `secteurs` means every sector.
	ExerciseYears(ctx context.Context, secteurs []string) ([]int, error)

	CreateLine(ctx context.Context, line BudgetLine) (BudgetLine, error)
	// UpdateLineReals sets the real amount of the given lines of grant `grantID`.
	UpdateLineReals(ctx context.Context, grantID int, reals map[int]float64) error
}

func matchSecteur(secteurs []string, secteur string) bool {
	if secteurs == nil {
		return true
	}
	for _, s := range secteurs {
		if strings.EqualFold(s, secteur) {
			return true
		}
	}
	return false
}

// Match reports whether `g` passes the filter. Stores that cannot express the filter in their query language
// may use it to filter in memory.
func (gf GrantFilter) Match(g Grant) bool {
	if !gf.IncludeArchived && g.Archived {
		return false
	}
	if gf.Year != 0 && g.Year != gf.Year {
		return false
	}
	if gf.ProjectID != 0 && !g.LinkedTo(gf.ProjectID) {
		return false
	}
	return matchSecteur(gf.Secteurs, g.Secteur)
}

func (pf ProjectFilter) Match(p Project) bool {
	if pf.ID != 0 && p.ID != pf.ID {
		return false
	}
	return matchSecteur(pf.Secteurs, p.Secteur)
}
