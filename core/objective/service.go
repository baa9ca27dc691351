package objective

import (
	"context"
	"strconv"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/scope"
)

type (
	Repository interface {
		GetObjective(ctx context.Context, id int) (Objective, error)
		QueryObjectives(ctx context.Context, projectID int) ([]Objective, error)
		// SessionAttendees returns the participants present at each of `sessionIDs`.
		SessionAttendees(ctx context.Context, sessionIDs []int) (map[int][]int, error)
		QueryEvaluations(ctx context.Context, sessionIDs []int) ([]Evaluation, error)
	}

	// Projects checks a project is visible in a scope.
	Projects interface {
		Project(ctx context.Context, sc scope.Scope, id int) (budget.Project, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		projects Projects
	}
)

func NewService(repo Repository, tx core.Transactor, projects Projects) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(projects, "projects"),
	).CheckAndPanic()
	return &Service{repo: repo, tx: tx, projects: projects}
}

// Evaluate computes the success tree rooted at objective `id`.
func (svc *Service) Evaluate(ctx context.Context, sc scope.Scope, id int) (Result, error) {
	var res Result
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		o, err := svc.repo.GetObjective(ctx, id)
		if err != nil {
			return err
		}
		if o.ProjectID == 0 {
			if !sc.IsAll() {
				return core.NewForbiddenError("objectif hors périmètre: " + strconv.Itoa(id))
			}
		} else if _, err := svc.projects.Project(ctx, sc, o.ProjectID); err != nil {
			return err
		}

		forest, err := svc.forest(ctx, o)
		if err != nil {
			return err
		}
		res, err = NewPropagator(forest).Evaluate(id)
		return err
	})
	return res, err
}

func (svc *Service) forest(ctx context.Context, root Objective) (Forest, error) {
	objectives := []Objective{root}
	if root.ProjectID != 0 {
		var err error
		if objectives, err = svc.repo.QueryObjectives(ctx, root.ProjectID); err != nil {
			return Forest{}, errors.Wrap(err, "querying objectives")
		}
	}

	var sessionIDs []int
	seen := make(map[int]bool)
	for _, o := range objectives {
		if o.IsLeaf() && !seen[o.SessionID.Int] {
			seen[o.SessionID.Int] = true
			sessionIDs = append(sessionIDs, o.SessionID.Int)
		}
	}
	f := Forest{Objectives: objectives}
	if len(sessionIDs) == 0 {
		return f, nil
	}

	var err error
	if f.Attendees, err = svc.repo.SessionAttendees(ctx, sessionIDs); err != nil {
		return Forest{}, errors.Wrap(err, "querying attendees")
	}
	if f.Evaluations, err = svc.repo.QueryEvaluations(ctx, sessionIDs); err != nil {
		return Forest{}, errors.Wrap(err, "querying evaluations")
	}
	return f, nil
}
