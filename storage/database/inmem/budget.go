package inmemdb

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/budget"
)

type (
	grantProject struct {
		ID        int
		GrantID   int
		ProjectID int
	}

	projectWorkshop struct {
		ID         int
		ProjectID  int
		WorkshopID int
	}
)

type BudgetRepository struct {
	db *DB
}

var _ budget.Repository = (*BudgetRepository)(nil)

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// loadGrant attaches the lines, expenses and project links of `g`.
func loadGrant(txn *memdb.Txn, g budget.Grant) (budget.Grant, error) {
	g.Lines = make([]budget.BudgetLine, 0)
	err := each(txn, tblLines, idxGrant, func(obj interface{}) {
		g.Lines = append(g.Lines, *obj.(*budget.BudgetLine))
	}, g.ID)
	if err != nil {
		return g, err
	}
	sort.Slice(g.Lines, func(i, j int) bool { return g.Lines[i].ID < g.Lines[j].ID })

	for i := range g.Lines {
		l := &g.Lines[i]
		l.Expenses = nil
		err := each(txn, tblExpenses, idxLine, func(obj interface{}) {
			l.Expenses = append(l.Expenses, *obj.(*budget.Expense))
		}, l.ID)
		if err != nil {
			return g, err
		}
		sort.Slice(l.Expenses, func(a, b int) bool { return l.Expenses[a].ID < l.Expenses[b].ID })
	}

	g.ProjectIDs = make([]int, 0)
	err = each(txn, tblGrantProjects, idxGrant, func(obj interface{}) {
		g.ProjectIDs = append(g.ProjectIDs, obj.(*grantProject).ProjectID)
	}, g.ID)
	sort.Ints(g.ProjectIDs)
	return g, err
}

func loadProject(txn *memdb.Txn, p budget.Project) (budget.Project, error) {
	p.WorkshopIDs = make([]int, 0)
	err := each(txn, tblProjectWorkshops, idxProject, func(obj interface{}) {
		p.WorkshopIDs = append(p.WorkshopIDs, obj.(*projectWorkshop).WorkshopID)
	}, p.ID)
	sort.Ints(p.WorkshopIDs)
	return p, err
}

func (repo *BudgetRepository) QueryGrants(ctx context.Context, filter budget.GrantFilter) ([]budget.Grant, error) {
	grants := make([]budget.Grant, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		var rows []budget.Grant
		collect := func(obj interface{}) { rows = append(rows, *obj.(*budget.Grant)) }

		var err error
		if filter.Year != 0 {
			err = each(txn, tblGrants, idxYear, collect, filter.Year)
		} else {
			err = each(txn, tblGrants, idxID, collect)
		}
		if err != nil {
			return err
		}

		for _, g := range rows {
			if g, err = loadGrant(txn, g); err != nil {
				return err
			}
			if filter.Match(g) {
				grants = append(grants, g)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	return grants, nil
}

func (repo *BudgetRepository) GetGrant(ctx context.Context, id int) (budget.Grant, error) {
	var g budget.Grant
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblGrants, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return budget.ErrGrantNotFound
		}
		g, err = loadGrant(txn, *obj.(*budget.Grant))
		return err
	})
	return g, err
}

func (repo *BudgetRepository) QueryProjects(ctx context.Context, filter budget.ProjectFilter) ([]budget.Project, error) {
	projects := make([]budget.Project, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		var rows []budget.Project
		err := each(txn, tblProjects, idxID, func(obj interface{}) {
			rows = append(rows, *obj.(*budget.Project))
		})
		if err != nil {
			return err
		}
		for _, p := range rows {
			if !filter.Match(p) {
				continue
			}
			if p, err = loadProject(txn, p); err != nil {
				return err
			}
			projects = append(projects, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (repo *BudgetRepository) GetProject(ctx context.Context, id int) (budget.Project, error) {
	var p budget.Project
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblProjects, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return budget.ErrProjectNotFound
		}
		p, err = loadProject(txn, *obj.(*budget.Project))
		return err
	})
	return p, err
}

func (repo *BudgetRepository) ExerciseYears(ctx context.Context, secteurs []string) ([]int, error) {
	filter := budget.GrantFilter{Secteurs: secteurs}
	seen := make(map[int]bool)
	years := make([]int, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		return each(txn, tblGrants, idxID, func(obj interface{}) {
			g := obj.(*budget.Grant)
			if g.Year != 0 && !seen[g.Year] && filter.Match(*g) {
				seen[g.Year] = true
				years = append(years, g.Year)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (repo *BudgetRepository) CreateLine(ctx context.Context, line budget.BudgetLine) (budget.BudgetLine, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblGrants, line.GrantID)
		if err != nil {
			return err
		}
		if obj == nil {
			return budget.ErrGrantNotFound
		}
		line.ID = repo.db.nextID(tblLines)
		row := line
		row.Expenses = nil
		return insert(txn, tblLines, &row)
	})
	if err != nil {
		return budget.BudgetLine{}, err
	}
	return line, nil
}

func (repo *BudgetRepository) UpdateLineReals(ctx context.Context, grantID int, reals map[int]float64) error {
	return repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		for id, amount := range reals {
			obj, err := first(txn, tblLines, id)
			if err != nil {
				return err
			}
			if obj == nil || obj.(*budget.BudgetLine).GrantID != grantID {
				return errors.Errorf("ligne %d introuvable pour la subvention %d", id, grantID)
			}
			// stored objects are immutable, insert a modified copy
			row := *obj.(*budget.BudgetLine)
			row.Real = amount
			if err := insert(txn, tblLines, &row); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateGrant stores `g` with its lines, expenses and project links. IDs left to 0 are generated.
func (repo *BudgetRepository) CreateGrant(ctx context.Context, g budget.Grant) (budget.Grant, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		g.ID = repo.db.assignID(tblGrants, g.ID)
		row := g
		row.Lines, row.ProjectIDs = nil, nil
		if err := insert(txn, tblGrants, &row); err != nil {
			return err
		}

		for i := range g.Lines {
			l := &g.Lines[i]
			l.ID = repo.db.assignID(tblLines, l.ID)
			l.GrantID = g.ID
			lrow := *l
			lrow.Expenses = nil
			if err := insert(txn, tblLines, &lrow); err != nil {
				return err
			}
			for j := range l.Expenses {
				e := &l.Expenses[j]
				e.ID = repo.db.assignID(tblExpenses, e.ID)
				e.LineID = l.ID
				erow := *e
				if err := insert(txn, tblExpenses, &erow); err != nil {
					return err
				}
			}
		}

		for _, pid := range g.ProjectIDs {
			link := &grantProject{ID: repo.db.nextID(tblGrantProjects), GrantID: g.ID, ProjectID: pid}
			if err := insert(txn, tblGrantProjects, link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return budget.Grant{}, err
	}
	return g, nil
}

// CreateProject stores `p` and its workshop links. An ID left to 0 is generated.
func (repo *BudgetRepository) CreateProject(ctx context.Context, p budget.Project) (budget.Project, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		p.ID = repo.db.assignID(tblProjects, p.ID)
		row := p
		row.WorkshopIDs = nil
		if err := insert(txn, tblProjects, &row); err != nil {
			return err
		}
		for _, wid := range p.WorkshopIDs {
			link := &projectWorkshop{ID: repo.db.nextID(tblProjectWorkshops), ProjectID: p.ID, WorkshopID: wid}
			if err := insert(txn, tblProjectWorkshops, link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return budget.Project{}, err
	}
	return p, nil
}
