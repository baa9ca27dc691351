package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core/budget"
)

type (
	grantRow struct {
		ID        int     `db:"id"`
		Name      string  `db:"nom"`
		Secteur   string  `db:"secteur"`
		Year      int     `db:"annee_exercice"`
		Requested float64 `db:"montant_demande"`
		Allocated float64 `db:"montant_attribue"`
		Received  float64 `db:"montant_recu"`
		Archived  bool    `db:"est_archive"`
	}

	lineRow struct {
		ID      int     `db:"id"`
		GrantID int     `db:"subvention_id"`
		Nature  string  `db:"nature"`
		Compte  string  `db:"compte"`
		Label   string  `db:"libelle"`
		Base    float64 `db:"montant_base"`
		Real    float64 `db:"montant_reel"`
	}

	expenseRow struct {
		ID     int       `db:"id"`
		LineID int       `db:"ligne_id"`
		Label  string    `db:"libelle"`
		Amount float64   `db:"montant"`
		PaidOn null.Time `db:"date_paiement"`
		Kind   string    `db:"type_depense"`
	}

	projectRow struct {
		ID          int    `db:"id"`
		Name        string `db:"nom"`
		Secteur     string `db:"secteur"`
		Description string `db:"description"`
	}

	link struct {
		From int `db:"from_id"`
		To   int `db:"to_id"`
	}
)

func (r grantRow) toModel() budget.Grant {
	return budget.Grant{
		ID:         r.ID,
		Name:       r.Name,
		Secteur:    r.Secteur,
		Year:       r.Year,
		Requested:  r.Requested,
		Allocated:  r.Allocated,
		Received:   r.Received,
		Archived:   r.Archived,
		Lines:      make([]budget.BudgetLine, 0),
		ProjectIDs: make([]int, 0),
	}
}

func (r lineRow) toModel() budget.BudgetLine {
	return budget.BudgetLine{ID: r.ID, GrantID: r.GrantID, Nature: r.Nature, Compte: r.Compte, Label: r.Label, Base: r.Base, Real: r.Real}
}

func (r expenseRow) toModel() budget.Expense {
	return budget.Expense{ID: r.ID, LineID: r.LineID, Label: r.Label, Amount: r.Amount, PaidOn: r.PaidOn, Kind: r.Kind}
}

var (
	grantColumns   = []string{"id", "nom", "secteur", "annee_exercice", "montant_demande", "montant_attribue", "montant_recu", "est_archive"}
	lineColumns    = []string{"id", "subvention_id", "nature", "compte", "libelle", "montant_base", "montant_reel"}
	expenseColumns = []string{"id", "ligne_id", "libelle", "montant", "date_paiement", "type_depense"}
	projectColumns = []string{"id", "nom", "secteur", "description"}
)

// grantsQuery selects the grants of `filter`.
func grantsQuery(filter budget.GrantFilter) sq.SelectBuilder {
	q := psql.Select(grantColumns...).From("subventions").OrderBy("id")
	if !filter.IncludeArchived {
		q = q.Where(sq.Eq{"est_archive": false})
	}
	if filter.Year != 0 {
		q = q.Where(sq.Eq{"annee_exercice": filter.Year})
	}
	if filter.ProjectID != 0 {
		q = q.Where("id IN (SELECT subvention_id FROM subvention_projets WHERE projet_id = ?)", filter.ProjectID)
	}
	if filter.Secteurs != nil {
		q = q.Where(secteurIn("secteur", filter.Secteurs))
	}
	return q
}

func projectsQuery(filter budget.ProjectFilter) sq.SelectBuilder {
	q := psql.Select(projectColumns...).From("projets").OrderBy("id")
	if filter.ID != 0 {
		q = q.Where(sq.Eq{"id": filter.ID})
	}
	if filter.Secteurs != nil {
		q = q.Where(secteurIn("secteur", filter.Secteurs))
	}
	return q
}

func yearsQuery(secteurs []string) sq.SelectBuilder {
	q := psql.Select("DISTINCT annee_exercice").From("subventions").
		Where(sq.Eq{"est_archive": false}).
		Where(sq.NotEq{"annee_exercice": 0}).
		OrderBy("annee_exercice DESC")
	if secteurs != nil {
		q = q.Where(secteurIn("secteur", secteurs))
	}
	return q
}

type BudgetRepository struct {
	db *DB
}

var _ budget.Repository = (*BudgetRepository)(nil)

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// attach loads the lines, expenses and project links of `grants`, in place.
func (repo *BudgetRepository) attach(ctx context.Context, grants []budget.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	ids := make([]int, len(grants))
	byID := make(map[int]*budget.Grant, len(grants))
	for i := range grants {
		ids[i] = grants[i].ID
		byID[grants[i].ID] = &grants[i]
	}

	var lines []lineRow
	q := psql.Select(lineColumns...).From("lignes_budget").Where(sq.Eq{"subvention_id": ids}).OrderBy("id")
	if err := repo.db.selectAll(ctx, &lines, q); err != nil {
		return errors.Wrap(err, "selecting lines")
	}
	lineIDs := make([]int, len(lines))
	for i, l := range lines {
		lineIDs[i] = l.ID
	}

	expenses := make(map[int][]budget.Expense)
	if len(lineIDs) > 0 {
		var rows []expenseRow
		q := psql.Select(expenseColumns...).From("depenses").Where(sq.Eq{"ligne_id": lineIDs}).OrderBy("id")
		if err := repo.db.selectAll(ctx, &rows, q); err != nil {
			return errors.Wrap(err, "selecting expenses")
		}
		for _, r := range rows {
			expenses[r.LineID] = append(expenses[r.LineID], r.toModel())
		}
	}
	for _, r := range lines {
		l := r.toModel()
		l.Expenses = expenses[l.ID]
		g := byID[l.GrantID]
		g.Lines = append(g.Lines, l)
	}

	var links []link
	lq := psql.Select("subvention_id AS from_id", "projet_id AS to_id").From("subvention_projets").
		Where(sq.Eq{"subvention_id": ids}).OrderBy("subvention_id", "projet_id")
	if err := repo.db.selectAll(ctx, &links, lq); err != nil {
		return errors.Wrap(err, "selecting grant projects")
	}
	for _, lk := range links {
		g := byID[lk.From]
		g.ProjectIDs = append(g.ProjectIDs, lk.To)
	}
	return nil
}

func (repo *BudgetRepository) QueryGrants(ctx context.Context, filter budget.GrantFilter) ([]budget.Grant, error) {
	var rows []grantRow
	if err := repo.db.selectAll(ctx, &rows, grantsQuery(filter)); err != nil {
		return nil, errors.Wrap(err, "selecting grants")
	}
	grants := make([]budget.Grant, len(rows))
	for i, r := range rows {
		grants[i] = r.toModel()
	}
	if err := repo.attach(ctx, grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (repo *BudgetRepository) GetGrant(ctx context.Context, id int) (budget.Grant, error) {
	var row grantRow
	q := psql.Select(grantColumns...).From("subventions").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q, budget.ErrGrantNotFound); err != nil {
		return budget.Grant{}, err
	}
	grants := []budget.Grant{row.toModel()}
	if err := repo.attach(ctx, grants); err != nil {
		return budget.Grant{}, err
	}
	return grants[0], nil
}

func (repo *BudgetRepository) workshopLinks(ctx context.Context, projects []budget.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int, len(projects))
	byID := make(map[int]*budget.Project, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
		byID[projects[i].ID] = &projects[i]
	}
	var links []link
	q := psql.Select("projet_id AS from_id", "atelier_id AS to_id").From("projet_ateliers").
		Where(sq.Eq{"projet_id": ids}).OrderBy("projet_id", "atelier_id")
	if err := repo.db.selectAll(ctx, &links, q); err != nil {
		return errors.Wrap(err, "selecting project workshops")
	}
	for _, lk := range links {
		p := byID[lk.From]
		p.WorkshopIDs = append(p.WorkshopIDs, lk.To)
	}
	return nil
}

func (repo *BudgetRepository) QueryProjects(ctx context.Context, filter budget.ProjectFilter) ([]budget.Project, error) {
	var rows []projectRow
	if err := repo.db.selectAll(ctx, &rows, projectsQuery(filter)); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}
	projects := make([]budget.Project, len(rows))
	for i, r := range rows {
		projects[i] = budget.Project{ID: r.ID, Name: r.Name, Secteur: r.Secteur, Description: r.Description, WorkshopIDs: make([]int, 0)}
	}
	if err := repo.workshopLinks(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (repo *BudgetRepository) GetProject(ctx context.Context, id int) (budget.Project, error) {
	var row projectRow
	if err := repo.db.get(ctx, &row, projectsQuery(budget.ProjectFilter{ID: id}), budget.ErrProjectNotFound); err != nil {
		return budget.Project{}, err
	}
	projects := []budget.Project{{ID: row.ID, Name: row.Name, Secteur: row.Secteur, Description: row.Description, WorkshopIDs: make([]int, 0)}}
	if err := repo.workshopLinks(ctx, projects); err != nil {
		return budget.Project{}, err
	}
	return projects[0], nil
}

func (repo *BudgetRepository) ExerciseYears(ctx context.Context, secteurs []string) ([]int, error) {
	years := make([]int, 0)
	if err := repo.db.selectAll(ctx, &years, yearsQuery(secteurs)); err != nil {
		return nil, errors.Wrap(err, "selecting exercise years")
	}
	return years, nil
}

func (repo *BudgetRepository) CreateLine(ctx context.Context, line budget.BudgetLine) (budget.BudgetLine, error) {
	var found bool
	q := psql.Select("true").From("subventions").Where(sq.Eq{"id": line.GrantID})
	if err := repo.db.get(ctx, &found, q, budget.ErrGrantNotFound); err != nil {
		return budget.BudgetLine{}, err
	}

	id, err := repo.db.insert(ctx, psql.Insert("lignes_budget").
		Columns("subvention_id", "nature", "compte", "libelle", "montant_base", "montant_reel").
		Values(line.GrantID, line.Nature, line.Compte, line.Label, line.Base, line.Real))
	if err != nil {
		return budget.BudgetLine{}, errors.Wrap(err, "inserting line")
	}
	line.ID = id
	line.Expenses = nil
	return line, nil
}

func (repo *BudgetRepository) UpdateLineReals(ctx context.Context, grantID int, reals map[int]float64) error {
	for id, amount := range reals {
		n, err := repo.db.execute(ctx, psql.Update("lignes_budget").
			Set("montant_reel", amount).
			Where(sq.Eq{"id": id, "subvention_id": grantID}))
		if err != nil {
			return errors.Wrapf(err, "updating line %d", id)
		}
		if n != 1 {
			return errors.Errorf("ligne %d introuvable pour la subvention %d", id, grantID)
		}
	}
	return nil
}
