package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/indicator"
)

type indicatorRow struct {
	ID        int       `db:"id"`
	ProjectID int       `db:"projet_id"`
	Code      string    `db:"code"`
	Label     string    `db:"label"`
	Active    bool      `db:"is_active"`
	Params    []byte    `db:"params"`
	CreatedAt time.Time `db:"created_at"`
}

var indicatorColumns = []string{"id", "projet_id", "code", "label", "is_active", "params", "created_at"}

// toModel keeps rows of a retired code, with an invalid kind that evaluation skips.
func (r indicatorRow) toModel() (indicator.Indicator, error) {
	ind := indicator.Indicator{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Label:     r.Label,
		Active:    r.Active,
		Params:    indicator.DefaultParams(),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if k, err := indicator.ParseKind(r.Code); err == nil {
		ind.Kind = k
	}
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, &ind.Params); err != nil {
			return ind, errors.Wrapf(err, "decoding params of indicator %d", r.ID)
		}
	}
	return ind, nil
}

type IndicatorRepository struct {
	db *DB
}

var _ indicator.Repository = (*IndicatorRepository)(nil)

func NewIndicatorRepository(db *DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

func (repo *IndicatorRepository) QueryIndicators(ctx context.Context, projectID int) ([]indicator.Indicator, error) {
	var rows []indicatorRow
	q := psql.Select(indicatorColumns...).From("projet_indicateurs").Where(sq.Eq{"projet_id": projectID}).OrderBy("id")
	if err := repo.db.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting indicators")
	}
	indicators := make([]indicator.Indicator, len(rows))
	for i, r := range rows {
		ind, err := r.toModel()
		if err != nil {
			return nil, err
		}
		indicators[i] = ind
	}
	return indicators, nil
}

func (repo *IndicatorRepository) GetIndicator(ctx context.Context, id int) (indicator.Indicator, error) {
	var row indicatorRow
	q := psql.Select(indicatorColumns...).From("projet_indicateurs").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q, indicator.ErrNotFound); err != nil {
		return indicator.Indicator{}, err
	}
	return row.toModel()
}

func (repo *IndicatorRepository) CreateIndicator(ctx context.Context, ind indicator.Indicator) (indicator.Indicator, error) {
	params, err := json.Marshal(ind.Params)
	if err != nil {
		return indicator.Indicator{}, errors.Wrap(err, "encoding params")
	}
	id, err := repo.db.insert(ctx, psql.Insert("projet_indicateurs").
		Columns("projet_id", "code", "label", "is_active", "params", "created_at").
		Values(ind.ProjectID, ind.Kind.Code(), ind.Label, ind.Active, string(params), ind.CreatedAt))
	if err != nil {
		return indicator.Indicator{}, errors.Wrap(err, "inserting indicator")
	}
	ind.ID = id
	return ind, nil
}

func (repo *IndicatorRepository) UpdateIndicator(ctx context.Context, ind indicator.Indicator) (indicator.Indicator, error) {
	params, err := json.Marshal(ind.Params)
	if err != nil {
		return indicator.Indicator{}, errors.Wrap(err, "encoding params")
	}
	n, err := repo.db.execute(ctx, psql.Update("projet_indicateurs").
		SetMap(map[string]interface{}{
			"label":     ind.Label,
			"is_active": ind.Active,
			"params":    string(params),
		}).
		Where(sq.Eq{"id": ind.ID}))
	if err != nil {
		return indicator.Indicator{}, errors.Wrap(err, "updating indicator")
	}
	if n == 0 {
		return indicator.Indicator{}, indicator.ErrNotFound
	}
	return ind, nil
}

func (repo *IndicatorRepository) DeleteIndicator(ctx context.Context, id int) error {
	n, err := repo.db.execute(ctx, psql.Delete("projet_indicateurs").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting indicator")
	}
	if n == 0 {
		return indicator.ErrNotFound
	}
	return nil
}
