package inmemdb

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/indicator"
)

type IndicatorRepository struct {
	db *DB
}

var _ indicator.Repository = (*IndicatorRepository)(nil)

func NewIndicatorRepository(db *DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

func (repo *IndicatorRepository) QueryIndicators(ctx context.Context, projectID int) ([]indicator.Indicator, error) {
	indicators := make([]indicator.Indicator, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		return each(txn, tblIndicators, idxProject, func(obj interface{}) {
			indicators = append(indicators, *obj.(*indicator.Indicator))
		}, projectID)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(indicators, func(i, j int) bool { return indicators[i].ID < indicators[j].ID })
	return indicators, nil
}

func (repo *IndicatorRepository) GetIndicator(ctx context.Context, id int) (indicator.Indicator, error) {
	var ind indicator.Indicator
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblIndicators, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return indicator.ErrNotFound
		}
		ind = *obj.(*indicator.Indicator)
		return nil
	})
	return ind, err
}

func (repo *IndicatorRepository) CreateIndicator(ctx context.Context, ind indicator.Indicator) (indicator.Indicator, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		ind.ID = repo.db.assignID(tblIndicators, ind.ID)
		row := ind
		return insert(txn, tblIndicators, &row)
	})
	if err != nil {
		return indicator.Indicator{}, err
	}
	return ind, nil
}

func (repo *IndicatorRepository) UpdateIndicator(ctx context.Context, ind indicator.Indicator) (indicator.Indicator, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblIndicators, ind.ID)
		if err != nil {
			return err
		}
		if obj == nil {
			return indicator.ErrNotFound
		}
		row := ind
		return insert(txn, tblIndicators, &row)
	})
	if err != nil {
		return indicator.Indicator{}, err
	}
	return ind, nil
}

func (repo *IndicatorRepository) DeleteIndicator(ctx context.Context, id int) error {
	return repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblIndicators, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return indicator.ErrNotFound
		}
		return errors.Wrap(txn.Delete(tblIndicators, obj), "deleting indicator")
	})
}
