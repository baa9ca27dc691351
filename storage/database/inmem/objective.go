package inmemdb

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/objective"
)

type (
	evaluation struct {
		ID int
		objective.Evaluation
	}

	ObjectiveRepository struct {
		db *DB
	}
)

var _ objective.Repository = (*ObjectiveRepository)(nil)

func NewObjectiveRepository(db *DB) *ObjectiveRepository {
	return &ObjectiveRepository{db: db}
}

func (repo *ObjectiveRepository) GetObjective(ctx context.Context, id int) (objective.Objective, error) {
	var o objective.Objective
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblObjectives, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return objective.ErrNotFound
		}
		o = *obj.(*objective.Objective)
		return nil
	})
	return o, err
}

func (repo *ObjectiveRepository) QueryObjectives(ctx context.Context, projectID int) ([]objective.Objective, error) {
	objectives := make([]objective.Objective, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		return each(txn, tblObjectives, idxProject, func(obj interface{}) {
			objectives = append(objectives, *obj.(*objective.Objective))
		}, projectID)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objectives, func(i, j int) bool { return objectives[i].ID < objectives[j].ID })
	return objectives, nil
}

func (repo *ObjectiveRepository) SessionAttendees(ctx context.Context, sessionIDs []int) (map[int][]int, error) {
	attendees := make(map[int][]int, len(sessionIDs))
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		for _, sid := range sessionIDs {
			err := each(txn, tblPresences, idxSession, func(obj interface{}) {
				attendees[sid] = append(attendees[sid], obj.(*activity.Presence).ParticipantID)
			}, sid)
			if err != nil {
				return err
			}
			sort.Ints(attendees[sid])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attendees, nil
}

func (repo *ObjectiveRepository) QueryEvaluations(ctx context.Context, sessionIDs []int) ([]objective.Evaluation, error) {
	var rows []evaluation
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		for _, sid := range sessionIDs {
			err := each(txn, tblEvaluations, idxSession, func(obj interface{}) {
				rows = append(rows, *obj.(*evaluation))
			}, sid)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	evaluations := make([]objective.Evaluation, len(rows))
	for i, row := range rows {
		evaluations[i] = row.Evaluation
	}
	return evaluations, nil
}

// CreateObjective stores `o`. An ID left to 0 is generated.
func (repo *ObjectiveRepository) CreateObjective(ctx context.Context, o objective.Objective) (objective.Objective, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		o.ID = repo.db.assignID(tblObjectives, o.ID)
		row := o
		row.CompetenceIDs = append([]int(nil), o.CompetenceIDs...)
		return insert(txn, tblObjectives, &row)
	})
	if err != nil {
		return objective.Objective{}, err
	}
	return o, nil
}

func (repo *ObjectiveRepository) CreateEvaluation(ctx context.Context, e objective.Evaluation) error {
	return repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		return insert(txn, tblEvaluations, &evaluation{ID: repo.db.nextID(tblEvaluations), Evaluation: e})
	})
}
