package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core/objective"
)

type objectiveRow struct {
	ID            int           `db:"id"`
	Title         string        `db:"titre"`
	Type          string        `db:"type"`
	ParentID      null.Int      `db:"parent_id"`
	ProjectID     null.Int      `db:"projet_id"`
	WorkshopID    null.Int      `db:"atelier_id"`
	SessionID     null.Int      `db:"session_id"`
	Threshold     float64       `db:"seuil_validation"`
	CompetenceIDs pq.Int64Array `db:"competence_ids"`
}

var objectiveColumns = []string{"id", "titre", "type", "parent_id", "projet_id", "atelier_id", "session_id", "seuil_validation", "competence_ids"}

func (r objectiveRow) toModel() objective.Objective {
	o := objective.Objective{
		ID:            r.ID,
		Title:         r.Title,
		Type:          r.Type,
		ParentID:      r.ParentID,
		ProjectID:     r.ProjectID.Int,
		WorkshopID:    r.WorkshopID,
		SessionID:     r.SessionID,
		Threshold:     r.Threshold,
		CompetenceIDs: make([]int, len(r.CompetenceIDs)),
	}
	for i, id := range r.CompetenceIDs {
		o.CompetenceIDs[i] = int(id)
	}
	return o
}

type ObjectiveRepository struct {
	db *DB
}

var _ objective.Repository = (*ObjectiveRepository)(nil)

func NewObjectiveRepository(db *DB) *ObjectiveRepository {
	return &ObjectiveRepository{db: db}
}

func (repo *ObjectiveRepository) GetObjective(ctx context.Context, id int) (objective.Objective, error) {
	var row objectiveRow
	q := psql.Select(objectiveColumns...).From("objectifs").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q, objective.ErrNotFound); err != nil {
		return objective.Objective{}, err
	}
	return row.toModel(), nil
}

func (repo *ObjectiveRepository) QueryObjectives(ctx context.Context, projectID int) ([]objective.Objective, error) {
	var rows []objectiveRow
	q := psql.Select(objectiveColumns...).From("objectifs").Where(sq.Eq{"projet_id": projectID}).OrderBy("id")
	if err := repo.db.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting objectives")
	}
	objectives := make([]objective.Objective, len(rows))
	for i, r := range rows {
		objectives[i] = r.toModel()
	}
	return objectives, nil
}

func (repo *ObjectiveRepository) SessionAttendees(ctx context.Context, sessionIDs []int) (map[int][]int, error) {
	var rows []presenceRow
	q := psql.Select("id", "session_id", "participant_id").From("presences_activite").
		Where(sq.Eq{"session_id": sessionIDs}).
		OrderBy("session_id", "participant_id")
	if err := repo.db.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting attendees")
	}
	attendees := make(map[int][]int, len(sessionIDs))
	for _, r := range rows {
		attendees[r.SessionID] = append(attendees[r.SessionID], r.ParticipantID)
	}
	return attendees, nil
}

func (repo *ObjectiveRepository) QueryEvaluations(ctx context.Context, sessionIDs []int) ([]objective.Evaluation, error) {
	evaluations := make([]objective.Evaluation, 0)
	q := psql.Select("session_id AS sessionid", "participant_id AS participantid", "competence_id AS competenceid", "etat AS state").
		From("evaluations").
		Where(sq.Eq{"session_id": sessionIDs}).
		OrderBy("id")
	if err := repo.db.selectAll(ctx, &evaluations, q); err != nil {
		return nil, errors.Wrap(err, "selecting evaluations")
	}
	return evaluations, nil
}
