package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core/activity"
)

type (
	workshopRow struct {
		ID      int    `db:"id"`
		Name    string `db:"nom"`
		Secteur string `db:"secteur"`
		Deleted bool   `db:"is_deleted"`
	}

	sessionRow struct {
		ID          int       `db:"id"`
		WorkshopID  int       `db:"atelier_id"`
		SessionDate null.Time `db:"date_session"`
		RdvDate     null.Time `db:"rdv_date"`
		Status      string    `db:"statut"`
		Capacity    null.Int  `db:"capacite"`
		Deleted     bool      `db:"is_deleted"`
	}

	presenceRow struct {
		ID            int `db:"id"`
		SessionID     int `db:"session_id"`
		ParticipantID int `db:"participant_id"`
	}

	participantRow struct {
		ID           int       `db:"id"`
		LastName     string    `db:"nom"`
		FirstName    string    `db:"prenom"`
		City         string    `db:"ville"`
		Neighborhood string    `db:"quartier"`
		BirthDate    null.Time `db:"date_naissance"`
		Gender       string    `db:"genre"`
		PublicType   string    `db:"type_public"`
	}
)

func (r participantRow) toModel() activity.Participant {
	return activity.Participant{
		ID:           r.ID,
		LastName:     r.LastName,
		FirstName:    r.FirstName,
		City:         r.City,
		Neighborhood: r.Neighborhood,
		BirthDate:    r.BirthDate,
		Gender:       r.Gender,
		PublicType:   r.PublicType,
	}
}

var participantColumns = []string{"id", "nom", "prenom", "ville", "quartier", "date_naissance", "genre", "type_public"}

// workshopsSubquery selects the ids of the workshops of `secteurs`.
func workshopsSubquery(secteurs []string) sq.SelectBuilder {
	q := sq.Select("id").From("ateliers_activite")
	if secteurs != nil {
		q = q.Where(secteurIn("secteur", secteurs))
	}
	return q
}

func datasetQueries(secteurs []string) (workshops, sessions, presences, participants sq.SelectBuilder) {
	workshops = psql.Select("id", "nom", "secteur", "is_deleted").From("ateliers_activite").OrderBy("id")
	if secteurs != nil {
		workshops = workshops.Where(secteurIn("secteur", secteurs))
	}

	wsql, wargs := subquery(workshopsSubquery(secteurs))
	sessions = psql.Select("id", "atelier_id", "date_session", "rdv_date", "statut", "capacite", "is_deleted").
		From("sessions_activite").
		Where("atelier_id IN ("+wsql+")", wargs...).
		OrderBy("id")

	ssql := "SELECT s.id FROM sessions_activite s WHERE s.atelier_id IN (" + wsql + ")"
	presences = psql.Select("id", "session_id", "participant_id").From("presences_activite").
		Where("session_id IN ("+ssql+")", wargs...).
		OrderBy("id")

	participants = psql.Select(participantColumns...).From("participants").
		Where("id IN (SELECT participant_id FROM presences_activite WHERE session_id IN ("+ssql+"))", wargs...).
		OrderBy("id")
	return workshops, sessions, presences, participants
}

// subquery renders `b` with ? placeholders, to be nested into a dollar-numbered query.
func subquery(b sq.SelectBuilder) (string, []interface{}) {
	query, args, err := b.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		// only an empty select fails
		panic(err)
	}
	return query, args
}

type ActivityRepository struct {
	db *DB
}

var _ activity.Repository = (*ActivityRepository)(nil)

func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (repo *ActivityRepository) LoadDataset(ctx context.Context, secteurs []string) (activity.Dataset, error) {
	wq, sessq, presq, partq := datasetQueries(secteurs)

	var workshops []workshopRow
	if err := repo.db.selectAll(ctx, &workshops, wq); err != nil {
		return activity.Dataset{}, errors.Wrap(err, "selecting workshops")
	}
	var sessions []sessionRow
	if err := repo.db.selectAll(ctx, &sessions, sessq); err != nil {
		return activity.Dataset{}, errors.Wrap(err, "selecting sessions")
	}
	var presences []presenceRow
	if err := repo.db.selectAll(ctx, &presences, presq); err != nil {
		return activity.Dataset{}, errors.Wrap(err, "selecting presences")
	}
	var participants []participantRow
	if err := repo.db.selectAll(ctx, &participants, partq); err != nil {
		return activity.Dataset{}, errors.Wrap(err, "selecting participants")
	}

	ds := activity.Dataset{
		Workshops:    make([]activity.Workshop, len(workshops)),
		Sessions:     make([]activity.Session, len(sessions)),
		Presences:    make([]activity.Presence, len(presences)),
		Participants: make([]activity.Participant, len(participants)),
	}
	for i, r := range workshops {
		ds.Workshops[i] = activity.Workshop(r)
	}
	for i, r := range sessions {
		ds.Sessions[i] = activity.Session(r)
	}
	for i, r := range presences {
		ds.Presences[i] = activity.Presence(r)
	}
	for i, r := range participants {
		ds.Participants[i] = r.toModel()
	}
	return ds, nil
}

func (repo *ActivityRepository) GetParticipant(ctx context.Context, id int) (activity.Participant, error) {
	var row participantRow
	q := psql.Select(participantColumns...).From("participants").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q, activity.ErrParticipantNotFound); err != nil {
		return activity.Participant{}, err
	}
	return row.toModel(), nil
}

func participantSecteursQuery(id int) sq.SelectBuilder {
	return psql.Select("DISTINCT a.secteur").
		From("presences_activite p").
		Join("sessions_activite s ON s.id = p.session_id").
		Join("ateliers_activite a ON a.id = s.atelier_id").
		Where(sq.Eq{"p.participant_id": id}).
		Where(sq.NotEq{"a.secteur": ""}).
		OrderBy("a.secteur")
}

func (repo *ActivityRepository) ParticipantSecteurs(ctx context.Context, id int) ([]string, error) {
	secteurs := make([]string, 0)
	if err := repo.db.selectAll(ctx, &secteurs, participantSecteursQuery(id)); err != nil {
		return nil, errors.Wrap(err, "selecting participant sectors")
	}
	return secteurs, nil
}

func (repo *ActivityRepository) DeleteParticipant(ctx context.Context, id int) error {
	if _, err := repo.db.execute(ctx, psql.Delete("presences_activite").Where(sq.Eq{"participant_id": id})); err != nil {
		return errors.Wrap(err, "deleting presences")
	}
	n, err := repo.db.execute(ctx, psql.Delete("participants").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting participant")
	}
	if n == 0 {
		return activity.ErrParticipantNotFound
	}
	return nil
}
