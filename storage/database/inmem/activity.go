package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/activity"
)

type ActivityRepository struct {
	db *DB
}

var _ activity.Repository = (*ActivityRepository)(nil)

func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (repo *ActivityRepository) LoadDataset(ctx context.Context, secteurs []string) (activity.Dataset, error) {
	ds := activity.Dataset{
		Workshops:    make([]activity.Workshop, 0),
		Sessions:     make([]activity.Session, 0),
		Presences:    make([]activity.Presence, 0),
		Participants: make([]activity.Participant, 0),
	}
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		collect := func(obj interface{}) { ds.Workshops = append(ds.Workshops, *obj.(*activity.Workshop)) }
		if secteurs == nil {
			if err := each(txn, tblWorkshops, idxID, collect); err != nil {
				return err
			}
		}
		seen := make(map[string]bool)
		for _, s := range secteurs {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := each(txn, tblWorkshops, idxSecteur, collect, s); err != nil {
				return err
			}
		}

		for _, w := range ds.Workshops {
			err := each(txn, tblSessions, idxWorkshop, func(obj interface{}) {
				ds.Sessions = append(ds.Sessions, *obj.(*activity.Session))
			}, w.ID)
			if err != nil {
				return err
			}
		}

		referenced := make(map[int]bool)
		for _, s := range ds.Sessions {
			err := each(txn, tblPresences, idxSession, func(obj interface{}) {
				p := *obj.(*activity.Presence)
				ds.Presences = append(ds.Presences, p)
				referenced[p.ParticipantID] = true
			}, s.ID)
			if err != nil {
				return err
			}
		}

		for id := range referenced {
			obj, err := first(txn, tblParticipants, id)
			if err != nil {
				return err
			}
			if obj != nil {
				ds.Participants = append(ds.Participants, *obj.(*activity.Participant))
			}
		}
		return nil
	})
	if err != nil {
		return activity.Dataset{}, err
	}

	sort.Slice(ds.Workshops, func(i, j int) bool { return ds.Workshops[i].ID < ds.Workshops[j].ID })
	sort.Slice(ds.Sessions, func(i, j int) bool { return ds.Sessions[i].ID < ds.Sessions[j].ID })
	sort.Slice(ds.Presences, func(i, j int) bool { return ds.Presences[i].ID < ds.Presences[j].ID })
	sort.Slice(ds.Participants, func(i, j int) bool { return ds.Participants[i].ID < ds.Participants[j].ID })
	return ds, nil
}

func (repo *ActivityRepository) GetParticipant(ctx context.Context, id int) (activity.Participant, error) {
	var p activity.Participant
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		obj, err := first(txn, tblParticipants, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return activity.ErrParticipantNotFound
		}
		p = *obj.(*activity.Participant)
		return nil
	})
	return p, err
}

func (repo *ActivityRepository) ParticipantSecteurs(ctx context.Context, id int) ([]string, error) {
	secteurs := make([]string, 0)
	err := repo.db.run(ctx, false, func(txn *memdb.Txn) error {
		var sessionIDs []int
		err := each(txn, tblPresences, idxParticipant, func(obj interface{}) {
			sessionIDs = append(sessionIDs, obj.(*activity.Presence).SessionID)
		}, id)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, sid := range sessionIDs {
			sobj, err := first(txn, tblSessions, sid)
			if err != nil {
				return err
			}
			if sobj == nil {
				continue
			}
			wobj, err := first(txn, tblWorkshops, sobj.(*activity.Session).WorkshopID)
			if err != nil {
				return err
			}
			if wobj == nil {
				continue
			}
			s := wobj.(*activity.Workshop).Secteur
			if s != "" && !seen[s] {
				seen[s] = true
				secteurs = append(secteurs, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(secteurs)
	return secteurs, nil
}

func (repo *ActivityRepository) DeleteParticipant(ctx context.Context, id int) error {
	return repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		if _, err := txn.DeleteAll(tblPresences, idxParticipant, id); err != nil {
			return errors.Wrap(err, "deleting presences")
		}
		obj, err := first(txn, tblParticipants, id)
		if err != nil {
			return err
		}
		if obj == nil {
			return activity.ErrParticipantNotFound
		}
		return errors.Wrap(txn.Delete(tblParticipants, obj), "deleting participant")
	})
}

// CreateWorkshop stores `w`. An ID left to 0 is generated.
func (repo *ActivityRepository) CreateWorkshop(ctx context.Context, w activity.Workshop) (activity.Workshop, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		w.ID = repo.db.assignID(tblWorkshops, w.ID)
		row := w
		return insert(txn, tblWorkshops, &row)
	})
	return w, err
}

func (repo *ActivityRepository) CreateSession(ctx context.Context, s activity.Session) (activity.Session, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		s.ID = repo.db.assignID(tblSessions, s.ID)
		row := s
		return insert(txn, tblSessions, &row)
	})
	return s, err
}

func (repo *ActivityRepository) CreateParticipant(ctx context.Context, p activity.Participant) (activity.Participant, error) {
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		p.ID = repo.db.assignID(tblParticipants, p.ID)
		row := p
		return insert(txn, tblParticipants, &row)
	})
	return p, err
}

// CreatePresence records that participant `participantID` attended session `sessionID`.
func (repo *ActivityRepository) CreatePresence(ctx context.Context, sessionID, participantID int) (activity.Presence, error) {
	p := activity.Presence{SessionID: sessionID, ParticipantID: participantID}
	err := repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		p.ID = repo.db.nextID(tblPresences)
		row := p
		return insert(txn, tblPresences, &row)
	})
	return p, err
}

// Seed stores every row of `ds`, keeping their IDs.
func (repo *ActivityRepository) Seed(ctx context.Context, ds activity.Dataset) error {
	return repo.db.run(ctx, true, func(txn *memdb.Txn) error {
		for i := range ds.Workshops {
			w := ds.Workshops[i]
			w.ID = repo.db.assignID(tblWorkshops, w.ID)
			if err := insert(txn, tblWorkshops, &w); err != nil {
				return err
			}
		}
		for i := range ds.Sessions {
			s := ds.Sessions[i]
			s.ID = repo.db.assignID(tblSessions, s.ID)
			if err := insert(txn, tblSessions, &s); err != nil {
				return err
			}
		}
		for i := range ds.Participants {
			p := ds.Participants[i]
			p.ID = repo.db.assignID(tblParticipants, p.ID)
			if err := insert(txn, tblParticipants, &p); err != nil {
				return err
			}
		}
		for i := range ds.Presences {
			p := ds.Presences[i]
			p.ID = repo.db.assignID(tblPresences, p.ID)
			if err := insert(txn, tblPresences, &p); err != nil {
				return err
			}
		}
		return nil
	})
}
