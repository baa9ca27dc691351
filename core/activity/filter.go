package activity

import (
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

// Filter selects the sessions an activity report is computed on. Zero values mean "no filter".
type Filter struct {
	From       null.Time `json:"date_from"`
	To         null.Time `json:"date_to"`
	Secteur    string    `json:"secteur"`
	WorkshopID int       `json:"atelier_id"`
}

// RawFilter is a Filter as it comes from a query string.
type RawFilter struct {
	DateFrom   string `query:"date_from"`
	DateTo     string `query:"date_to"`
	Secteur    string `query:"secteur"`
	WorkshopID string `query:"atelier_id"`
}

// Normalize parses `rf`. Unparseable dates and ids are dropped; reversed dates are swapped.
func (rf RawFilter) Normalize() Filter {
	f := Filter{Secteur: core.CleanString(rf.Secteur)}
	if d, ok := core.ParseDate(rf.DateFrom); ok {
		f.From = null.TimeFrom(d)
	}
	if d, ok := core.ParseDate(rf.DateTo); ok {
		f.To = null.TimeFrom(d)
	}
	if id := core.ParseInt(rf.WorkshopID); id > 0 {
		f.WorkshopID = id
	}
	f.swap()
	return f
}

func (f *Filter) swap() {
	if f.From.Valid && f.To.Valid && f.To.Time.Before(f.From.Time) {
		f.From, f.To = f.To, f.From
	}
}

// HasDates reports whether any date bound is set.
func (f Filter) HasDates() bool { return f.From.Valid || f.To.Valid }

// WithYear returns `f` bounded to calendar year `year`.
func (f Filter) WithYear(year int) Filter {
	from, to := core.YearBounds(year)
	f.From, f.To = null.TimeFrom(from), null.TimeFrom(to)
	return f
}

// inRange reports whether `d` falls within [from, to], both inclusive and compared by day.
// An unset bound does not restrict; when a bound is set, a session without a date is out.
func inRange(d, from, to null.Time) bool {
	if !from.Valid && !to.Valid {
		return true
	}
	if !d.Valid {
		return false
	}
	day := core.Day(d.Time)
	if from.Valid && day.Before(core.Day(from.Time)) {
		return false
	}
	if to.Valid && day.After(core.Day(to.Time)) {
		return false
	}
	return true
}

// Selection is the session set every activity metric of a report is computed from.
type Selection struct {
	Filter       Filter
	Sessions     []Session // by effective date, then ID
	Presences    []Presence
	workshops    map[int]Workshop
	participants map[int]Participant
}

func (sel Selection) Workshop(id int) Workshop { return sel.workshops[id] }

// Participant returns participant `id`. Presences of unknown participants still count, with an empty record.
func (sel Selection) Participant(id int) Participant {
	if p, ok := sel.participants[id]; ok {
		return p
	}
	return Participant{ID: id}
}

func sortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		di, dj := sessions[i].EffectiveDate(), sessions[j].EffectiveDate()
		switch {
		case di.Valid && dj.Valid && !di.Time.Equal(dj.Time):
			return di.Time.Before(dj.Time)
		case di.Valid != dj.Valid:
			return di.Valid
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// sessionPredicate decides which live sessions of live workshops are kept.
type sessionPredicate func(s Session, w Workshop) bool

func selectWhere(ds Dataset, f Filter, keep sessionPredicate) Selection {
	sel := Selection{
		Filter:       f,
		Sessions:     make([]Session, 0),
		Presences:    make([]Presence, 0),
		workshops:    make(map[int]Workshop, len(ds.Workshops)),
		participants: make(map[int]Participant, len(ds.Participants)),
	}
	for _, w := range ds.Workshops {
		if !w.Deleted {
			sel.workshops[w.ID] = w
		}
	}

	kept := make(map[int]bool)
	for _, s := range ds.Sessions {
		w, ok := sel.workshops[s.WorkshopID]
		if !ok || s.Deleted || s.IsCancelled() {
			continue
		}
		if !inRange(s.EffectiveDate(), f.From, f.To) || !keep(s, w) {
			continue
		}
		kept[s.ID] = true
		sel.Sessions = append(sel.Sessions, s)
	}
	sortSessions(sel.Sessions)

	for _, p := range ds.Presences {
		if kept[p.SessionID] {
			sel.Presences = append(sel.Presences, p)
		}
	}
	for _, p := range ds.Participants {
		sel.participants[p.ID] = p
	}
	return sel
}

// Select builds the session set of `f` within `sc`.
// Deleted sessions, sessions of deleted workshops and cancelled sessions are left out.
// The scope always applies, whatever sector `f` asks for.
func Select(ds Dataset, f Filter, sc scope.Scope) Selection {
	f.swap()
	return selectWhere(ds, f, func(s Session, w Workshop) bool {
		if !sc.Allows(w.Secteur) {
			return false
		}
		if f.Secteur != "" && !strings.EqualFold(w.Secteur, f.Secteur) {
			return false
		}
		return f.WorkshopID == 0 || s.WorkshopID == f.WorkshopID
	})
}

// participantStat is what a selection knows about one participant.
type participantStat struct {
	id        int
	presences int
	first     time.Time
	last      time.Time
	hasDate   bool
	workshops map[int]bool
	secteurs  map[string]bool
}

// stats aggregates the presences of the selection per participant, in first-seen order.
func (sel Selection) stats() []*participantStat {
	sessions := make(map[int]Session, len(sel.Sessions))
	for _, s := range sel.Sessions {
		sessions[s.ID] = s
	}

	byID := make(map[int]*participantStat)
	order := make([]*participantStat, 0)
	for _, p := range sel.Presences {
		st, ok := byID[p.ParticipantID]
		if !ok {
			st = &participantStat{id: p.ParticipantID, workshops: map[int]bool{}, secteurs: map[string]bool{}}
			byID[p.ParticipantID] = st
			order = append(order, st)
		}
		st.presences++
		s := sessions[p.SessionID]
		st.workshops[s.WorkshopID] = true
		st.secteurs[sel.workshops[s.WorkshopID].Secteur] = true
		if d := s.EffectiveDate(); d.Valid {
			day := core.Day(d.Time)
			if !st.hasDate || day.Before(st.first) {
				st.first = day
			}
			if !st.hasDate || day.After(st.last) {
				st.last = day
			}
			st.hasDate = true
		}
	}
	return order
}
