package activity

import (
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
)

// Matrix views
const (
	ViewMacro  = "macro"
	ViewMatrix = "matrix"
)

type MatrixOptions struct {
	View            string `query:"magato_view"`
	ParticipantQ    string `query:"participant_q"`
	MaxSessions     int    `query:"max_sessions"`
	MaxParticipants int    `query:"max_participants"`
}

type limits struct {
	minSessions, maxSessions         int
	minParticipants, maxParticipants int
}

var (
	dashboardLimits = limits{minSessions: 5, maxSessions: 200, minParticipants: 20, maxParticipants: 1000}
	exportLimits    = limits{minSessions: 5, maxSessions: 400, minParticipants: 20, maxParticipants: 5000}
)

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func (o MatrixOptions) clamp(l limits, defSessions, defParticipants int) MatrixOptions {
	o.View = core.CleanString(o.View, true)
	if o.View != ViewMatrix {
		o.View = ViewMacro
	}
	o.ParticipantQ = core.CleanString(o.ParticipantQ)
	if o.MaxSessions == 0 {
		o.MaxSessions = defSessions
	}
	if o.MaxParticipants == 0 {
		o.MaxParticipants = defParticipants
	}
	o.MaxSessions = clampInt(o.MaxSessions, l.minSessions, l.maxSessions)
	o.MaxParticipants = clampInt(o.MaxParticipants, l.minParticipants, l.maxParticipants)
	return o
}

// ClampDashboard bounds the limits for the on-screen matrix: sessions in [5,200], participants in [20,1000].
// Missing limits default to `defSessions` and `defParticipants`.
func (o MatrixOptions) ClampDashboard(defSessions, defParticipants int) MatrixOptions {
	return o.clamp(dashboardLimits, defSessions, defParticipants)
}

// ClampExport bounds the limits for an export: sessions in [5,400], participants in [20,5000].
func (o MatrixOptions) ClampExport(defSessions, defParticipants int) MatrixOptions {
	return o.clamp(exportLimits, defSessions, defParticipants)
}

type (
	MacroRow struct {
		Secteur        string `json:"secteur"`
		WorkshopID     int    `json:"atelier_id,omitempty"`
		WorkshopName   string `json:"atelier_nom,omitempty"`
		NbSessions     int    `json:"nb_sessions"`
		NbPresences    int    `json:"nb_presences"`
		NbParticipants int    `json:"nb_participants_uniques"`
	}

	Macro struct {
		BySecteur []MacroRow `json:"by_secteur"`
		ByAtelier []MacroRow `json:"by_atelier"`
	}

	MatrixSession struct {
		ID           int       `json:"id"`
		Label        string    `json:"label"`
		Date         null.Time `json:"date"`
		WorkshopID   int       `json:"atelier_id"`
		WorkshopName string    `json:"atelier_nom"`
	}

	Cell struct {
		ParticipantID int `json:"participant_id"`
		SessionID     int `json:"session_id"`
	}

	// MatrixResult is the participant x session attendance grid of a selection.
	MatrixResult struct {
		View                  string           `json:"view"`
		Options               MatrixOptions    `json:"options"`
		Macro                 Macro            `json:"macro"`
		Sessions              []MatrixSession  `json:"sessions"`
		Participants          []ParticipantRow `json:"participants"`
		Cells                 []Cell           `json:"cells"`
		TruncatedSessions     bool             `json:"truncated_sessions"`
		TruncatedParticipants bool             `json:"truncated_participants"`

		present map[Cell]bool
	}
)

// Present reports whether participant `pid` attended session `sid`.
func (m MatrixResult) Present(pid, sid int) bool {
	return m.present[Cell{ParticipantID: pid, SessionID: sid}]
}

func sessionLabel(s Session) string {
	if d := s.EffectiveDate(); d.Valid {
		return d.Time.Format("02/01/2006")
	}
	return "Sans date"
}

type macroAcc struct {
	row          MacroRow
	participants map[int]bool
}

func macroRows(accs map[interface{}]*macroAcc) []MacroRow {
	rows := make([]MacroRow, 0, len(accs))
	for _, a := range accs {
		a.row.NbParticipants = len(a.participants)
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Secteur != rows[j].Secteur {
			return rows[i].Secteur < rows[j].Secteur
		}
		if rows[i].WorkshopName != rows[j].WorkshopName {
			return rows[i].WorkshopName < rows[j].WorkshopName
		}
		return rows[i].WorkshopID < rows[j].WorkshopID
	})
	return rows
}

// ComputeMacro sums sessions, presences and unique participants by sector and by workshop.
func ComputeMacro(sel Selection) Macro {
	bySecteur := make(map[interface{}]*macroAcc)
	byAtelier := make(map[interface{}]*macroAcc)
	sessionWorkshop := make(map[int]int, len(sel.Sessions))

	get := func(m map[interface{}]*macroAcc, key interface{}, row MacroRow) *macroAcc {
		a, ok := m[key]
		if !ok {
			a = &macroAcc{row: row, participants: map[int]bool{}}
			m[key] = a
		}
		return a
	}
	for _, s := range sel.Sessions {
		w := sel.Workshop(s.WorkshopID)
		sessionWorkshop[s.ID] = w.ID
		get(bySecteur, w.Secteur, MacroRow{Secteur: w.Secteur}).row.NbSessions++
		get(byAtelier, w.ID, MacroRow{Secteur: w.Secteur, WorkshopID: w.ID, WorkshopName: w.Name}).row.NbSessions++
	}
	for _, p := range sel.Presences {
		w := sel.Workshop(sessionWorkshop[p.SessionID])
		for _, a := range []*macroAcc{bySecteur[w.Secteur], byAtelier[w.ID]} {
			a.row.NbPresences++
			a.participants[p.ParticipantID] = true
		}
	}
	return Macro{BySecteur: macroRows(bySecteur), ByAtelier: macroRows(byAtelier)}
}

// Matrix reshapes `sel` into a participant x session grid. `opts` must already be clamped.
// The grid keeps the latest MaxSessions sessions, in date order, and the first MaxParticipants participants
// (by name) attending them and matching ParticipantQ.
func Matrix(sel Selection, opts MatrixOptions) MatrixResult {
	res := MatrixResult{
		View:         opts.View,
		Options:      opts,
		Macro:        ComputeMacro(sel),
		Sessions:     make([]MatrixSession, 0),
		Participants: make([]ParticipantRow, 0),
		Cells:        make([]Cell, 0),
		present:      make(map[Cell]bool),
	}

	sessions := sel.Sessions
	if opts.MaxSessions > 0 && len(sessions) > opts.MaxSessions {
		sessions = sessions[len(sessions)-opts.MaxSessions:]
		res.TruncatedSessions = true
	}
	kept := make(map[int]bool, len(sessions))
	for _, s := range sessions {
		kept[s.ID] = true
		w := sel.Workshop(s.WorkshopID)
		res.Sessions = append(res.Sessions, MatrixSession{
			ID:           s.ID,
			Label:        sessionLabel(s),
			Date:         s.EffectiveDate(),
			WorkshopID:   w.ID,
			WorkshopName: w.Name,
		})
	}

	sub := sel
	sub.Sessions = sessions
	sub.Presences = make([]Presence, 0, len(sel.Presences))
	for _, p := range sel.Presences {
		if kept[p.SessionID] {
			sub.Presences = append(sub.Presences, p)
		}
	}

	participants := make([]ParticipantRow, 0)
	for _, row := range Participants(sub) {
		if sel.Participant(row.ID).matches(opts.ParticipantQ) {
			participants = append(participants, row)
		}
	}
	if opts.MaxParticipants > 0 && len(participants) > opts.MaxParticipants {
		participants = participants[:opts.MaxParticipants]
		res.TruncatedParticipants = true
	}
	res.Participants = participants

	if opts.View != ViewMatrix {
		res.Sessions = make([]MatrixSession, 0)
		return res
	}

	shown := make(map[int]bool, len(participants))
	for _, p := range participants {
		shown[p.ID] = true
	}
	for _, p := range sub.Presences {
		c := Cell{ParticipantID: p.ParticipantID, SessionID: p.SessionID}
		if !shown[c.ParticipantID] || res.present[c] {
			continue
		}
		res.present[c] = true
		res.Cells = append(res.Cells, c)
	}
	return res
}

// WorkshopSummary is the per-workshop sheet of the yearly export.
type WorkshopSummary struct {
	WorkshopID   int              `json:"atelier_id"`
	Name         string           `json:"atelier_nom"`
	Secteur      string           `json:"secteur"`
	NbSessions   int              `json:"nb_sessions"`
	NbPresences  int              `json:"nb_presences"`
	NbUniques    int              `json:"nb_participants_uniques"`
	NbNouveaux   int              `json:"nb_nouveaux"`
	NbRecurrents int              `json:"nb_recurrents"`
	Sessions     []MatrixSession  `json:"sessions"`
	Participants []ParticipantRow `json:"participants"`
	Cells        []Cell           `json:"cells"`
}

// WorkshopExport summarizes every workshop of `sel` that has sessions, plus every workshop of `inventory`
// as a zero row when it has none.
// A participant is new when their first dated presence falls within the filter dates, which requires both bounds.
// Recurrent participants have at least 2 presences in the workshop.
func WorkshopExport(sel Selection, inventory []Workshop) []WorkshopSummary {
	byWorkshop := make(map[int][]Session)
	order := make([]int, 0)
	for _, s := range sel.Sessions {
		if _, ok := byWorkshop[s.WorkshopID]; !ok {
			order = append(order, s.WorkshopID)
		}
		byWorkshop[s.WorkshopID] = append(byWorkshop[s.WorkshopID], s)
	}
	presences := make(map[int][]Presence)
	for _, p := range sel.Presences {
		presences[p.SessionID] = append(presences[p.SessionID], p)
	}

	out := make([]WorkshopSummary, 0, len(order))
	for _, id := range order {
		w := sel.Workshop(id)
		sub := sel
		sub.Sessions = byWorkshop[id]
		sub.Presences = make([]Presence, 0)
		for _, s := range sub.Sessions {
			sub.Presences = append(sub.Presences, presences[s.ID]...)
		}

		m := Matrix(sub, MatrixOptions{View: ViewMatrix})
		ws := WorkshopSummary{
			WorkshopID:   w.ID,
			Name:         w.Name,
			Secteur:      w.Secteur,
			NbSessions:   len(sub.Sessions),
			NbPresences:  len(sub.Presences),
			NbUniques:    len(m.Participants),
			Sessions:     m.Sessions,
			Participants: m.Participants,
			Cells:        m.Cells,
		}
		for _, p := range m.Participants {
			if p.NbPresences >= 2 {
				ws.NbRecurrents++
			}
			if sel.Filter.From.Valid && sel.Filter.To.Valid && p.FirstDate.Valid && inRange(p.FirstDate, sel.Filter.From, sel.Filter.To) {
				ws.NbNouveaux++
			}
		}
		out = append(out, ws)
	}
	for _, w := range inventory {
		if _, ok := byWorkshop[w.ID]; ok {
			continue
		}
		out = append(out, WorkshopSummary{
			WorkshopID:   w.ID,
			Name:         w.Name,
			Secteur:      w.Secteur,
			Sessions:     []MatrixSession{},
			Participants: []ParticipantRow{},
			Cells:        []Cell{},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Secteur != out[j].Secteur {
			return out[i].Secteur < out[j].Secteur
		}
		return out[i].Name < out[j].Name
	})
	return out
}
