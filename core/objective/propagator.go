// Package objective computes the success of pedagogical objectives from attendance and competence evaluations.
package objective

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/money"
)

// Objective types
const (
	TypeGeneral     = "general"
	TypeSpecific    = "specifique"
	TypeOperational = "operationnel"
)

// PassingState is the lowest evaluation state that counts as a pass.
const PassingState = 2

var (
	// errors
	ErrNotFound = errors.New("objectif introuvable")
	ErrCycle    = errors.New("cycle détecté dans l'arborescence des objectifs")
)

type (
	Objective struct {
		ID         int      `json:"id"`
		Title      string   `json:"titre"`
		Type       string   `json:"type"`
		ParentID   null.Int `json:"parent_id"`
		ProjectID  int      `json:"projet_id"`
		WorkshopID null.Int `json:"atelier_id"`
		SessionID  null.Int `json:"session_id"`
		// Threshold is the success percentage (0-100) above which the objective is validated.
		Threshold     float64 `json:"seuil_validation"`
		CompetenceIDs []int   `json:"competence_ids"`
	}

	Evaluation struct {
		SessionID     int `json:"session_id"`
		ParticipantID int `json:"participant_id"`
		CompetenceID  int `json:"competence_id"`
		State         int `json:"etat"`
	}

	// Forest is the data a propagation reads from.
	Forest struct {
		Objectives []Objective
		// Attendees lists the participants present at each session, by session ID.
		Attendees   map[int][]int
		Evaluations []Evaluation
	}

	Result struct {
		ObjectiveID int      `json:"objectif_id"`
		Title       string   `json:"titre"`
		Ratio       float64  `json:"ratio"`
		Threshold   float64  `json:"seuil_validation"`
		Validated   bool     `json:"valide"`
		Leaf        bool     `json:"feuille"`
		Children    []Result `json:"enfants,omitempty"`
	}
)

// IsLeaf reports whether the objective is an operational objective bound to a session.
func (o Objective) IsLeaf() bool {
	return core.CleanString(o.Type, true) == TypeOperational && o.SessionID.Valid
}

type evalKey struct {
	session, participant, competence int
}

type outcome struct {
	ratio     decimal.Decimal
	validated bool
	result    Result
}

// Propagator evaluates objectives of one Forest. It memoizes results, so create one per request.
type Propagator struct {
	byID      map[int]Objective
	children  map[int][]int
	attendees map[int][]int
	passed    map[evalKey]bool

	memo     map[int]outcome
	visiting map[int]bool
}

func NewPropagator(f Forest) *Propagator {
	p := &Propagator{
		byID:      make(map[int]Objective, len(f.Objectives)),
		children:  make(map[int][]int),
		attendees: make(map[int][]int, len(f.Attendees)),
		passed:    make(map[evalKey]bool, len(f.Evaluations)),
		memo:      make(map[int]outcome),
		visiting:  make(map[int]bool),
	}
	for _, o := range f.Objectives {
		p.byID[o.ID] = o
	}
	for _, o := range f.Objectives {
		if o.ParentID.Valid {
			p.children[o.ParentID.Int] = append(p.children[o.ParentID.Int], o.ID)
		}
	}
	for _, ids := range p.children {
		sort.Ints(ids)
	}
	for sid, pids := range f.Attendees {
		seen := make(map[int]bool, len(pids))
		for _, pid := range pids {
			if !seen[pid] {
				seen[pid] = true
				p.attendees[sid] = append(p.attendees[sid], pid)
			}
		}
	}
	for _, e := range f.Evaluations {
		if e.State >= PassingState {
			p.passed[evalKey{e.SessionID, e.ParticipantID, e.CompetenceID}] = true
		}
	}
	return p
}

// Evaluate computes the success of objective `id` and of its descendants.
// It fails with ErrCycle when the objective is its own ancestor.
func (p *Propagator) Evaluate(id int) (Result, error) {
	out, err := p.evaluate(id)
	if err != nil {
		return Result{}, err
	}
	return out.result, nil
}

func (p *Propagator) evaluate(id int) (outcome, error) {
	if out, ok := p.memo[id]; ok {
		return out, nil
	}
	o, ok := p.byID[id]
	if !ok {
		return outcome{}, errors.Wrapf(ErrNotFound, "objectif %d", id)
	}
	if p.visiting[id] {
		return outcome{}, errors.Wrapf(ErrCycle, "objectif %d", id)
	}
	p.visiting[id] = true
	defer delete(p.visiting, id)

	var out outcome
	degenerate := false
	if o.IsLeaf() {
		out.ratio = p.leafRatio(o)
		out.result.Leaf = true
	} else {
		kids := p.children[id]
		degenerate = len(kids) == 0
		validated := 0
		for _, kid := range kids {
			k, err := p.evaluate(kid)
			if err != nil {
				return outcome{}, err
			}
			if k.validated {
				validated++
			}
			out.result.Children = append(out.result.Children, k.result)
		}
		out.ratio = percent(validated, len(kids))
	}

	// A node that is neither a leaf nor a parent has a 0 ratio and is never validated.
	out.validated = !degenerate && out.ratio.GreaterThanOrEqual(money.Dec(o.Threshold))
	out.result.ObjectiveID = o.ID
	out.result.Title = o.Title
	out.result.Threshold = o.Threshold
	out.result.Ratio = money.Float(out.ratio)
	out.result.Validated = out.validated

	p.memo[id] = out
	return out, nil
}

// leafRatio is the percentage of the session's attendees who passed every required competence.
// With no required competence, every attendee passes.
func (p *Propagator) leafRatio(o Objective) decimal.Decimal {
	sid := o.SessionID.Int
	attendees := p.attendees[sid]
	passed := 0
	for _, pid := range attendees {
		ok := true
		for _, cid := range o.CompetenceIDs {
			if !p.passed[evalKey{sid, pid, cid}] {
				ok = false
				break
			}
		}
		if ok {
			passed++
		}
	}
	return percent(passed, len(attendees))
}

func percent(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)*100).DivRound(decimal.NewFromInt(int64(total)), 16)
}
