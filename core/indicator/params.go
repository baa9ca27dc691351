package indicator

import (
	"math"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
)

type (
	Period string
	Op     string
)

// Periods
const (
	PeriodContext Period = "context"
	PeriodYear    Period = "year"
	PeriodCustom  Period = "custom"
)

// Target operators
const (
	OpGE Op = "ge" // at least
	OpLE Op = "le" // at most
)

var (
	PeriodLabels = map[Period]string{
		PeriodContext: "Période sélectionnée (défaut)",
		PeriodYear:    "Année sélectionnée",
		PeriodCustom:  "Personnalisée (dates)",
	}
	OpLabels = map[Op]string{
		OpGE: "Atteindre au moins (≥)",
		OpLE: "Ne pas dépasser (≤)",
	}
)

// Params configures how an indicator is evaluated. Start and End are only set for a custom period.
type Params struct {
	Period     Period       `json:"period"`
	Target     null.Float64 `json:"target"`
	TargetOp   Op           `json:"target_op"`
	WorkshopID null.Int     `json:"atelier_id"`
	Start      null.Time    `json:"start"`
	End        null.Time    `json:"end"`
}

// DefaultParams is the configuration of a new indicator.
func DefaultParams() Params {
	return Params{Period: PeriodContext, TargetOp: OpGE}
}

// RawParams are indicator params as typed in a form.
type RawParams struct {
	Label     string `json:"label" form:"label"`
	Period    string `json:"period" form:"period" validate:"omitempty,oneof=context year custom"`
	Target    string `json:"target" form:"target"`
	TargetOp  string `json:"target_op" form:"target_op" validate:"omitempty,oneof=ge le"`
	AtelierID string `json:"atelier_id" form:"atelier_id"`
	Start     string `json:"start" form:"start"`
	End       string `json:"end" form:"end"`
}

// ParseParams builds Params from `rp`.
// Unparseable numbers and dates count as absent. An unknown period or operator, or dates given for a period
// other than custom, are rejected.
func ParseParams(rp RawParams) (Params, error) {
	p := DefaultParams()
	var fields []core.FieldError

	switch period := Period(core.CleanString(rp.Period, true)); period {
	case "":
	case PeriodContext, PeriodYear, PeriodCustom:
		p.Period = period
	default:
		fields = append(fields, core.FieldError{Field: "period", Error: "période inconnue"})
	}

	switch op := Op(core.CleanString(rp.TargetOp, true)); op {
	case "":
	case OpGE, OpLE:
		p.TargetOp = op
	default:
		fields = append(fields, core.FieldError{Field: "target_op", Error: "opérateur inconnu"})
	}

	if t, ok := core.ParseFloat(rp.Target); ok {
		p.Target = null.Float64From(t)
	}
	if id := core.ParseInt(rp.AtelierID); id > 0 {
		p.WorkshopID = null.IntFrom(id)
	}

	start, end := core.CleanString(rp.Start), core.CleanString(rp.End)
	if p.Period == PeriodCustom {
		if d, ok := core.ParseDate(start); ok {
			p.Start = null.TimeFrom(d)
		}
		if d, ok := core.ParseDate(end); ok {
			p.End = null.TimeFrom(d)
		}
	} else if start != "" || end != "" {
		fields = append(fields, core.FieldError{Field: "period", Error: "les dates ne s'appliquent qu'à une période personnalisée"})
	}

	if len(fields) > 0 {
		return Params{}, core.NewValidationError(errors.New("paramètres d'indicateur invalides"), fields...)
	}
	return p, nil
}

// Validate checks a Params value that was not built by ParseParams.
func (p Params) Validate() error {
	if _, ok := PeriodLabels[p.Period]; !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "period", Error: "période inconnue"})
	}
	if _, ok := OpLabels[p.TargetOp]; !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "target_op", Error: "opérateur inconnu"})
	}
	if p.Period != PeriodCustom && (p.Start.Valid || p.End.Valid) {
		return core.NewValidationError(nil, core.FieldError{Field: "period", Error: "les dates ne s'appliquent qu'à une période personnalisée"})
	}
	return nil
}

// Window resolves the dates the indicator is computed over.
// context and year use the selected year (no restriction when none is selected); custom uses its dates,
// swapped when reversed, and only restricts when both are set.
func Window(p Params, selectedYear int) (from, to null.Time) {
	switch p.Period {
	case PeriodCustom:
		if !p.Start.Valid || !p.End.Valid {
			return null.Time{}, null.Time{}
		}
		from, to = p.Start, p.End
		if to.Time.Before(from.Time) {
			from, to = to, from
		}
		return from, to
	default:
		if selectedYear <= 0 {
			return null.Time{}, null.Time{}
		}
		f, t := core.YearBounds(selectedYear)
		return null.TimeFrom(f), null.TimeFrom(t)
	}
}

// Status
const (
	StatusUnset = ""
	StatusOK    = "ok"
	StatusWarn  = "warn"
	StatusBad   = "bad"
)

// Classify compares `value` with `target`. Without a value, a target, or with a zero target, the status is unset.
// A missed target is a warning when it is reached at 75% or more.
func Classify(value, target null.Float64, op Op) string {
	if !value.Valid || !target.Valid || target.Float64 == 0 {
		return StatusUnset
	}
	v, t := value.Float64, target.Float64

	var ratio float64
	var ok bool
	if op == OpLE {
		ok = v <= t
		ratio = math.Inf(1)
		if v != 0 {
			ratio = t / v
		}
	} else {
		ratio = v / t
		ok = v >= t
	}

	switch {
	case ok:
		return StatusOK
	case ratio >= 0.75:
		return StatusWarn
	default:
		return StatusBad
	}
}
