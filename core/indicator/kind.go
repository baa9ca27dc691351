// Package indicator evaluates the configurable KPIs attached to a project.
package indicator

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/money"
)

var ErrUnknownKind = errors.New("indicateur inconnu")

// suggestMinRatio is the similarity under which Suggest gives up.
const suggestMinRatio = 0.6

// Kind is one of the metrics an indicator can track.
type Kind int

const (
	ParticipantsUniques Kind = iota + 1
	PresencesTotales
	SessionsTotales
	Recurrence2Plus
	DepensesTotales
	RecettesTotales
	CoutParParticipant
	CoutParPresence

	kindEnd
)

// metricInputs is what a kind computes its value from.
type metricInputs struct {
	participation activity.Participation
	depenses      decimal.Decimal
	recettes      decimal.Decimal
}

type definition struct {
	code  string
	label string
	unit  string
	value func(in metricInputs) null.Float64
}

func count(n int) null.Float64 { return null.Float64From(float64(n)) }

// costPer divides the expenses by `n`, with no value when `n` is 0.
func costPer(dep decimal.Decimal, n int) null.Float64 {
	if n == 0 {
		return null.Float64{}
	}
	return null.Float64From(money.Float(dep.DivRound(decimal.NewFromInt(int64(n)), 16)))
}

var registry = map[Kind]definition{
	ParticipantsUniques: {
		code: "participants_uniques", label: "Participants uniques",
		value: func(in metricInputs) null.Float64 { return count(in.participation.Uniques) },
	},
	PresencesTotales: {
		code: "presences_totales", label: "Présences totales",
		value: func(in metricInputs) null.Float64 { return count(in.participation.Presences) },
	},
	SessionsTotales: {
		code: "sessions_totales", label: "Sessions réalisées",
		value: func(in metricInputs) null.Float64 { return count(in.participation.Sessions) },
	},
	Recurrence2Plus: {
		code: "recurrence_2plus", label: "Participants récurrents (≥2 séances)",
		value: func(in metricInputs) null.Float64 { return count(in.participation.Recurrents) },
	},
	DepensesTotales: {
		code: "depenses_totales", label: "Dépenses totales (charges)", unit: "€",
		value: func(in metricInputs) null.Float64 { return null.Float64From(money.Float(in.depenses)) },
	},
	RecettesTotales: {
		code: "recettes_totales", label: "Recettes totales (produits)", unit: "€",
		value: func(in metricInputs) null.Float64 { return null.Float64From(money.Float(in.recettes)) },
	},
	CoutParParticipant: {
		code: "cout_par_participant", label: "Coût par participant", unit: "€",
		value: func(in metricInputs) null.Float64 { return costPer(in.depenses, in.participation.Uniques) },
	},
	CoutParPresence: {
		code: "cout_par_presence", label: "Coût par présence", unit: "€",
		value: func(in metricInputs) null.Float64 { return costPer(in.depenses, in.participation.Presences) },
	},
}

var byCode = func() map[string]Kind {
	m := make(map[string]Kind, len(registry))
	for k, def := range registry {
		m[def.code] = k
	}
	return m
}()

// Kinds returns every kind, in catalogue order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, int(kindEnd)-1)
	for k := ParticipantsUniques; k < kindEnd; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind returns the kind of `code`.
func ParseKind(code string) (Kind, error) {
	if k, ok := byCode[core.CleanString(code)]; ok {
		return k, nil
	}
	return 0, errors.Wrap(ErrUnknownKind, code)
}

// Suggest returns the code closest to a mistyped `code`, if any is similar enough.
func Suggest(code string) (string, bool) {
	code = core.CleanString(code, true)
	if code == "" {
		return "", false
	}
	best, bestRatio := "", suggestMinRatio
	for _, k := range Kinds() {
		ratio := difflib.NewMatcher(strings.Split(code, ""), strings.Split(k.Code(), "")).Ratio()
		if ratio >= bestRatio {
			best, bestRatio = k.Code(), ratio
		}
	}
	return best, best != ""
}

func (k Kind) Valid() bool {
	_, ok := registry[k]
	return ok
}

func (k Kind) Code() string { return registry[k].code }

// Label is the default French label of the kind.
func (k Kind) Label() string { return registry[k].label }

func (k Kind) Unit() string { return registry[k].unit }

// IsFinancial reports whether the kind reads the page-level grants rather than attendance alone.
func (k Kind) IsFinancial() bool { return registry[k].unit == "€" }

func (k Kind) String() string { return k.Code() }

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Code())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var code string
	if err := json.Unmarshal(b, &code); err != nil {
		return err
	}
	kind, err := ParseKind(code)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Pack is a named set of kinds added to a project in one go.
type Pack struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Kinds []Kind `json:"codes"`
}

var packs = []Pack{
	{Code: "caf_base", Label: "Pack CAF (base)", Kinds: []Kind{ParticipantsUniques, PresencesTotales, SessionsTotales, Recurrence2Plus}},
	{Code: "financier", Label: "Pack Financier", Kinds: []Kind{DepensesTotales, RecettesTotales, CoutParParticipant, CoutParPresence}},
	{Code: "jeunesse", Label: "Pack Jeunesse (simple)", Kinds: []Kind{ParticipantsUniques, Recurrence2Plus}},
}

func Packs() []Pack { return append([]Pack{}, packs...) }

func PackByCode(code string) (Pack, bool) {
	code = core.CleanString(code)
	for _, p := range packs {
		if p.Code == code {
			return p, true
		}
	}
	return Pack{}, false
}
