package indicator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core/activity"
)

// Indicator is a KPI definition attached to a project.
type Indicator struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"projet_id"`
	Kind      Kind      `json:"code"`
	Label     string    `json:"label"`
	Active    bool      `json:"is_active"`
	Params    Params    `json:"params"`
	CreatedAt time.Time `json:"created_at"`
}

type Result struct {
	ID         int          `json:"id"`
	Label      string       `json:"label"`
	Kind       Kind         `json:"code"`
	Value      null.Float64 `json:"value"`
	Unit       string       `json:"unit"`
	Target     null.Float64 `json:"target"`
	TargetOp   Op           `json:"target_op"`
	Status     string       `json:"status"`
	Period     Period       `json:"period"`
	Start      null.Time    `json:"start"`
	End        null.Time    `json:"end"`
	WorkshopID null.Int     `json:"atelier_id"`
}

// Inputs is everything the indicators of one project are evaluated from.
type Inputs struct {
	// SelectedYear is the year of the page filter, 0 when none.
	SelectedYear int
	// WorkshopIDs are the workshops linked to the project.
	WorkshopIDs []int
	Dataset     activity.Dataset
	// Depenses and Recettes are the real amounts of the charge and produit lines of the page-filtered grants.
	Depenses decimal.Decimal
	Recettes decimal.Decimal
}

// workshopScope narrows the project's workshops to `wid` when it is one of them.
func workshopScope(linked []int, wid null.Int) []int {
	if wid.Valid {
		for _, id := range linked {
			if id == wid.Int {
				return []int{id}
			}
		}
	}
	return linked
}

// Evaluate computes the active indicators of `indicators`, oldest first.
// Participation kinds use the indicator's own window and workshop; financial totals follow the page filter.
func Evaluate(indicators []Indicator, in Inputs) []Result {
	active := make([]Indicator, 0, len(indicators))
	for _, ind := range indicators {
		if ind.Active && ind.Kind.Valid() {
			active = append(active, ind)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	results := make([]Result, 0, len(active))
	for _, ind := range active {
		p := ind.Params
		from, to := Window(p, in.SelectedYear)
		mi := metricInputs{
			participation: activity.Metrics(in.Dataset, workshopScope(in.WorkshopIDs, p.WorkshopID), from, to),
			depenses:      in.Depenses,
			recettes:      in.Recettes,
		}
		value := registry[ind.Kind].value(mi)

		op := p.TargetOp
		if op == "" {
			op = OpGE
		}
		period := p.Period
		if period == "" {
			period = PeriodContext
		}
		results = append(results, Result{
			ID:         ind.ID,
			Label:      ind.Label,
			Kind:       ind.Kind,
			Value:      value,
			Unit:       ind.Kind.Unit(),
			Target:     p.Target,
			TargetOp:   op,
			Status:     Classify(value, p.Target, op),
			Period:     period,
			Start:      p.Start,
			End:        p.End,
			WorkshopID: p.WorkshopID,
		})
	}
	return results
}
