package inmemdb_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/indicator"
	"github.com/cgbcreil/gestio/core/objective"
	"github.com/cgbcreil/gestio/testutil"
)

func grantIDs(grants []budget.Grant) []int {
	ids := make([]int, len(grants))
	for i, g := range grants {
		ids[i] = g.ID
	}
	return ids
}

func TestBudgetRepository_QueryGrants(t *testing.T) {
	store := testutil.NewSeededStore(t)

	tests := []struct {
		name   string
		filter budget.GrantFilter
		want   []int
	}{
		{name: "everything but archived", want: []int{1, 2, 4}},
		{name: "archived included", filter: budget.GrantFilter{IncludeArchived: true}, want: []int{1, 2, 3, 4}},
		{name: "year", filter: budget.GrantFilter{Year: 2024}, want: []int{1, 2}},
		{name: "unknown year", filter: budget.GrantFilter{Year: 1999}, want: []int{}},
		{name: "sector is case insensitive", filter: budget.GrantFilter{Secteurs: []string{"numérique"}}, want: []int{1, 4}},
		{name: "empty sector list", filter: budget.GrantFilter{Secteurs: []string{}}, want: []int{}},
		{name: "project", filter: budget.GrantFilter{ProjectID: testutil.ProjectFam}, want: []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Budget.QueryGrants(context.Background(), tt.filter)
			require.NoError(t, err)
			if ids := grantIDs(got); !assert.ObjectsAreEqual(tt.want, ids) {
				t.Errorf("QueryGrants() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestBudgetRepository_GetGrant(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	g, err := store.Budget.GetGrant(ctx, testutil.GrantCAF)
	require.NoError(t, err)
	assert.Equal(t, "CAF Numérique", g.Name)
	assert.Equal(t, []int{testutil.ProjectNum}, g.ProjectIDs)
	require.Len(t, g.Lines, 3)
	assert.Equal(t, []int{1, 2}, []int{g.Lines[0].Expenses[0].ID, g.Lines[0].Expenses[1].ID})
	assert.Empty(t, g.Lines[1].Expenses)

	_, err = store.Budget.GetGrant(ctx, 404)
	assert.Equal(t, budget.ErrGrantNotFound, err)
}

func TestBudgetRepository_Projects(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	p, err := store.Budget.GetProject(ctx, testutil.ProjectNum)
	require.NoError(t, err)
	assert.Equal(t, []int{testutil.WorkshopCode}, p.WorkshopIDs)

	_, err = store.Budget.GetProject(ctx, 404)
	assert.Equal(t, budget.ErrProjectNotFound, err)

	projects, err := store.Budget.QueryProjects(ctx, budget.ProjectFilter{Secteurs: []string{"FAMILLES"}})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, testutil.ProjectFam, projects[0].ID)
}

func TestBudgetRepository_ExerciseYears(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	years, err := store.Budget.ExerciseYears(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, years)

	years, err = store.Budget.ExerciseYears(ctx, []string{"Familles"})
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)
}

func TestBudgetRepository_Lines(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	line, err := store.Budget.CreateLine(ctx, budget.BudgetLine{GrantID: testutil.GrantVille, Nature: budget.NatureCharge, Compte: "62", Label: "Animation", Base: 100})
	require.NoError(t, err)
	assert.Greater(t, line.ID, 5)

	_, err = store.Budget.CreateLine(ctx, budget.BudgetLine{GrantID: 404, Label: "x"})
	assert.Equal(t, budget.ErrGrantNotFound, err)

	require.NoError(t, store.Budget.UpdateLineReals(ctx, testutil.GrantVille, map[int]float64{4: 321, line.ID: 12.5}))
	g, err := store.Budget.GetGrant(ctx, testutil.GrantVille)
	require.NoError(t, err)
	require.Len(t, g.Lines, 2)
	assert.Equal(t, 321.0, g.Lines[0].Real)
	assert.Equal(t, 12.5, g.Lines[1].Real)
	assert.Len(t, g.Lines[0].Expenses, 1)

	err = store.Budget.UpdateLineReals(ctx, testutil.GrantVille, map[int]float64{1: 0})
	assert.Error(t, err, "line of another grant")
}

func TestDB_InTx(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.DB.InTx(ctx, false, func(ctx context.Context) error {
			if err := store.Budget.UpdateLineReals(ctx, testutil.GrantCAF, map[int]float64{1: 0}); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		g, err := store.Budget.GetGrant(ctx, testutil.GrantCAF)
		require.NoError(t, err)
		assert.Equal(t, 600.0, g.Lines[0].Real)
	})

	t.Run("commits", func(t *testing.T) {
		err := core.WriteTx(ctx, store.DB, func(ctx context.Context) error {
			return store.Budget.UpdateLineReals(ctx, testutil.GrantCAF, map[int]float64{1: 1})
		})
		require.NoError(t, err)

		g, err := store.Budget.GetGrant(ctx, testutil.GrantCAF)
		require.NoError(t, err)
		assert.Equal(t, 1.0, g.Lines[0].Real)
	})

	t.Run("read transactions refuse writes", func(t *testing.T) {
		err := core.ReadTx(ctx, store.DB, func(ctx context.Context) error {
			_, err := store.Budget.CreateLine(ctx, budget.BudgetLine{GrantID: testutil.GrantCAF, Label: "x"})
			return err
		})
		assert.Error(t, err)
	})
}

func TestActivityRepository_LoadDataset(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	ds, err := store.Activity.LoadDataset(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, ds.Workshops, 2)
	assert.Len(t, ds.Sessions, 3)
	assert.Len(t, ds.Presences, 5)
	assert.Len(t, ds.Participants, 3)

	ds, err = store.Activity.LoadDataset(ctx, []string{"numérique", "Numérique"})
	require.NoError(t, err)
	require.Len(t, ds.Workshops, 1)
	assert.Equal(t, testutil.WorkshopCode, ds.Workshops[0].ID)
	assert.Len(t, ds.Sessions, 2)
	assert.Len(t, ds.Presences, 3)
	require.Len(t, ds.Participants, 2)
	assert.Equal(t, "Durand", ds.Participants[0].LastName)
	assert.Equal(t, "Martin", ds.Participants[1].LastName)

	ds, err = store.Activity.LoadDataset(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, ds.Workshops)
	assert.Empty(t, ds.Participants)
}

func TestActivityRepository_Participants(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	secteurs, err := store.Activity.ParticipantSecteurs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Familles", "Numérique"}, secteurs)

	secteurs, err = store.Activity.ParticipantSecteurs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Familles"}, secteurs)

	require.NoError(t, store.Activity.DeleteParticipant(ctx, 1))
	_, err = store.Activity.GetParticipant(ctx, 1)
	assert.Equal(t, activity.ErrParticipantNotFound, err)
	assert.Equal(t, activity.ErrParticipantNotFound, store.Activity.DeleteParticipant(ctx, 1))

	ds, err := store.Activity.LoadDataset(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, ds.Presences, 2)
	assert.Len(t, ds.Participants, 2)
}

func TestIndicatorRepository(t *testing.T) {
	store := testutil.NewStore()
	ctx := context.Background()

	ind, err := store.Indicators.CreateIndicator(ctx, indicator.Indicator{ProjectID: 1, Kind: indicator.ParticipantsUniques, Label: "Participants", Active: true})
	require.NoError(t, err)
	_, err = store.Indicators.CreateIndicator(ctx, indicator.Indicator{ProjectID: 2, Kind: indicator.SessionsTotales, Label: "Séances"})
	require.NoError(t, err)

	got, err := store.Indicators.QueryIndicators(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []indicator.Indicator{ind}, got)

	ind.Active = false
	_, err = store.Indicators.UpdateIndicator(ctx, ind)
	require.NoError(t, err)
	got1, err := store.Indicators.GetIndicator(ctx, ind.ID)
	require.NoError(t, err)
	assert.False(t, got1.Active)

	_, err = store.Indicators.UpdateIndicator(ctx, indicator.Indicator{ID: 404})
	assert.Equal(t, indicator.ErrNotFound, err)

	require.NoError(t, store.Indicators.DeleteIndicator(ctx, ind.ID))
	_, err = store.Indicators.GetIndicator(ctx, ind.ID)
	assert.Equal(t, indicator.ErrNotFound, err)
	assert.Equal(t, indicator.ErrNotFound, store.Indicators.DeleteIndicator(ctx, ind.ID))
}

func TestObjectiveRepository(t *testing.T) {
	store := testutil.NewSeededStore(t)
	ctx := context.Background()

	o, err := store.Objectives.GetObjective(ctx, 103)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, o.CompetenceIDs)
	_, err = store.Objectives.GetObjective(ctx, 404)
	assert.Equal(t, objective.ErrNotFound, err)

	objectives, err := store.Objectives.QueryObjectives(ctx, testutil.ProjectNum)
	require.NoError(t, err)
	assert.Len(t, objectives, 4)

	attendees, err := store.Objectives.SessionAttendees(ctx, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int][]int{1: {1, 2}, 2: {1}}, attendees)

	evaluations, err := store.Objectives.QueryEvaluations(ctx, []int{2})
	require.NoError(t, err)
	assert.Equal(t, []objective.Evaluation{{SessionID: 2, ParticipantID: 1, CompetenceID: 8, State: objective.PassingState - 1}}, evaluations)
}
