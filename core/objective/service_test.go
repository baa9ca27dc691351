package objective_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/objective"
	"github.com/cgbcreil/gestio/core/scope"
	"github.com/cgbcreil/gestio/testutil"
)

func newService(t *testing.T) (*objective.Service, *testutil.Store) {
	store := testutil.NewSeededStore(t)
	return objective.NewService(store.Objectives, store.DB, budget.NewService(store.Budget, store.DB)), store
}

func TestService_Evaluate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Evaluate(ctx, scope.Sectors("Numérique"), testutil.ObjectiveRoot)
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.Equal(t, 100.0, res.Ratio)
	require.Len(t, res.Children, 1)

	specific := res.Children[0]
	assert.Equal(t, 50.0, specific.Ratio)
	assert.True(t, specific.Validated)
	require.Len(t, specific.Children, 2)

	tablet, mail := specific.Children[0], specific.Children[1]
	assert.True(t, tablet.Leaf)
	assert.Equal(t, 100.0, tablet.Ratio)
	assert.True(t, tablet.Validated)
	assert.Equal(t, 0.0, mail.Ratio)
	assert.False(t, mail.Validated)

	leaf, err := svc.Evaluate(ctx, scope.All(), 103)
	require.NoError(t, err)
	assert.Equal(t, mail, leaf)
}

func TestService_Evaluate_scope(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Evaluate(ctx, scope.Sectors("Familles"), testutil.ObjectiveRoot)
	assert.True(t, core.IsForbidden(err))

	_, err = svc.Evaluate(ctx, scope.All(), 404)
	assert.Equal(t, objective.ErrNotFound, errors.Cause(err))

	orphan := testutil.CreateObjective(t, store.Objectives, objective.Objective{
		Title: "Sans projet", Type: objective.TypeOperational, SessionID: null.IntFrom(3), Threshold: 100,
	})
	_, err = svc.Evaluate(ctx, scope.Sectors("Familles"), orphan.ID)
	assert.True(t, core.IsForbidden(err))

	res, err := svc.Evaluate(ctx, scope.All(), orphan.ID)
	require.NoError(t, err)
	assert.True(t, res.Validated, "no competence required")
}

func TestService_Evaluate_cycle(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	a := testutil.CreateObjective(t, store.Objectives, objective.Objective{ID: 200, Title: "A", Type: objective.TypeGeneral, ParentID: null.IntFrom(201), ProjectID: testutil.ProjectFam})
	testutil.CreateObjective(t, store.Objectives, objective.Objective{ID: 201, Title: "B", Type: objective.TypeSpecific, ParentID: null.IntFrom(200), ProjectID: testutil.ProjectFam})

	_, err := svc.Evaluate(ctx, scope.All(), a.ID)
	if !errors.Is(err, objective.ErrCycle) {
		t.Errorf("Evaluate() error = %v, want %v", err, objective.ErrCycle)
	}
}
