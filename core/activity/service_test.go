package activity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/scope"
	"github.com/cgbcreil/gestio/testutil"
)

func newService(t *testing.T) (*activity.Service, *testutil.Store) {
	store := testutil.NewSeededStore(t)
	return activity.NewService(store.Activity, store.DB, activity.Options{}), store
}

func year2024() activity.Filter {
	return activity.Filter{}.WithYear(2024)
}

func TestService_Dashboard(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		sc        scope.Scope
		secteur   string
		sessions  int
		presences int
		secteurs  []string
	}{
		{name: "all", sc: scope.All(), sessions: 3, presences: 5, secteurs: []string{"Familles", "Numérique"}},
		{name: "requested sector", sc: scope.All(), secteur: "numérique", sessions: 2, presences: 3, secteurs: []string{"Familles", "Numérique"}},
		{name: "own sector", sc: scope.Sectors("Familles"), sessions: 1, presences: 2, secteurs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := year2024()
			f.Secteur = tt.secteur
			report, err := svc.Dashboard(ctx, tt.sc, f, nil)
			require.NoError(t, err)
			if report.Volume.NbSessions != tt.sessions {
				t.Errorf("Dashboard() sessions = %v, want %v", report.Volume.NbSessions, tt.sessions)
			}
			if report.Volume.NbPresences != tt.presences {
				t.Errorf("Dashboard() presences = %v, want %v", report.Volume.NbPresences, tt.presences)
			}
			assert.Equal(t, tt.secteurs, report.Secteurs)
			assert.Equal(t, []int{2024}, report.AvailableYears)
			assert.Nil(t, report.Matrix)
		})
	}

	f := year2024()
	f.Secteur = "Numérique"
	_, err := svc.Dashboard(ctx, scope.Sectors("Familles"), f, nil)
	assert.True(t, core.IsForbidden(err))

	_, err = svc.Dashboard(ctx, scope.None(), year2024(), nil)
	assert.True(t, core.IsForbidden(err))

	report, err := svc.Dashboard(ctx, scope.All(), year2024(), &activity.MatrixOptions{View: activity.ViewMatrix})
	require.NoError(t, err)
	require.NotNil(t, report.Matrix)
	assert.Len(t, report.Matrix.Sessions, 3)
}

func TestService_Exports(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	m, err := svc.Matrix(ctx, scope.All(), year2024(), activity.MatrixOptions{View: activity.ViewMatrix, MaxSessions: 1})
	require.NoError(t, err)
	assert.Len(t, m.Sessions, 3, "export keeps at least 5 sessions")
	assert.False(t, m.TruncatedSessions)

	summaries, err := svc.WorkshopExport(ctx, scope.Sectors("Numérique"), year2024())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Code", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].NbNouveaux)

	// workshops without sessions in the period are kept as zero rows
	summaries, err = svc.WorkshopExport(ctx, scope.All(), activity.Filter{}.WithYear(2022))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, ws := range summaries {
		assert.Zero(t, ws.NbSessions, ws.Name)
	}
}

func TestService_DeleteParticipant(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		sc    scope.Scope
		id    int
		check func(error) bool
	}{
		{name: "attended another sector", sc: scope.Sectors("Familles"), id: 1, check: core.IsForbidden},
		{name: "no sector", sc: scope.None(), id: 3, check: core.IsForbidden},
		{name: "unknown", sc: scope.All(), id: 404, check: func(err error) bool { return err == activity.ErrParticipantNotFound }},
		{name: "own sector only", sc: scope.Sectors("Familles"), id: 3, check: func(err error) bool { return err == nil }},
		{name: "admin", sc: scope.All(), id: 1, check: func(err error) bool { return err == nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.DeleteParticipant(ctx, tt.sc, tt.id); !tt.check(err) {
				t.Errorf("DeleteParticipant() error = %v", err)
			}
		})
	}

	ds, err := store.Activity.LoadDataset(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ds.Participants, 1)
	assert.Equal(t, 2, ds.Participants[0].ID)
	assert.Len(t, ds.Presences, 1)
}
