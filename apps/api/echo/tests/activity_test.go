package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgbcreil/gestio/core/activity"
)

const year2024 = "date_from=2024-01-01&date_to=2024-12-31"

func TestActivityAPI_dashboard(t *testing.T) {
	app, _ := setup(t)

	tests := []struct {
		httpTest
		sessions  int
		presences int
	}{
		{httpTest{name: "admin_tech sees everything", user: adminTech, wantCode: http.StatusOK}, 3, 5},
		{httpTest{name: "directrice", user: directrice, wantCode: http.StatusOK}, 3, 5},
		{httpTest{name: "sector manager", user: familles, wantCode: http.StatusOK}, 1, 2},
		{httpTest{name: "anonymous", user: anonymous, wantCode: http.StatusUnauthorized}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/v1/stats-impact?"+year2024
			rec := serve(app, tt.httpTest)
			checkCode(t, tt.httpTest, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var report activity.DashboardReport
			unmarshal(t, rec, &report)
			if report.Volume.NbSessions != tt.sessions {
				t.Errorf("NbSessions = %v, want %v", report.Volume.NbSessions, tt.sessions)
			}
			if report.Volume.NbPresences != tt.presences {
				t.Errorf("NbPresences = %v, want %v", report.Volume.NbPresences, tt.presences)
			}
			require.NotNil(t, report.Matrix)
		})
	}

	rec := serve(app, httpTest{method: http.MethodGet, path: "/v1/stats-impact?secteur=Num%C3%A9rique&" + year2024, user: familles})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestActivityAPI_exports(t *testing.T) {
	app, _ := setup(t)

	rec := serve(app, httpTest{method: http.MethodGet, path: "/v1/stats-impact/magatomatique?magato_view=matrix&max_sessions=1&" + year2024, user: directrice})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m activity.MatrixResult
	unmarshal(t, rec, &m)
	assert.Equal(t, activity.ViewMatrix, m.View)
	assert.Len(t, m.Sessions, 3)
	assert.False(t, m.TruncatedSessions)

	rec = serve(app, httpTest{method: http.MethodGet, path: "/v1/stats-impact/ateliers?" + year2024, user: numerique})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summaries []activity.WorkshopSummary
	unmarshal(t, rec, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Code", summaries[0].Name)
}

func TestActivityAPI_deleteParticipant(t *testing.T) {
	app, _ := setup(t)

	tests := []httpTest{
		{name: "attended another sector", user: familles, path: "/v1/stats-impact/participants/1", wantCode: http.StatusForbidden},
		{name: "unknown", user: directrice, path: "/v1/stats-impact/participants/404", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: activity.ErrParticipantNotFound.Error()})},
		{name: "own sector only", user: familles, path: "/v1/stats-impact/participants/3", wantCode: http.StatusNoContent},
		{name: "already deleted", user: familles, path: "/v1/stats-impact/participants/3", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodDelete
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}
