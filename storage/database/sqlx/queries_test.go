package sqlxrepos

import (
	"database/sql"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgbcreil/gestio/core/budget"
)

const grantSelect = "SELECT id, nom, secteur, annee_exercice, montant_demande, montant_attribue, montant_recu, est_archive FROM subventions"

func TestQueries(t *testing.T) {
	_, sessions, _, participants := datasetQueries([]string{" Familles "})

	tests := []struct {
		name     string
		query    sq.Sqlizer
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "grants, no filter",
			query:    grantsQuery(budget.GrantFilter{}),
			wantSQL:  grantSelect + " WHERE est_archive = $1 ORDER BY id",
			wantArgs: []interface{}{false},
		},
		{
			name:     "grants, archived included",
			query:    grantsQuery(budget.GrantFilter{IncludeArchived: true}),
			wantSQL:  grantSelect + " ORDER BY id",
			wantArgs: nil,
		},
		{
			name:  "grants, every filter",
			query: grantsQuery(budget.GrantFilter{Year: 2024, ProjectID: 10, Secteurs: []string{"Numérique", "EPE"}}),
			wantSQL: grantSelect + " WHERE est_archive = $1 AND annee_exercice = $2" +
				" AND id IN (SELECT subvention_id FROM subvention_projets WHERE projet_id = $3)" +
				" AND lower(secteur) IN ($4,$5) ORDER BY id",
			wantArgs: []interface{}{false, 2024, 10, "numérique", "epe"},
		},
		{
			name:     "grants, empty scope",
			query:    grantsQuery(budget.GrantFilter{Secteurs: []string{}}),
			wantSQL:  grantSelect + " WHERE est_archive = $1 AND (1=0) ORDER BY id",
			wantArgs: []interface{}{false},
		},
		{
			name:     "project",
			query:    projectsQuery(budget.ProjectFilter{ID: 3}),
			wantSQL:  "SELECT id, nom, secteur, description FROM projets WHERE id = $1 ORDER BY id",
			wantArgs: []interface{}{3},
		},
		{
			name:     "years",
			query:    yearsQuery(nil),
			wantSQL:  "SELECT DISTINCT annee_exercice FROM subventions WHERE est_archive = $1 AND annee_exercice <> $2 ORDER BY annee_exercice DESC",
			wantArgs: []interface{}{false, 0},
		},
		{
			name:  "sessions of a sector",
			query: sessions,
			wantSQL: "SELECT id, atelier_id, date_session, rdv_date, statut, capacite, is_deleted FROM sessions_activite" +
				" WHERE atelier_id IN (SELECT id FROM ateliers_activite WHERE lower(secteur) IN ($1)) ORDER BY id",
			wantArgs: []interface{}{"familles"},
		},
		{
			name:  "participants of a sector",
			query: participants,
			wantSQL: "SELECT id, nom, prenom, ville, quartier, date_naissance, genre, type_public FROM participants" +
				" WHERE id IN (SELECT participant_id FROM presences_activite WHERE session_id IN" +
				" (SELECT s.id FROM sessions_activite s WHERE s.atelier_id IN" +
				" (SELECT id FROM ateliers_activite WHERE lower(secteur) IN ($1)))) ORDER BY id",
			wantArgs: []interface{}{"familles"},
		},
		{
			name:  "participant sectors",
			query: participantSecteursQuery(7),
			wantSQL: "SELECT DISTINCT a.secteur FROM presences_activite p" +
				" JOIN sessions_activite s ON s.id = p.session_id" +
				" JOIN ateliers_activite a ON a.id = s.atelier_id" +
				" WHERE p.participant_id = $1 AND a.secteur <> $2 ORDER BY a.secteur",
			wantArgs: []interface{}{7, ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := tt.query.ToSql()
			require.NoError(t, err)
			if gotSQL != tt.wantSQL {
				t.Errorf("ToSql() = %q, want %q", gotSQL, tt.wantSQL)
			}
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func TestDatasetQueries_allSectors(t *testing.T) {
	workshops, sessions, _, _ := datasetQueries(nil)

	query, args, err := workshops.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, nom, secteur, is_deleted FROM ateliers_activite ORDER BY id", query)
	assert.Empty(t, args)

	query, _, err = sessions.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE atelier_id IN (SELECT id FROM ateliers_activite) ORDER BY id")
}

func TestTxOptions(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     sql.TxOptions
	}{
		{name: "read", readOnly: true, want: sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}},
		{name: "write", readOnly: false, want: sql.TxOptions{Isolation: sql.LevelDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *txOptions(tt.readOnly))
		})
	}
}
