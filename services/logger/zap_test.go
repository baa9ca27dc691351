package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cgbcreil/gestio/core/scope"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(core))

	usr := scope.User{ID: "42", Role: scope.RoleResponsableSecteur, SecteurAssigne: "Familles"}
	logger.Error("ventilation failed", errors.New("boom"), map[string]interface{}{"subvention": 3}, usr, 7)
	logger.Info("started")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %v, want 2", len(entries))
	}

	got := entries[0].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "ventilation failed", entries[0].Message)
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, int64(3), got["subvention"])
	assert.Equal(t, "42", got["user_id"])
	assert.Equal(t, scope.RoleResponsableSecteur, got["user_role"])
	assert.Equal(t, "Familles", got["user_secteur"])
	assert.Equal(t, int64(7), got["extra"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want int
	}{
		{"nothing", nil, 0},
		{"nil arg", []interface{}{nil}, 0},
		{"error", []interface{}{errors.New("x")}, 1},
		{"user without sector", []interface{}{scope.User{ID: "1", Role: scope.RoleFinance}}, 4},
		{"two extras", []interface{}{"a", "b"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fields(tt.args); len(got) != tt.want {
				t.Errorf("fields() = %v, want %v items", got, tt.want)
			}
		})
	}
}
