package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cgbcreil/gestio/core"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		usr      User
		wantAll  bool
		wantNone bool
		want     []string
	}{
		{name: "directrice", usr: User{Role: RoleDirectrice}, wantAll: true},
		{name: "finance", usr: User{Role: RoleFinance}, wantAll: true},
		{name: "finance alias", usr: User{Role: "Financière"}, wantAll: true},
		{name: "sector manager", usr: User{Role: RoleResponsableSecteur, SecteurAssigne: "Familles"}, want: []string{"Familles"}},
		{name: "admin_tech", usr: User{Role: RoleAdminTech}, wantNone: true},
		{name: "unknown role", usr: User{Role: "stagiaire"}, wantNone: true},
		{name: "no role", usr: User{}, wantNone: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Resolve(tt.usr)
			if sc.IsAll() != tt.wantAll {
				t.Errorf("Resolve().IsAll() = %v, want %v", sc.IsAll(), tt.wantAll)
			}
			if sc.IsNone() != tt.wantNone {
				t.Errorf("Resolve().IsNone() = %v, want %v", sc.IsNone(), tt.wantNone)
			}
			if tt.want != nil {
				assert.Equal(t, tt.want, sc.Secteurs())
			}
		})
	}
}

func TestResolveActivity(t *testing.T) {
	if sc := ResolveActivity(User{Role: RoleAdminTech}); !sc.IsAll() {
		t.Errorf("ResolveActivity(admin_tech) should be unrestricted, got %v", sc.Secteurs())
	}
	if sc := ResolveActivity(User{Role: "lol"}); !sc.IsNone() {
		t.Errorf("ResolveActivity(unknown) should match nothing, got %v", sc.Secteurs())
	}
}

func TestScope_Allows(t *testing.T) {
	manager := Sectors("Numérique")
	tests := []struct {
		name    string
		sc      Scope
		secteur string
		want    bool
	}{
		{name: "all", sc: All(), secteur: "Familles", want: true},
		{name: "none", sc: None(), secteur: "Familles", want: false},
		{name: "own sector", sc: manager, secteur: "Numérique", want: true},
		{name: "own sector, other case", sc: manager, secteur: " numérique ", want: true},
		{name: "other sector", sc: manager, secteur: "Familles", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sc.Allows(tt.secteur); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.secteur, got, tt.want)
			}
		})
	}
}

func TestScope_Effective(t *testing.T) {
	manager := Sectors("Numérique")
	tests := []struct {
		name          string
		sc            Scope
		requested     string
		want          string
		wantForbidden bool
	}{
		{name: "all, no request", sc: All(), requested: "", want: ""},
		{name: "all, request", sc: All(), requested: "Familles", want: "Familles"},
		{name: "manager, no request", sc: manager, requested: "", want: "Numérique"},
		{name: "manager, own sector", sc: manager, requested: "numérique", want: "Numérique"},
		{name: "manager, other sector", sc: manager, requested: "Familles", wantForbidden: true},
		{name: "none", sc: None(), requested: "", wantForbidden: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sc.Effective(tt.requested)
			if tt.wantForbidden {
				if !core.IsForbidden(err) {
					t.Errorf("Effective() error = %v, want forbidden", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Effective() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Effective() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScope_SecteursIsACopy(t *testing.T) {
	sc := Sectors("EPE")
	secs := sc.Secteurs()
	secs[0] = "Familles"
	if !sc.Allows("EPE") || sc.Allows("Familles") {
		t.Error("Secteurs() leaked the internal slice")
	}
}
