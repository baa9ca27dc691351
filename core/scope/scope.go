// Package scope resolves which sectors a user may see.
package scope

import (
	"strings"

	"github.com/cgbcreil/gestio/core"
)

// Roles
const (
	RoleAdminTech          = "admin_tech"
	RoleDirectrice         = "directrice"
	RoleFinance            = "finance"
	RoleResponsableSecteur = "responsable_secteur"
)

var (
	AllRoles = []string{RoleAdminTech, RoleDirectrice, RoleFinance, RoleResponsableSecteur}

	roleAliases = map[string]string{
		"financiere": RoleFinance,
		"financière": RoleFinance,
	}
)

// NormalizeRole cleans `role` and maps legacy spellings to their canonical role.
func NormalizeRole(role string) string {
	role = core.CleanString(role, true /* lower */)
	if canonical, ok := roleAliases[role]; ok {
		return canonical
	}
	return role
}

// User is the acting user, as provided by the authentication layer.
type User struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	SecteurAssigne string `json:"secteur_assigne,omitempty"`
}

func (u User) IsSectorManager() bool {
	return NormalizeRole(u.Role) == RoleResponsableSecteur
}

// CanViewFinance reports whether the user's role may access financial reports at all.
func (u User) CanViewFinance() bool {
	switch NormalizeRole(u.Role) {
	case RoleDirectrice, RoleFinance, RoleResponsableSecteur:
		return true
	}
	return false
}

// Scope restricts the sectors visible to a user.
// A nil list means every sector, an empty list means none.
// The zero value matches every sector; use None() for an empty scope.
type Scope struct {
	secteurs []string
}

func All() Scope { return Scope{} }

func None() Scope { return Scope{secteurs: []string{}} }

func Sectors(secteurs ...string) Scope {
	cleaned := make([]string, 0, len(secteurs))
	for _, s := range secteurs {
		if s = core.CleanString(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return Scope{secteurs: cleaned}
}

// Resolve returns the financial scope of `u`.
// admin_tech never receives financial scope; unknown roles match nothing.
func Resolve(u User) Scope {
	switch NormalizeRole(u.Role) {
	case RoleDirectrice, RoleFinance:
		return All()
	case RoleResponsableSecteur:
		return Sectors(u.SecteurAssigne)
	default:
		return None()
	}
}

// ResolveActivity returns the scope used by attendance reports, where admin_tech sees every sector.
func ResolveActivity(u User) Scope {
	if NormalizeRole(u.Role) == RoleAdminTech {
		return All()
	}
	return Resolve(u)
}

// IsAll reports whether the scope is unrestricted.
func (sc Scope) IsAll() bool { return sc.secteurs == nil }

// IsNone reports whether the scope matches nothing.
func (sc Scope) IsNone() bool { return sc.secteurs != nil && len(sc.secteurs) == 0 }

// Secteurs returns a copy of the allowed sectors, nil when unrestricted.
func (sc Scope) Secteurs() []string {
	if sc.secteurs == nil {
		return nil
	}
	return append([]string{}, sc.secteurs...)
}

// Allows reports whether `secteur` is visible. Sector names are compared case-insensitively.
func (sc Scope) Allows(secteur string) bool {
	if sc.IsAll() {
		return true
	}
	secteur = core.CleanString(secteur)
	for _, s := range sc.secteurs {
		if strings.EqualFold(s, secteur) {
			return true
		}
	}
	return false
}

// Effective returns the sector filter to apply for a `requested` sector (empty = no sector filter).
// A single-sector scope always applies its own sector; any other explicit request is forbidden,
// as is any request from an empty scope.
func (sc Scope) Effective(requested string) (string, error) {
	requested = core.CleanString(requested)
	switch {
	case sc.IsNone():
		return "", core.NewForbiddenError("aucun secteur accessible")
	case sc.IsAll():
		return requested, nil
	case requested == "":
		if len(sc.secteurs) == 1 {
			return sc.secteurs[0], nil
		}
		return "", nil
	case sc.Allows(requested):
		if len(sc.secteurs) == 1 {
			return sc.secteurs[0], nil
		}
		return requested, nil
	default:
		return "", core.NewForbiddenError("secteur hors périmètre: " + requested)
	}
}

// Check returns a forbidden error when `secteur` is outside the scope.
func (sc Scope) Check(secteur string) error {
	if !sc.Allows(secteur) {
		return core.NewForbiddenError("secteur hors périmètre: " + secteur)
	}
	return nil
}
