// Package activity aggregates workshop attendance into participation metrics.
package activity

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
)

// Session statuses
const (
	StatusPlanned   = "prevue"
	StatusDone      = "realisee"
	StatusCancelled = "annulee"
)

type (
	Workshop struct {
		ID      int    `json:"id"`
		Name    string `json:"nom"`
		Secteur string `json:"secteur"`
		Deleted bool   `json:"is_deleted"`
	}

	Session struct {
		ID          int       `json:"id"`
		WorkshopID  int       `json:"atelier_id"`
		SessionDate null.Time `json:"date_session"`
		RdvDate     null.Time `json:"rdv_date"`
		Status      string    `json:"statut"`
		Capacity    null.Int  `json:"capacite"`
		Deleted     bool      `json:"is_deleted"`
	}

	// Presence is one attendance event.
	Presence struct {
		ID            int `json:"id"`
		SessionID     int `json:"session_id"`
		ParticipantID int `json:"participant_id"`
	}

	Participant struct {
		ID           int       `json:"id"`
		LastName     string    `json:"nom"`
		FirstName    string    `json:"prenom"`
		City         string    `json:"ville"`
		Neighborhood string    `json:"quartier"`
		BirthDate    null.Time `json:"date_naissance"`
		Gender       string    `json:"genre"`
		PublicType   string    `json:"type_public"`
	}

	// Dataset is a snapshot of the attendance tables the engine reads from.
	Dataset struct {
		Workshops    []Workshop
		Sessions     []Session
		Presences    []Presence
		Participants []Participant
	}
)

// EffectiveDate is the rendez-vous date when set, the session date otherwise.
func (s Session) EffectiveDate() null.Time {
	if s.RdvDate.Valid {
		return s.RdvDate
	}
	return s.SessionDate
}

// IsCancelled also accepts the accented spelling.
func (s Session) IsCancelled() bool {
	status := core.CleanString(s.Status, true)
	return status == StatusCancelled || status == "annulée"
}

func (p Participant) matches(q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(p.LastName), q) ||
		strings.Contains(strings.ToLower(p.FirstName), q) ||
		strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), q) ||
		strings.Contains(strings.ToLower(p.LastName+" "+p.FirstName), q)
}

// Age returns the age of the participant on `on`, or false when the birth date is unknown or in the future.
func (p Participant) Age(on time.Time) (int, bool) {
	if !p.BirthDate.Valid {
		return 0, false
	}
	bd := p.BirthDate.Time
	if bd.After(on) {
		return 0, false
	}
	age := on.Year() - bd.Year()
	if on.Month() < bd.Month() || (on.Month() == bd.Month() && on.Day() < bd.Day()) {
		age--
	}
	return age, true
}
