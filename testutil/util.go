// Package testutil builds in-memory stores filled with a small, known dataset.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/objective"
	inmemdb "github.com/cgbcreil/gestio/storage/database/inmem"
)

// Fixture IDs
const (
	GrantCAF     = 1 // Numérique, 2024
	GrantVille   = 2 // Familles, 2024
	GrantArchive = 3 // Numérique, 2023, archived
	GrantRegion  = 4 // Numérique, 2023

	ProjectNum = 10 // Numérique, workshop 1
	ProjectFam = 20 // Familles, workshop 2

	WorkshopCode    = 1
	WorkshopParents = 2

	ObjectiveRoot = 100
)

type Store struct {
	DB         *inmemdb.DB
	Budget     *inmemdb.BudgetRepository
	Activity   *inmemdb.ActivityRepository
	Indicators *inmemdb.IndicatorRepository
	Objectives *inmemdb.ObjectiveRepository
}

func NewStore() *Store {
	db := inmemdb.NewDB()
	return &Store{
		DB:         db,
		Budget:     inmemdb.NewBudgetRepository(db),
		Activity:   inmemdb.NewActivityRepository(db),
		Indicators: inmemdb.NewIndicatorRepository(db),
		Objectives: inmemdb.NewObjectiveRepository(db),
	}
}

func Day(y int, m time.Month, d int) null.Time {
	return null.TimeFrom(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func CreateGrant(t *testing.T, repo *inmemdb.BudgetRepository, g budget.Grant) budget.Grant {
	g, err := repo.CreateGrant(context.Background(), g)
	if err != nil {
		t.Fatalf("createGrant() failed: %v", err)
	}
	return g
}

func CreateProject(t *testing.T, repo *inmemdb.BudgetRepository, p budget.Project) budget.Project {
	p, err := repo.CreateProject(context.Background(), p)
	if err != nil {
		t.Fatalf("createProject() failed: %v", err)
	}
	return p
}

func CreateObjective(t *testing.T, repo *inmemdb.ObjectiveRepository, o objective.Objective) objective.Objective {
	o, err := repo.CreateObjective(context.Background(), o)
	if err != nil {
		t.Fatalf("createObjective() failed: %v", err)
	}
	return o
}

// Grants are the grants of the fixture.
func Grants() []budget.Grant {
	return []budget.Grant{
		{
			ID: GrantCAF, Name: "CAF Numérique", Secteur: "Numérique", Year: 2024,
			Requested: 1500, Allocated: 1200, Received: 1000, ProjectIDs: []int{ProjectNum},
			Lines: []budget.BudgetLine{
				{
					ID: 1, Nature: budget.NatureCharge, Compte: "60", Label: "Matériel", Base: 700, Real: 600,
					Expenses: []budget.Expense{
						{ID: 1, Label: "Tablettes", Amount: 400, PaidOn: Day(2024, time.March, 5)},
						{ID: 2, Label: "Câbles", Amount: 50, PaidOn: Day(2024, time.April, 12)},
					},
				},
				{ID: 2, Nature: budget.NatureCharge, Compte: "62", Label: "Intervenants", Base: 300, Real: 250},
				{ID: 3, Nature: budget.NatureProduit, Compte: "74", Label: "Subvention CAF", Base: 1000, Real: 1000},
			},
		},
		{
			ID: GrantVille, Name: "Ville Familles", Secteur: "Familles", Year: 2024,
			Requested: 800, Allocated: 600, Received: 600, ProjectIDs: []int{ProjectFam},
			Lines: []budget.BudgetLine{
				{
					ID: 4, Nature: budget.NatureCharge, Compte: "60", Label: "Goûters", Base: 500, Real: 200,
					Expenses: []budget.Expense{
						{ID: 3, Label: "Boulangerie", Amount: 120, PaidOn: Day(2024, time.May, 20)},
					},
				},
			},
		},
		{ID: GrantArchive, Name: "Ancien appel", Secteur: "Numérique", Year: 2023, Allocated: 100, Received: 100, Archived: true},
		{
			ID: GrantRegion, Name: "Région Inclusion", Secteur: "Numérique", Year: 2023,
			Requested: 400, Allocated: 400, Received: 200,
			Lines: []budget.BudgetLine{
				{ID: 5, Nature: budget.NatureCharge, Compte: "61", Label: "Locaux", Base: 400, Real: 180},
			},
		},
	}
}

// Attendance is the attendance data of the fixture.
func Attendance() activity.Dataset {
	return activity.Dataset{
		Workshops: []activity.Workshop{
			{ID: WorkshopCode, Name: "Code", Secteur: "Numérique"},
			{ID: WorkshopParents, Name: "Parents", Secteur: "Familles"},
		},
		Sessions: []activity.Session{
			{ID: 1, WorkshopID: WorkshopCode, SessionDate: Day(2024, time.March, 10), Capacity: null.IntFrom(10)},
			{ID: 2, WorkshopID: WorkshopCode, SessionDate: Day(2024, time.May, 10), Capacity: null.IntFrom(4)},
			{ID: 3, WorkshopID: WorkshopParents, SessionDate: Day(2024, time.April, 15)},
		},
		Presences: []activity.Presence{
			{ID: 1, SessionID: 1, ParticipantID: 1},
			{ID: 2, SessionID: 2, ParticipantID: 1},
			{ID: 3, SessionID: 1, ParticipantID: 2},
			{ID: 4, SessionID: 3, ParticipantID: 1},
			{ID: 5, SessionID: 3, ParticipantID: 3},
		},
		Participants: []activity.Participant{
			{ID: 1, LastName: "Durand", FirstName: "Alice", City: "Creil", BirthDate: Day(2010, time.June, 1), Gender: "F"},
			{ID: 2, LastName: "Martin", FirstName: "Bob", City: "Creil", BirthDate: Day(1990, time.January, 1), Gender: "M"},
			{ID: 3, LastName: "Abdel", FirstName: "Chérif", City: "Nogent"},
		},
	}
}

// Objectives is an objective tree of project ProjectNum: a general objective with one specific objective
// over the two sessions of workshop Code.
func Objectives() []objective.Objective {
	return []objective.Objective{
		{ID: ObjectiveRoot, Title: "Autonomie numérique", Type: objective.TypeGeneral, ProjectID: ProjectNum, Threshold: 50},
		{ID: 101, Title: "Maîtriser les bases", Type: objective.TypeSpecific, ParentID: null.IntFrom(ObjectiveRoot), ProjectID: ProjectNum, Threshold: 50},
		{
			ID: 102, Title: "Allumer une tablette", Type: objective.TypeOperational, ParentID: null.IntFrom(101),
			ProjectID: ProjectNum, WorkshopID: null.IntFrom(WorkshopCode), SessionID: null.IntFrom(1), Threshold: 50, CompetenceIDs: []int{7},
		},
		{
			ID: 103, Title: "Envoyer un courriel", Type: objective.TypeOperational, ParentID: null.IntFrom(101),
			ProjectID: ProjectNum, WorkshopID: null.IntFrom(WorkshopCode), SessionID: null.IntFrom(2), Threshold: 80, CompetenceIDs: []int{8},
		},
	}
}

// Evaluations are the competence evaluations of the fixture: both attendees of session 1 pass,
// the only attendee of session 2 fails.
func Evaluations() []objective.Evaluation {
	return []objective.Evaluation{
		{SessionID: 1, ParticipantID: 1, CompetenceID: 7, State: objective.PassingState},
		{SessionID: 1, ParticipantID: 2, CompetenceID: 7, State: objective.PassingState + 1},
		{SessionID: 2, ParticipantID: 1, CompetenceID: 8, State: objective.PassingState - 1},
	}
}

// Seed fills `s` with the whole fixture.
func Seed(t *testing.T, s *Store) {
	ctx := context.Background()
	for _, p := range []budget.Project{
		{ID: ProjectNum, Name: "Inclusion numérique", Secteur: "Numérique", WorkshopIDs: []int{WorkshopCode}},
		{ID: ProjectFam, Name: "Soutien parental", Secteur: "Familles", WorkshopIDs: []int{WorkshopParents}},
	} {
		CreateProject(t, s.Budget, p)
	}
	for _, g := range Grants() {
		CreateGrant(t, s.Budget, g)
	}
	if err := s.Activity.Seed(ctx, Attendance()); err != nil {
		t.Fatalf("seeding attendance failed: %v", err)
	}
	for _, o := range Objectives() {
		CreateObjective(t, s.Objectives, o)
	}
	for _, e := range Evaluations() {
		if err := s.Objectives.CreateEvaluation(ctx, e); err != nil {
			t.Fatalf("createEvaluation() failed: %v", err)
		}
	}
}

// NewSeededStore returns a store filled with the whole fixture.
func NewSeededStore(t *testing.T) *Store {
	s := NewStore()
	Seed(t, s)
	return s
}
