package activity

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

var (
	// errors
	ErrParticipantNotFound = errors.New("participant introuvable")
)

type (
	Repository interface {
		// LoadDataset returns the workshops of `secteurs` (nil = every sector) with their sessions and presences,
		// and the participants those presences refer to.
		LoadDataset(ctx context.Context, secteurs []string) (Dataset, error)
		GetParticipant(ctx context.Context, id int) (Participant, error)
		// ParticipantSecteurs returns the distinct sectors of the workshops participant `id` attended.
		ParticipantSecteurs(ctx context.Context, id int) ([]string, error)
		// DeleteParticipant deletes participant `id` and all of their presences.
		DeleteParticipant(ctx context.Context, id int) error
	}

	Options struct {
		AgeBrackets               []int
		FrequencyBuckets          []int
		MatrixDefaultSessions     int
		MatrixDefaultParticipants int
	}

	Service struct {
		repo Repository
		tx   core.Transactor
		opts Options
		now  func() time.Time
	}

	DashboardReport struct {
		Filter         Filter           `json:"filter"`
		Volume         Volume           `json:"stats"`
		Frequency      []Bucket         `json:"freq"`
		Transversality Transversality   `json:"trans"`
		Demography     Demography       `json:"demo"`
		Occupancy      Occupancy        `json:"occupancy"`
		Participants   []ParticipantRow `json:"participants"`
		Secteurs       []string         `json:"secteurs"`
		Workshops      []Workshop       `json:"ateliers"`
		AvailableYears []int            `json:"available_years"`
		Matrix         *MatrixResult    `json:"magato,omitempty"`
	}
)

func NewService(repo Repository, tx core.Transactor, opts Options) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
	).CheckAndPanic()

	if len(opts.AgeBrackets) == 0 {
		opts.AgeBrackets = DefaultAgeBrackets
	}
	if len(opts.FrequencyBuckets) == 0 {
		opts.FrequencyBuckets = DefaultFrequencyBuckets
	}
	if opts.MatrixDefaultSessions == 0 {
		opts.MatrixDefaultSessions = 40
	}
	if opts.MatrixDefaultParticipants == 0 {
		opts.MatrixDefaultParticipants = 250
	}
	return &Service{repo: repo, tx: tx, opts: opts, now: time.Now}
}

// selection loads the data visible in `sc` and selects `f` from it, the scope's own sector overriding f.Secteur.
func (svc *Service) selection(ctx context.Context, sc scope.Scope, f Filter) (Dataset, Selection, error) {
	secteur, err := sc.Effective(f.Secteur)
	if err != nil {
		return Dataset{}, Selection{}, err
	}
	f.Secteur = secteur

	ds, err := svc.repo.LoadDataset(ctx, sc.Secteurs())
	if err != nil {
		return Dataset{}, Selection{}, errors.Wrap(err, "loading activity dataset")
	}
	return ds, Select(ds, f, sc), nil
}

func (svc *Service) currentYear(f Filter) Filter {
	if f.HasDates() {
		return f
	}
	return f.WithYear(svc.now().Year())
}

func workshopsOf(ds Dataset, sc scope.Scope, secteur string) []Workshop {
	out := make([]Workshop, 0)
	for _, w := range ds.Workshops {
		if w.Deleted || !sc.Allows(w.Secteur) {
			continue
		}
		if secteur != "" && !strings.EqualFold(w.Secteur, secteur) {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Secteur != out[j].Secteur {
			return out[i].Secteur < out[j].Secteur
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Dashboard computes every activity metric of `f` within `sc`. Without dates, the current year applies.
// The matrix is only computed when `matrix` is given; its limits are clamped for the screen.
func (svc *Service) Dashboard(ctx context.Context, sc scope.Scope, f Filter, matrix *MatrixOptions) (DashboardReport, error) {
	var report DashboardReport
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		f := svc.currentYear(f)
		ds, sel, err := svc.selection(ctx, sc, f)
		if err != nil {
			return err
		}

		on := svc.now()
		if sel.Filter.To.Valid && sel.Filter.To.Time.Before(on) {
			on = sel.Filter.To.Time
		}
		report = DashboardReport{
			Filter:         sel.Filter,
			Volume:         ComputeVolume(sel),
			Frequency:      Frequency(sel, svc.opts.FrequencyBuckets),
			Transversality: ComputeTransversality(sel),
			Demography:     ComputeDemography(sel, svc.opts.AgeBrackets, on),
			Occupancy:      ComputeOccupancy(sel),
			Participants:   Participants(sel),
			Secteurs:       []string{},
			Workshops:      workshopsOf(ds, sc, sel.Filter.Secteur),
			AvailableYears: AvailableYears(ds, sc, sel.Filter.Secteur),
		}
		if sc.IsAll() {
			report.Secteurs = distinctWorkshopSecteurs(workshopsOf(ds, sc, ""))
		}
		if matrix != nil {
			m := Matrix(sel, matrix.ClampDashboard(svc.opts.MatrixDefaultSessions, svc.opts.MatrixDefaultParticipants))
			report.Matrix = &m
		}
		return nil
	})
	return report, err
}

func distinctWorkshopSecteurs(workshops []Workshop) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, w := range workshops {
		if w.Secteur != "" && !seen[w.Secteur] {
			seen[w.Secteur] = true
			out = append(out, w.Secteur)
		}
	}
	sort.Strings(out)
	return out
}

// Matrix computes the attendance matrix of `f` for an export. Limits are clamped for exports.
func (svc *Service) Matrix(ctx context.Context, sc scope.Scope, f Filter, opts MatrixOptions) (MatrixResult, error) {
	var res MatrixResult
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		_, sel, err := svc.selection(ctx, sc, f)
		if err != nil {
			return err
		}
		res = Matrix(sel, opts.ClampExport(svc.opts.MatrixDefaultSessions, svc.opts.MatrixDefaultParticipants))
		return nil
	})
	return res, err
}

// WorkshopExport builds the per-workshop yearly summaries of `f`, listing every workshop in scope.
func (svc *Service) WorkshopExport(ctx context.Context, sc scope.Scope, f Filter) ([]WorkshopSummary, error) {
	var out []WorkshopSummary
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		ds, sel, err := svc.selection(ctx, sc, f)
		if err != nil {
			return err
		}
		inventory := make([]Workshop, 0)
		for _, w := range workshopsOf(ds, sc, sel.Filter.Secteur) {
			if f.WorkshopID == 0 || w.ID == f.WorkshopID {
				inventory = append(inventory, w)
			}
		}
		out = WorkshopExport(sel, inventory)
		return nil
	})
	return out, err
}

// Dataset returns the attendance data visible in `sc`.
func (svc *Service) Dataset(ctx context.Context, sc scope.Scope) (Dataset, error) {
	var ds Dataset
	err := core.ReadTx(ctx, svc.tx, func(ctx context.Context) error {
		if sc.IsNone() {
			return core.NewForbiddenError("aucun secteur accessible")
		}
		var err error
		ds, err = svc.repo.LoadDataset(ctx, sc.Secteurs())
		return errors.Wrap(err, "loading activity dataset")
	})
	return ds, err
}

// DeleteParticipant purges participant `id` and their presences.
// A sector manager may only purge participants who attended nothing outside their own sector.
func (svc *Service) DeleteParticipant(ctx context.Context, sc scope.Scope, id int) error {
	return core.WriteTx(ctx, svc.tx, func(ctx context.Context) error {
		if sc.IsNone() {
			return core.NewForbiddenError("aucun secteur accessible")
		}
		if _, err := svc.repo.GetParticipant(ctx, id); err != nil {
			return err
		}
		if !sc.IsAll() {
			secteurs, err := svc.repo.ParticipantSecteurs(ctx, id)
			if err != nil {
				return errors.Wrap(err, "querying participant sectors")
			}
			for _, s := range secteurs {
				if !sc.Allows(s) {
					return core.NewForbiddenError("Suppression refusée : ce participant a des émargements dans d'autres secteurs.")
				}
			}
		}
		return errors.Wrap(svc.repo.DeleteParticipant(ctx, id), "deleting participant "+strconv.Itoa(id))
	})
}
