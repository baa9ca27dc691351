package activity

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

// Unknown labels empty demographic values.
const Unknown = "inconnu"

var (
	DefaultAgeBrackets      = []int{12, 18, 26, 60}
	DefaultFrequencyBuckets = []int{1, 2, 4, 10}
)

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func percent(part, total int) null.Float64 {
	if total <= 0 {
		return null.Float64{}
	}
	return null.Float64From(round2(float64(part) * 100 / float64(total)))
}

type Volume struct {
	NbSessions          int     `json:"nb_sessions"`
	NbPresences         int     `json:"nb_presences"`
	NbParticipants      int     `json:"nb_participants_uniques"`
	NbRecurrents        int     `json:"nb_recurrents"`
	NbAteliersActifs    int     `json:"nb_ateliers_actifs"`
	PresencesParSession float64 `json:"moyenne_presences_session"`
}

// ComputeVolume counts sessions, presences and participants. A recurrent participant has at least 2 presences.
func ComputeVolume(sel Selection) Volume {
	v := Volume{NbSessions: len(sel.Sessions), NbPresences: len(sel.Presences)}
	workshops := make(map[int]bool)
	for _, s := range sel.Sessions {
		workshops[s.WorkshopID] = true
	}
	v.NbAteliersActifs = len(workshops)

	stats := sel.stats()
	v.NbParticipants = len(stats)
	for _, st := range stats {
		if st.presences >= 2 {
			v.NbRecurrents++
		}
	}
	if v.NbSessions > 0 {
		v.PresencesParSession = round2(float64(v.NbPresences) / float64(v.NbSessions))
	}
	return v
}

type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max,omitempty"` // 0 for the last, open-ended bucket
	Count int    `json:"count"`
}

func buckets(bounds []int) []Bucket {
	out := make([]Bucket, 0, len(bounds))
	for i, lo := range bounds {
		b := Bucket{Min: lo}
		if i+1 < len(bounds) {
			b.Max = bounds[i+1] - 1
		}
		switch {
		case b.Max == 0:
			b.Label = strconv.Itoa(lo) + "+"
		case b.Max == lo:
			b.Label = strconv.Itoa(lo)
		default:
			b.Label = strconv.Itoa(lo) + "-" + strconv.Itoa(b.Max)
		}
		out = append(out, b)
	}
	return out
}

// Frequency counts participants per number of presences. `bounds` are the ascending lower bounds of the buckets.
func Frequency(sel Selection, bounds []int) []Bucket {
	if len(bounds) == 0 {
		bounds = DefaultFrequencyBuckets
	}
	out := buckets(bounds)
	for _, st := range sel.stats() {
		for i := len(out) - 1; i >= 0; i-- {
			if st.presences >= out[i].Min {
				out[i].Count++
				break
			}
		}
	}
	return out
}

type CountRow struct {
	N            int `json:"n"`
	Participants int `json:"nb_participants"`
}

type Transversality struct {
	ByWorkshops   []CountRow `json:"par_nb_ateliers"`
	BySecteurs    []CountRow `json:"par_nb_secteurs"`
	MultiAteliers int        `json:"nb_multi_ateliers"`
	MultiSecteurs int        `json:"nb_multi_secteurs"`
}

func countRows(counts map[int]int) []CountRow {
	out := make([]CountRow, 0, len(counts))
	for n, c := range counts {
		out = append(out, CountRow{N: n, Participants: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].N < out[j].N })
	return out
}

// ComputeTransversality counts participants by the number of distinct workshops and sectors they attended.
func ComputeTransversality(sel Selection) Transversality {
	var t Transversality
	byWorkshops, bySecteurs := make(map[int]int), make(map[int]int)
	for _, st := range sel.stats() {
		byWorkshops[len(st.workshops)]++
		bySecteurs[len(st.secteurs)]++
		if len(st.workshops) > 1 {
			t.MultiAteliers++
		}
		if len(st.secteurs) > 1 {
			t.MultiSecteurs++
		}
	}
	t.ByWorkshops = countRows(byWorkshops)
	t.BySecteurs = countRows(bySecteurs)
	return t
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Demography struct {
	NbParticipants int          `json:"nb_participants"`
	Ages           []LabelCount `json:"ages"`
	Quartiers      []LabelCount `json:"quartiers"`
	Genres         []LabelCount `json:"genres"`
	Publics        []LabelCount `json:"types_public"`
	Villes         []LabelCount `json:"villes"`
}

func ageLabels(bounds []int) []string {
	labels := make([]string, 0, len(bounds)+2)
	for i, hi := range bounds {
		if i == 0 {
			labels = append(labels, "<"+strconv.Itoa(hi))
			continue
		}
		labels = append(labels, strconv.Itoa(bounds[i-1])+"-"+strconv.Itoa(hi-1))
	}
	if len(bounds) > 0 {
		labels = append(labels, strconv.Itoa(bounds[len(bounds)-1])+"+")
	}
	return append(labels, Unknown)
}

func ageIndex(age int, bounds []int) int {
	for i, hi := range bounds {
		if age < hi {
			return i
		}
	}
	return len(bounds)
}

func labelCounts(counts map[string]int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, LabelCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func orUnknown(s string) string {
	if s = core.CleanString(s); s == "" {
		return Unknown
	}
	return s
}

// ComputeDemography breaks the distinct participants of `sel` down by age (on `on`), neighborhood, gender,
// public type and city. `bounds` are the ascending upper bounds of the age brackets.
func ComputeDemography(sel Selection, bounds []int, on time.Time) Demography {
	if len(bounds) == 0 {
		bounds = DefaultAgeBrackets
	}
	labels := ageLabels(bounds)
	ages := make([]int, len(labels))
	quartiers, genres, publics, villes := map[string]int{}, map[string]int{}, map[string]int{}, map[string]int{}

	stats := sel.stats()
	for _, st := range stats {
		p := sel.Participant(st.id)
		if age, ok := p.Age(on); ok {
			ages[ageIndex(age, bounds)]++
		} else {
			ages[len(ages)-1]++
		}
		quartiers[orUnknown(p.Neighborhood)]++
		genres[orUnknown(strings.ToUpper(p.Gender))]++
		publics[orUnknown(strings.ToUpper(p.PublicType))]++
		villes[orUnknown(p.City)]++
	}

	d := Demography{
		NbParticipants: len(stats),
		Ages:           make([]LabelCount, len(labels)),
		Quartiers:      labelCounts(quartiers),
		Genres:         labelCounts(genres),
		Publics:        labelCounts(publics),
		Villes:         labelCounts(villes),
	}
	for i, l := range labels {
		d.Ages[i] = LabelCount{Label: l, Count: ages[i]}
	}
	return d
}

type (
	SessionOccupancy struct {
		SessionID  int          `json:"session_id"`
		WorkshopID int          `json:"atelier_id"`
		Date       null.Time    `json:"date"`
		Presences  int          `json:"nb_presences"`
		Capacity   null.Int     `json:"capacite"`
		Rate       null.Float64 `json:"taux"`
	}

	WorkshopOccupancy struct {
		WorkshopID int          `json:"atelier_id"`
		Name       string       `json:"atelier_nom"`
		Secteur    string       `json:"secteur"`
		Sessions   int          `json:"nb_sessions"`
		Presences  int          `json:"nb_presences"`
		Capacity   int          `json:"capacite_totale"`
		Rate       null.Float64 `json:"taux"`
	}

	Occupancy struct {
		Sessions  []SessionOccupancy  `json:"sessions"`
		Workshops []WorkshopOccupancy `json:"ateliers"`
		Rate      null.Float64        `json:"taux_global"`
	}
)

// ComputeOccupancy compares presences with session capacity. Sessions without a positive capacity
// have no rate and are left out of the workshop and global rates.
func ComputeOccupancy(sel Selection) Occupancy {
	presences := make(map[int]int)
	for _, p := range sel.Presences {
		presences[p.SessionID]++
	}

	type acc struct {
		row               WorkshopOccupancy
		capacityPresences int
	}
	byWorkshop := make(map[int]*acc)
	order := make([]int, 0)
	occ := Occupancy{Sessions: make([]SessionOccupancy, 0, len(sel.Sessions))}
	var totalCapacity, totalPresences int

	for _, s := range sel.Sessions {
		n := presences[s.ID]
		so := SessionOccupancy{SessionID: s.ID, WorkshopID: s.WorkshopID, Date: s.EffectiveDate(), Presences: n, Capacity: s.Capacity}

		a, ok := byWorkshop[s.WorkshopID]
		if !ok {
			w := sel.Workshop(s.WorkshopID)
			a = &acc{row: WorkshopOccupancy{WorkshopID: w.ID, Name: w.Name, Secteur: w.Secteur}}
			byWorkshop[s.WorkshopID] = a
			order = append(order, s.WorkshopID)
		}
		a.row.Sessions++
		a.row.Presences += n

		if s.Capacity.Valid && s.Capacity.Int > 0 {
			so.Rate = percent(n, s.Capacity.Int)
			a.row.Capacity += s.Capacity.Int
			a.capacityPresences += n
			totalCapacity += s.Capacity.Int
			totalPresences += n
		}
		occ.Sessions = append(occ.Sessions, so)
	}

	occ.Workshops = make([]WorkshopOccupancy, 0, len(order))
	for _, id := range order {
		a := byWorkshop[id]
		a.row.Rate = percent(a.capacityPresences, a.row.Capacity)
		occ.Workshops = append(occ.Workshops, a.row)
	}
	sort.SliceStable(occ.Workshops, func(i, j int) bool {
		if occ.Workshops[i].Secteur != occ.Workshops[j].Secteur {
			return occ.Workshops[i].Secteur < occ.Workshops[j].Secteur
		}
		return occ.Workshops[i].Name < occ.Workshops[j].Name
	})
	occ.Rate = percent(totalPresences, totalCapacity)
	return occ
}

type ParticipantRow struct {
	ID          int       `json:"id"`
	LastName    string    `json:"nom"`
	FirstName   string    `json:"prenom"`
	City        string    `json:"ville"`
	Quartier    string    `json:"quartier"`
	NbPresences int       `json:"nb_presences"`
	NbAteliers  int       `json:"nb_ateliers"`
	FirstDate   null.Time `json:"first_date"`
	LastDate    null.Time `json:"last_date"`
}

func sortParticipants(rows []ParticipantRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if la, lb := strings.ToLower(a.LastName), strings.ToLower(b.LastName); la != lb {
			return la < lb
		}
		if fa, fb := strings.ToLower(a.FirstName), strings.ToLower(b.FirstName); fa != fb {
			return fa < fb
		}
		return a.ID < b.ID
	})
}

// Participants lists the participants of `sel` with their presence counts and first and last dates,
// ordered by name.
func Participants(sel Selection) []ParticipantRow {
	stats := sel.stats()
	rows := make([]ParticipantRow, 0, len(stats))
	for _, st := range stats {
		p := sel.Participant(st.id)
		row := ParticipantRow{
			ID:          p.ID,
			LastName:    p.LastName,
			FirstName:   p.FirstName,
			City:        p.City,
			Quartier:    p.Neighborhood,
			NbPresences: st.presences,
			NbAteliers:  len(st.workshops),
		}
		if st.hasDate {
			row.FirstDate, row.LastDate = null.TimeFrom(st.first), null.TimeFrom(st.last)
		}
		rows = append(rows, row)
	}
	sortParticipants(rows)
	return rows
}

// Participation is what indicators read from attendance.
type Participation struct {
	Sessions   int `json:"sessions"`
	Presences  int `json:"presences"`
	Uniques    int `json:"uniques"`
	Recurrents int `json:"recurrents"`
}

// Metrics computes the participation of workshops `workshopIDs` between `from` and `to`.
// No workshop means no participation.
func Metrics(ds Dataset, workshopIDs []int, from, to null.Time) Participation {
	if len(workshopIDs) == 0 {
		return Participation{}
	}
	ids := make(map[int]bool, len(workshopIDs))
	for _, id := range workshopIDs {
		ids[id] = true
	}
	f := Filter{From: from, To: to}
	f.swap()
	sel := selectWhere(ds, f, func(s Session, _ Workshop) bool { return ids[s.WorkshopID] })
	v := ComputeVolume(sel)
	return Participation{Sessions: v.NbSessions, Presences: v.NbPresences, Uniques: v.NbParticipants, Recurrents: v.NbRecurrents}
}

// AvailableYears lists the years of the live sessions visible in `sc`, optionally for one sector, latest first.
func AvailableYears(ds Dataset, sc scope.Scope, secteur string) []int {
	sel := Select(ds, Filter{Secteur: secteur}, sc)
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, s := range sel.Sessions {
		if d := s.EffectiveDate(); d.Valid && !seen[d.Time.Year()] {
			seen[d.Time.Year()] = true
			years = append(years, d.Time.Year())
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
