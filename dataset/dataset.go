// Package dataset generates the fabricated monitoring series the dashboard
// renders. Output is a pure function of the control snapshot: the same
// region/year/scenario/variant always produces the same dataset, so every
// viewer holding the same snapshot draws identical charts.
package dataset

import (
	"math"

	"github.com/oceanbureau/goosd/controls"
)

// Months are the series labels for monthly-cadence charts.
var Months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// TempRegions labels the temperature distribution chart.
var TempRegions = []string{"Arctic", "Mid-Lat", "Tropics", "S. Ocean"}

// FishRegions labels the biomass radar chart.
var FishRegions = []string{"N. Atl", "S. Atl", "Ind.", "W. Pac", "E. Pac"}

// ReefZones labels the reef module health chart.
var ReefZones = []string{"Alpha", "Brine", "Coralum", "Dorsal"}

var baseData = struct {
	toxins    []float64
	surface   []float64
	depth     []float64
	fish      []float64
	reefOK    []float64
	reefWatch []float64
	reefCrit  []float64
	desal     []float64
	reclaimed []float64
	o2        []float64
	co2       []float64
	pop       []float64
	kwh       []float64
}{
	toxins:    []float64{52, 54, 55, 58, 60, 63, 65, 67, 69, 70, 72, 74},
	surface:   []float64{3, 18, 28, 6},
	depth:     []float64{-1, 8, 13, 1},
	fish:      []float64{92, 78, 84, 71, 88},
	reefOK:    []float64{62, 55, 68, 50},
	reefWatch: []float64{28, 32, 22, 30},
	reefCrit:  []float64{10, 13, 10, 20},
	desal:     []float64{186, 190, 196, 205, 212, 219, 226, 232, 228, 220, 210, 198},
	reclaimed: []float64{47, 48, 50, 51, 53, 54, 55, 56, 55, 54, 52, 50},
	o2:        []float64{6.2, 6.28, 6.35, 6.32, 6.3, 6.38, 6.42, 6.4, 6.37, 6.35, 6.33, 6.31},
	co2:       []float64{520, 521, 524, 527, 529, 532, 534, 536, 539, 541, 544, 546},
	pop:       []float64{42, 35, 51, 30, 28},
	kwh:       []float64{14, 16, 12, 17, 13},
}

type watchlistSeed struct {
	site   string
	region string
	toxin  float64
	fish   float64
	reef   float64
}

var watchlistBase = []watchlistSeed{
	{"Alpha-03", "na", 72, 78, 55},
	{"Brine-12", "wp", 69, 71, 50},
	{"Coralum-07", "ind", 65, 82, 62},
	{"Dorsal-02", "ep", 75, 68, 48},
	{"Eddy-09", "sa", 62, 86, 60},
}

// Incident is a timeline entry. Severity is rescored per scenario.
type Incident struct {
	Date     string `json:"date"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Severity string `json:"severity"`
}

var incidentsBase = []struct {
	date, title, detail string
	baseScore           float64
}{
	{"2041-03-12", "Microplastic spike — Tropics", "Desalination intake filters saturated; short-term advisory issued.", 0.8},
	{"2041-04-08", "Overfishing alert — Dorsal", "Catch per unit effort exceeded threshold for two weeks.", 0.55},
	{"2041-04-22", "Seafloor stress", "Pile driving near trench raised monitoring alarms; work paused.", 0.55},
	{"2041-05-03", "Biotoxin bloom", "Dinoflagellate bloom detected near Brine sector.", 0.8},
}

// MapPoint is one risk-heatmap bubble.
type MapPoint struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"`
	Status    string  `json:"status"`
}

var mapBase = []struct {
	id, label string
	x, y      float64
	base      float64
}{
	{"na", "North Atlantic", 41, 38, 0.78},
	{"sa", "South Atlantic", 45, 68, 0.52},
	{"ind", "Indian Ocean", 70, 55, 0.61},
	{"ep", "East Pacific", 15, 56, 0.72},
	{"wp", "West Pacific", 90, 45, 0.48},
	{"arc", "Arctic", 51, 18, 0.57},
}

// WatchlistRow is one compliance watchlist entry.
type WatchlistRow struct {
	Site   string `json:"site"`
	Region string `json:"region"`
	Toxin  int    `json:"toxin"`
	Fish   int    `json:"fish"`
	Reef   int    `json:"reef"`
	Risk   string `json:"risk"`
}

// Trends are the KPI sparkline series.
type Trends struct {
	Toxin      []float64 `json:"toxin"`
	Fish       []float64 `json:"fish"`
	O2         []float64 `json:"o2"`
	Compliance []int     `json:"compliance"`
}

// KPIs are the quick-look aggregates.
type KPIs struct {
	Toxin      float64 `json:"toxin"`
	Fish       int     `json:"fish"`
	O2         float64 `json:"o2"`
	Compliance int     `json:"compliance"`
	Trends     Trends  `json:"trends"`
}

// Dashboard is the full generated dataset for one snapshot.
type Dashboard struct {
	Toxins struct {
		Global  []float64 `json:"global"`
		North   []float64 `json:"north"`
		Tropics []float64 `json:"tropics"`
	} `json:"toxins"`
	Temps struct {
		Surface []float64 `json:"surface"`
		Depth   []float64 `json:"depth"`
	} `json:"temps"`
	Fish []int `json:"fish"`
	Reef struct {
		Healthy  []int `json:"healthy"`
		Watch    []int `json:"watch"`
		Critical []int `json:"critical"`
	} `json:"reef"`
	Desal     []int     `json:"desal"`
	Reclaimed []float64 `json:"reclaimed"`
	Gasses    struct {
		O2  []float64 `json:"o2"`
		CO2 []int     `json:"co2"`
	} `json:"gasses"`
	Occupancy struct {
		Population []int     `json:"population"`
		KWh        []float64 `json:"kwh"`
	} `json:"occupancy"`
	KPIs      KPIs           `json:"kpis"`
	Watchlist []WatchlistRow `json:"watchlist"`
	Incidents []Incident     `json:"incidents"`
	Map       []MapPoint     `json:"map"`
	EnergyMix []int          `json:"energyMix"`
}

// rng is a mulberry32 PRNG. The seed encodes year, variant and scenario, so
// identical controls reproduce identical noise.
type rng struct {
	t uint32
}

func newRNG(seed int64) *rng {
	return &rng{t: uint32(seed) + 0x6d2b79f5}
}

func (r *rng) next() float64 {
	t := r.t
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	r.t = t + 0x6d2b79f5
	return float64(t^(t>>14)) / 4294967296.0
}

// noise returns a value in (-0.5, 0.5).
func (r *rng) noise() float64 { return r.next() - 0.5 }

func clamp(v, min, max float64) float64 {
	return math.Min(max, math.Max(min, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func avgInt(values []int) float64 {
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func avg(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// scenarioParams returns the multiplicative factor and additive shift a
// scenario applies to most series.
func scenarioParams(scenario string) (factor, shift float64) {
	switch scenario {
	case controls.ScenarioExpansion:
		return 1.08, 4
	case controls.ScenarioMitigation:
		return 0.94, -3
	default:
		return 1, 0
	}
}

// pick returns e, m or b depending on the scenario (expansion, mitigation,
// baseline). A large share of the series tweaks reduce to this three-way
// choice.
func pick(scenario string, e, m, b float64) float64 {
	switch scenario {
	case controls.ScenarioExpansion:
		return e
	case controls.ScenarioMitigation:
		return m
	default:
		return b
	}
}

// Generate produces the dashboard dataset for a snapshot.
func Generate(snap controls.Snapshot) *Dashboard {
	year := float64(snap.Filters.Year)
	scenario := snap.Filters.Scenario
	factor, shift := scenarioParams(scenario)

	var scenarioChar int64
	if len(scenario) > 0 {
		scenarioChar = int64(scenario[0])
	}
	rand := newRNG(int64(snap.Filters.Year)*131 + snap.Variant*971 + scenarioChar)

	d := &Dashboard{}

	global := make([]float64, len(baseData.toxins))
	for i, v := range baseData.toxins {
		yearShift := (year - 2041) * 0.8
		seasonal := math.Sin(float64(i)/12*math.Pi*2) * 1.4
		global[i] = round1(v*factor + shift + yearShift + seasonal + rand.noise()*2.6)
	}
	d.Toxins.Global = global

	north := make([]float64, len(global))
	for i, v := range global {
		seasonal := 1.4
		if i%3 == 0 {
			seasonal = 2.2
		}
		north[i] = round1(v + seasonal + rand.noise()*2.4)
	}
	d.Toxins.North = north

	tropics := make([]float64, len(global))
	for i, v := range global {
		seasonal := math.Sin(float64(i+2)/2) * 1.8
		tropics[i] = round1(v - 6 + seasonal + rand.noise()*2.2)
	}
	d.Toxins.Tropics = tropics

	surface := make([]float64, len(baseData.surface))
	for i, v := range baseData.surface {
		surface[i] = round1(v + (factor-1)*6 + (year-2041)*0.25 + rand.noise()*1.1)
	}
	d.Temps.Surface = surface

	depth := make([]float64, len(baseData.depth))
	for i, v := range baseData.depth {
		depth[i] = round1(v + (factor-1)*3 + (year-2041)*0.18 + rand.noise()*0.9)
	}
	d.Temps.Depth = depth

	fish := make([]int, len(baseData.fish))
	for i, v := range baseData.fish {
		bonus := pick(scenario, -7, 6, 0)
		adjusted := v + bonus + (2041-year)*1.4 + rand.noise()*5.5
		fish[i] = int(math.Round(clamp(adjusted, 58, 108)))
	}
	d.Fish = fish

	reefOK := make([]int, len(baseData.reefOK))
	for i, v := range baseData.reefOK {
		s := pick(scenario, -7, 8, 0)
		reefOK[i] = int(math.Round(clamp(v+s+(2041-year)*1.2+rand.noise()*4.5, 35, 92)))
	}
	d.Reef.Healthy = reefOK

	// Downstream series work from the rounded values, not the raw floats.
	reefWatch := make([]int, len(baseData.reefWatch))
	for i, v := range baseData.reefWatch {
		base := v - (float64(reefOK[i])-baseData.reefOK[i])*0.4
		drift := pick(scenario, 4, -3, 0)
		reefWatch[i] = int(math.Round(clamp(base+drift+rand.noise()*3.5, 8, 46)))
	}
	d.Reef.Watch = reefWatch

	reefCrit := make([]int, len(baseData.reefCrit))
	for i := range baseData.reefCrit {
		remainder := 100 - float64(reefOK[i]) - float64(reefWatch[i])
		drift := pick(scenario, 4, -2, 0)
		reefCrit[i] = int(math.Round(clamp(remainder+drift+rand.noise()*2.4, 3, 35)))
	}
	d.Reef.Critical = reefCrit

	desal := make([]int, len(baseData.desal))
	for i, v := range baseData.desal {
		swing := (factor-1)*25 + (year-2041)*4
		desal[i] = int(math.Round(clamp(v+swing+rand.noise()*9, 160, 260)))
	}
	d.Desal = desal

	reclaimed := make([]float64, len(baseData.reclaimed))
	for i, v := range baseData.reclaimed {
		swing := pick(scenario, -3, 4, 0)
		reclaimed[i] = round1(v + swing + rand.noise()*2.2)
	}
	d.Reclaimed = reclaimed

	o2 := make([]float64, len(baseData.o2))
	for i, v := range baseData.o2 {
		swing := pick(scenario, -0.16, 0.12, 0)
		o2[i] = round2(v + swing + (2041-year)*0.03 + rand.noise()*0.12)
	}
	d.Gasses.O2 = o2

	co2 := make([]int, len(baseData.co2))
	for i, v := range baseData.co2 {
		swing := pick(scenario, 6, -4, 0)
		co2[i] = int(math.Round(v + swing + (year-2041)*1.6 + rand.noise()*6))
	}
	d.Gasses.CO2 = co2

	pop := make([]int, len(baseData.pop))
	for i, v := range baseData.pop {
		growth := pick(scenario, 6, -1, 2)
		pop[i] = int(math.Round(clamp(v+growth+(year-2041)*0.8+rand.noise()*2.4, 18, 78)))
	}
	d.Occupancy.Population = pop

	kwh := make([]float64, len(baseData.kwh))
	for i, v := range baseData.kwh {
		swing := pick(scenario, 3, -1.5, 0)
		kwh[i] = round1(v + swing + rand.noise()*1.8)
	}
	d.Occupancy.KWh = kwh

	fishAvg := avgInt(fish)
	fishTrend := make([]float64, len(Months))
	for i := range Months {
		wobble := math.Sin(float64(i)/2) * 3.4
		fishTrend[i] = round1(fishAvg + wobble + rand.noise()*2.2)
	}
	complianceTrend := make([]int, len(Months))
	for i := range Months {
		base := 92 + math.Sin(float64(i)/3)*3
		adjust := pick(scenario, -6, 4, 0)
		complianceTrend[i] = int(math.Round(clamp(base+adjust+rand.noise()*3, 60, 100)))
	}

	toxinAvg := avg(global)
	o2Avg := avg(o2)
	compliance := int(math.Round(clamp(
		100-(toxinAvg-50)*0.9-(85-fishAvg)*0.8+pick(scenario, -5, 6, 0), 52, 99)))

	d.KPIs = KPIs{
		Toxin:      round1(toxinAvg),
		Fish:       int(math.Round(fishAvg)),
		O2:         round2(o2Avg),
		Compliance: compliance,
		Trends: Trends{
			Toxin:      global,
			Fish:       fishTrend,
			O2:         o2,
			Compliance: complianceTrend,
		},
	}

	watchlist := make([]WatchlistRow, len(watchlistBase))
	for i, row := range watchlistBase {
		toxin := math.Round(clamp(row.toxin+shift+(year-2041)*1.1+rand.noise()*5.5, 55, 96))
		fishV := math.Round(clamp(row.fish+pick(scenario, -6, 4, 0)+rand.noise()*4.5, 58, 96))
		reef := math.Round(clamp(row.reef+pick(scenario, -7, 7, 0)+rand.noise()*4.8, 42, 91))
		riskScore := toxin*0.45 + (100-fishV)*0.3 + (70-reef)*0.35
		risk := "Watch"
		switch {
		case riskScore > 32:
			risk = "High"
		case riskScore > 18:
			risk = "Moderate"
		}
		watchlist[i] = WatchlistRow{
			Site:   row.site,
			Region: row.region,
			Toxin:  int(toxin),
			Fish:   int(fishV),
			Reef:   int(reef),
			Risk:   risk,
		}
	}
	d.Watchlist = watchlist

	incidents := make([]Incident, len(incidentsBase))
	for i, item := range incidentsBase {
		severityShift := pick(scenario, 0.12, -0.12, 0)
		score := clamp(item.baseScore+severityShift+rand.noise()*0.08, 0, 1)
		severity := "info"
		switch {
		case score > 0.72:
			severity = "critical"
		case score > 0.48:
			severity = "warning"
		}
		incidents[i] = Incident{Date: item.date, Title: item.title, Detail: item.detail, Severity: severity}
	}
	d.Incidents = incidents

	points := make([]MapPoint, len(mapBase))
	for i, p := range mapBase {
		s := pick(scenario, 0.08, -0.06, 0)
		intensity := clamp(p.base+s+(year-2041)*0.025+rand.noise()*0.07, 0.2, 0.98)
		status := "calm"
		switch {
		case intensity > 0.72:
			status = "critical"
		case intensity > 0.55:
			status = "warning"
		}
		points[i] = MapPoint{ID: p.id, Label: p.label, X: p.x, Y: p.y, Intensity: intensity, Status: status}
	}
	d.Map = points

	switch scenario {
	case controls.ScenarioExpansion:
		d.EnergyMix = []int{32, 26, 28, 14}
	case controls.ScenarioMitigation:
		d.EnergyMix = []int{42, 28, 26, 4}
	default:
		d.EnergyMix = []int{38, 24, 30, 8}
	}

	return d
}

// FilterWatchlist returns the rows matching a region code ("all" keeps every
// row), mirroring the dashboard's region filter.
func FilterWatchlist(rows []WatchlistRow, region string) []WatchlistRow {
	if region == "all" {
		return rows
	}
	out := make([]WatchlistRow, 0, len(rows))
	for _, row := range rows {
		if row.Region == region {
			out = append(out, row)
		}
	}
	return out
}
