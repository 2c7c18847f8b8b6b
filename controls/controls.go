// Package controls holds the shared dashboard control state: the canonical
// ControlSnapshot every connected viewer converges on, and the Store that
// applies field-wise merges to it.
//
// The snapshot is deliberately history-free. There is exactly one canonical
// copy per process, conflict resolution is last-write-wins by arrival order,
// and nothing is persisted; a restart resets to DefaultSnapshot.
package controls

import (
	"time"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Scenario values.
const (
	ScenarioBaseline   = "baseline"
	ScenarioMitigation = "mitigation"
	ScenarioExpansion  = "expansion"
)

// RegionOption is a selectable region with its display label.
type RegionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// RegionOptions is the closed set of selectable regions.
var RegionOptions = []RegionOption{
	{Value: "all", Label: "All Oceans"},
	{Value: "na", Label: "North Atlantic"},
	{Value: "sa", Label: "South Atlantic"},
	{Value: "wp", Label: "West Pacific"},
	{Value: "ep", Label: "East Pacific"},
	{Value: "ind", Label: "Indian"},
	{Value: "arc", Label: "Arctic"},
	{Value: "sou", Label: "Southern"},
}

// ScenarioInfo describes a scenario for display purposes.
type ScenarioInfo struct {
	Label string `json:"label"`
	Blurb string `json:"blurb"`
}

// Scenarios is the closed set of scenarios with presenter copy.
var Scenarios = map[string]ScenarioInfo{
	ScenarioBaseline: {
		Label: "Baseline",
		Blurb: "Steady-state operations with standard mitigation controls active.",
	},
	ScenarioMitigation: {
		Label: "Mitigation",
		Blurb: "Aggressive restoration efforts and carbon draw-down yield healthier metrics.",
	},
	ScenarioExpansion: {
		Label: "Rapid Expansion",
		Blurb: "Construction booms strain support systems and elevate environmental risk.",
	},
}

// ValidRegion reports whether code is in the closed region set.
func ValidRegion(code string) bool {
	for _, opt := range RegionOptions {
		if opt.Value == code {
			return true
		}
	}
	return false
}

// RegionLabel returns the display label for a region code, or the code itself
// if it is unknown.
func RegionLabel(code string) string {
	for _, opt := range RegionOptions {
		if opt.Value == code {
			return opt.Label
		}
	}
	return code
}

// ValidScenario reports whether name is in the closed scenario set.
func ValidScenario(name string) bool {
	_, ok := Scenarios[name]
	return ok
}

// ValidTheme reports whether name is a known theme.
func ValidTheme(name string) bool {
	return name == ThemeLight || name == ThemeDark
}

// Filters are the dataset selection controls.
type Filters struct {
	Region   string `json:"region"`
	Year     int    `json:"year"`
	Scenario string `json:"scenario"`
}

// Snapshot is the canonical shared control state. Timestamp is assigned by the
// Store when a mutation is accepted; it provides a display-ordering hint, not
// a conflict-resolution mechanism.
type Snapshot struct {
	Filters   `json:"filters"`
	Variant   int64     `json:"variant"`
	Theme     string    `json:"theme"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultSnapshot is the state every server process starts from.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Filters: Filters{
			Region:   "all",
			Year:     2041,
			Scenario: ScenarioBaseline,
		},
		Variant: 0,
		Theme:   ThemeDark,
	}
}

// FiltersPatch is a partial update of Filters. Nil fields are left untouched.
type FiltersPatch struct {
	Region   *string `json:"region"`
	Year     *int    `json:"year"`
	Scenario *string `json:"scenario"`
}

// Mutation is a partial snapshot update as submitted by a client. Unknown JSON
// fields (including a client-supplied timestamp) are ignored. Variant is
// decoded as float64 so that any finite JSON number is accepted, matching the
// wire format where clients send Date.now()-style millisecond values.
type Mutation struct {
	Filters *FiltersPatch `json:"filters"`
	Variant *float64      `json:"variant"`
	Theme   *string       `json:"theme"`
}
