package analyzer

import (
	"strings"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// Criteria selects spaces. Zero fields do not constrain the match.
type Criteria struct {
	Open         *bool // match only spaces whose state is known and equal
	HasLocation  bool
	HasSensors   bool
	NameContains string // case-insensitive
}

// Match reports whether s satisfies every set criterion.
func (c Criteria) Match(s domain.SpaceStatus) bool {
	if c.Open != nil && (s.State.Open == nil || *s.State.Open != *c.Open) {
		return false
	}
	if c.HasLocation && !s.Location.Known() {
		return false
	}
	if c.HasSensors && s.SensorCount() == 0 {
		return false
	}
	if c.NameContains != "" && !strings.Contains(strings.ToLower(s.Space), strings.ToLower(c.NameContains)) {
		return false
	}
	return true
}

// Filter returns the statuses matching c, preserving order.
func Filter(statuses []domain.SpaceStatus, c Criteria) []domain.SpaceStatus {
	var out []domain.SpaceStatus
	for _, s := range statuses {
		if c.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Row is the flat, one-line-per-space view used for tabular exports.
type Row struct {
	Name        string   `json:"name" yaml:"name"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Logo        string   `json:"logo,omitempty" yaml:"logo,omitempty"`
	Lat         *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
	Address     string   `json:"address,omitempty" yaml:"address,omitempty"`
	Timezone    string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	CountryCode string   `json:"country_code,omitempty" yaml:"country_code,omitempty"`
	State       string   `json:"state" yaml:"state"`
	LastChange  int64    `json:"lastchange,omitempty" yaml:"lastchange,omitempty"`
	HasContact  bool     `json:"has_contact" yaml:"has_contact"`
	HasSensors  bool     `json:"has_sensors" yaml:"has_sensors"`
	HasProjects bool     `json:"has_projects" yaml:"has_projects"`
	APIVersion  string   `json:"api_version,omitempty" yaml:"api_version,omitempty"` // first declared
}

// Rows flattens statuses into one Row each.
func Rows(statuses []domain.SpaceStatus) []Row {
	out := make([]Row, 0, len(statuses))
	for _, s := range statuses {
		r := Row{
			Name:        s.Space,
			URL:         s.URL,
			Logo:        s.Logo,
			Lat:         s.Location.Lat,
			Lon:         s.Location.Lon,
			Address:     s.Location.Address,
			Timezone:    s.Location.Timezone,
			CountryCode: s.Location.CountryCode,
			State:       s.State.Label(),
			LastChange:  s.State.LastChange,
			HasContact:  len(s.Contact.Methods()) > 0,
			HasSensors:  s.SensorCount() > 0,
			HasProjects: len(s.Projects) > 0,
		}
		if len(s.APIVersions) > 0 {
			r.APIVersion = s.APIVersions[0]
		}
		out = append(out, r)
	}
	return out
}
