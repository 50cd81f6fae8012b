// Package analyzer computes descriptive aggregates over normalized status records.
// Every function is pure: no I/O, and time-dependent results take now as an argument.
package analyzer

import (
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// Count is one bucket of a histogram.
type Count struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// Histogram is a list of buckets ordered by descending count, then key.
type Histogram []Count

// Total returns the sum of all buckets.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c.Count
	}
	return n
}

// Get returns the count for key, or 0.
func (h Histogram) Get(key string) int {
	for _, c := range h {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

func histogram(counts map[string]int) Histogram {
	h := make(Histogram, 0, len(counts))
	for k, v := range counts {
		h = append(h, Count{Key: k, Count: v})
	}
	sort.Slice(h, func(i, j int) bool {
		if h[i].Count != h[j].Count {
			return h[i].Count > h[j].Count
		}
		return h[i].Key < h[j].Key
	})
	return h
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// States counts spaces per open/closed/unknown state.
type States struct {
	Open    int `json:"open" yaml:"open"`
	Closed  int `json:"closed" yaml:"closed"`
	Unknown int `json:"unknown" yaml:"unknown"`
}

// Total returns Open + Closed + Unknown.
func (s States) Total() int { return s.Open + s.Closed + s.Unknown }

// StateCounts buckets every status by its state label.
func StateCounts(statuses []domain.SpaceStatus) States {
	var s States
	for _, st := range statuses {
		switch st.State.Label() {
		case domain.StateOpen:
			s.Open++
		case domain.StateClosed:
			s.Closed++
		default:
			s.Unknown++
		}
	}
	return s
}

// Basic is the headline summary of a collection.
type Basic struct {
	Total          int     `json:"total_spaces" yaml:"total_spaces"`
	WithLocation   int     `json:"spaces_with_location" yaml:"spaces_with_location"`
	WithState      int     `json:"spaces_with_state" yaml:"spaces_with_state"`
	Open           int     `json:"currently_open" yaml:"currently_open"`
	OpenPercentage float64 `json:"open_percentage" yaml:"open_percentage"`
}

// BasicStats summarizes a collection. OpenPercentage is relative to spaces with a known state.
func BasicStats(statuses []domain.SpaceStatus) Basic {
	b := Basic{Total: len(statuses)}
	for _, s := range statuses {
		if s.Location.Known() {
			b.WithLocation++
		}
		if s.State.Open != nil {
			b.WithState++
			if *s.State.Open {
				b.Open++
			}
		}
	}
	b.OpenPercentage = percent(b.Open, b.WithState)
	return b
}

// UnknownCountry is the CountryHistogram bucket for spaces without a country code.
const UnknownCountry = "??"

// CountryHistogram counts spaces per ISO country code.
func CountryHistogram(statuses []domain.SpaceStatus) Histogram {
	counts := map[string]int{}
	for _, s := range statuses {
		cc := strings.ToUpper(strings.TrimSpace(s.Location.CountryCode))
		if cc == "" {
			cc = UnknownCountry
		}
		counts[cc]++
	}
	return histogram(counts)
}

// UnknownVersion is the VersionDistribution bucket for spaces declaring nothing.
const UnknownVersion = "unknown"

// VersionDistribution counts declared API compatibility. A space declaring
// several versions is counted once under each of them.
func VersionDistribution(statuses []domain.SpaceStatus) Histogram {
	counts := map[string]int{}
	for _, s := range statuses {
		seen := map[string]bool{}
		for _, v := range s.APIVersions {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			counts[v]++
		}
		if len(seen) == 0 {
			counts[UnknownVersion]++
		}
	}
	return histogram(counts)
}

// SchemaDistribution counts spaces by the schema generation they were read as.
func SchemaDistribution(statuses []domain.SpaceStatus) Histogram {
	counts := map[string]int{}
	for _, s := range statuses {
		counts[s.Version.String()]++
	}
	return histogram(counts)
}

// ContactMethod is the usage of one contact channel.
type ContactMethod struct {
	Method     string  `json:"method" yaml:"method"`
	Count      int     `json:"count" yaml:"count"`
	Percentage float64 `json:"percentage" yaml:"percentage"` // of spaces with any contact
}

// Contacts summarizes contact channel usage.
type Contacts struct {
	SpacesWithContact int             `json:"spaces_with_contact" yaml:"spaces_with_contact"`
	Methods           []ContactMethod `json:"methods" yaml:"methods"`
}

// ContactMethods counts spaces per contact channel, in domain.ContactMethods order.
// Channels nobody uses are omitted.
func ContactMethods(statuses []domain.SpaceStatus) Contacts {
	var c Contacts
	counts := map[string]int{}
	for _, s := range statuses {
		methods := s.Contact.Methods()
		if len(methods) == 0 {
			continue
		}
		c.SpacesWithContact++
		for _, m := range methods {
			counts[m]++
		}
	}
	for _, m := range domain.ContactMethods {
		if counts[m] == 0 {
			continue
		}
		c.Methods = append(c.Methods, ContactMethod{
			Method:     m,
			Count:      counts[m],
			Percentage: percent(counts[m], c.SpacesWithContact),
		})
	}
	return c
}

// sensorExamplesPerSpace caps how many readings of one type a single space contributes.
const sensorExamplesPerSpace = 2

// SensorExample is one reading kept for illustration.
type SensorExample struct {
	Space string   `json:"space" yaml:"space"`
	Name  string   `json:"name" yaml:"name"`
	Unit  string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Text  string   `json:"text,omitempty" yaml:"text,omitempty"`
}

// Sensors summarizes published sensor readings.
type Sensors struct {
	SpacesWithSensors int                        `json:"spaces_with_sensors" yaml:"spaces_with_sensors"`
	Types             Histogram                  `json:"sensor_types" yaml:"sensor_types"`
	Total             int                        `json:"total_sensors" yaml:"total_sensors"`
	Examples          map[string][]SensorExample `json:"sensor_examples" yaml:"sensor_examples"`
}

// SensorSummary counts readings per sensor type and keeps a few examples of each.
func SensorSummary(statuses []domain.SpaceStatus) Sensors {
	out := Sensors{Examples: map[string][]SensorExample{}}
	counts := map[string]int{}
	for _, s := range statuses {
		if s.SensorCount() == 0 {
			continue
		}
		out.SpacesWithSensors++
		types := make([]string, 0, len(s.Sensors))
		for typ := range s.Sensors {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			readings := s.Sensors[typ]
			counts[typ] += len(readings)
			out.Total += len(readings)
			for i, r := range readings {
				if i == sensorExamplesPerSpace {
					break
				}
				out.Examples[typ] = append(out.Examples[typ], SensorExample{
					Space: s.Space, Name: r.Name, Unit: r.Unit, Value: r.Value, Text: r.Text,
				})
			}
		}
	}
	out.Types = histogram(counts)
	return out
}

// recentWindow is how fresh a state change must be to count as recent.
const recentWindow = 24 * time.Hour

// StatusDetail is the per-space line of an opening pattern report.
type StatusDetail struct {
	Name             string    `json:"name" yaml:"name"`
	State            string    `json:"state" yaml:"state"`
	LastChange       time.Time `json:"lastchange,omitzero" yaml:"lastchange,omitempty"`
	HoursSinceChange *float64  `json:"hours_since_change,omitempty" yaml:"hours_since_change,omitempty"`
	Message          string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Openings describes how spaces are currently open and how recently that changed.
type Openings struct {
	WithStatus    int            `json:"total_with_status" yaml:"total_with_status"`
	Open          int            `json:"open_count" yaml:"open_count"`
	Closed        int            `json:"closed_count" yaml:"closed_count"`
	RecentChanges int            `json:"recent_changes" yaml:"recent_changes"`
	OpenSpaces    []string       `json:"open_spaces" yaml:"open_spaces"`
	Details       []StatusDetail `json:"status_details" yaml:"status_details"`
}

// OpeningPatterns reports open and closed spaces and counts state changes within the last
// 24 hours before now. Spaces without a last change timestamp never count as recent.
func OpeningPatterns(statuses []domain.SpaceStatus, now time.Time) Openings {
	var o Openings
	for _, s := range statuses {
		d := StatusDetail{Name: s.Space, State: s.State.Label(), Message: s.State.Message}
		switch d.State {
		case domain.StateOpen:
			o.Open++
			o.OpenSpaces = append(o.OpenSpaces, s.Space)
		case domain.StateClosed:
			o.Closed++
		}
		if t, ok := s.State.LastChangeTime(); ok {
			d.LastChange = t
			age := now.Sub(t)
			hours := age.Hours()
			d.HoursSinceChange = &hours
			if age >= 0 && age < recentWindow {
				o.RecentChanges++
			}
		}
		o.Details = append(o.Details, d)
	}
	o.WithStatus = o.Open + o.Closed
	return o
}
