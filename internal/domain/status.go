package domain

import "time"

// State labels used by analysis and rendering.
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateUnknown = "unknown"
)

// SpaceStatus is the normalized, version-independent view of one status document.
type SpaceStatus struct {
	Space       string        `json:"space" yaml:"space"`
	APIVersions []string      `json:"api_versions" yaml:"api_versions"`
	Version     SchemaVersion `json:"schema_version" yaml:"schema_version"`
	Logo        string        `json:"logo,omitempty" yaml:"logo,omitempty"`
	URL         string        `json:"url,omitempty" yaml:"url,omitempty"`
	Location    Location      `json:"location" yaml:"location"`
	State       State         `json:"state" yaml:"state"`
	Contact     Contact       `json:"contact" yaml:"contact"`

	IssueReportChannels []string            `json:"issue_report_channels,omitempty" yaml:"issue_report_channels,omitempty"`
	Sensors             map[string][]Sensor `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	Events              []Event             `json:"events,omitempty" yaml:"events,omitempty"`
	Projects            []string            `json:"projects,omitempty" yaml:"projects,omitempty"`
	Feeds               map[string]Feed     `json:"feeds,omitempty" yaml:"feeds,omitempty"`
	Cams                []string            `json:"cams,omitempty" yaml:"cams,omitempty"`
	Links               []Link              `json:"links,omitempty" yaml:"links,omitempty"`
	Areas               []Area              `json:"areas,omitempty" yaml:"areas,omitempty"`
	Spacefed            map[string]bool     `json:"spacefed,omitempty" yaml:"spacefed,omitempty"`

	SourceURL string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Location holds the postal and geographic position of a space.
type Location struct {
	Address     string   `json:"address,omitempty" yaml:"address,omitempty"`
	Lat         *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
	Timezone    string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	CountryCode string   `json:"country_code,omitempty" yaml:"country_code,omitempty"`
	Hint        string   `json:"hint,omitempty" yaml:"hint,omitempty"`

	// GeoSource records how coordinates or country were obtained:
	// "" (published), "forward", "reverse" or "failed".
	GeoSource string `json:"geo_source,omitempty" yaml:"geo_source,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Known reports whether the location carries anything a human could use.
func (l Location) Known() bool {
	return l.HasCoordinates() || l.Address != ""
}

// State is the open/closed indicator. Open is nil when the space publishes null.
type State struct {
	Open          *bool  `json:"open" yaml:"open"`
	LastChange    int64  `json:"lastchange,omitempty" yaml:"lastchange,omitempty"` // unix seconds, 0 = unknown
	TriggerPerson string `json:"trigger_person,omitempty" yaml:"trigger_person,omitempty"`
	Message       string `json:"message,omitempty" yaml:"message,omitempty"`
	Icon          *Icon  `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Label returns StateOpen, StateClosed or StateUnknown.
func (s State) Label() string {
	switch {
	case s.Open == nil:
		return StateUnknown
	case *s.Open:
		return StateOpen
	default:
		return StateClosed
	}
}

// LastChangeTime converts LastChange to a UTC time; ok is false when unknown.
func (s State) LastChangeTime() (t time.Time, ok bool) {
	if s.LastChange <= 0 {
		return time.Time{}, false
	}
	return time.Unix(s.LastChange, 0).UTC(), true
}

// Icon holds the URLs of the open and closed state icons.
type Icon struct {
	Open   string `json:"open" yaml:"open"`
	Closed string `json:"closed" yaml:"closed"`
}

// Contact lists the public contact channels of a space.
type Contact struct {
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	IRC       string `json:"irc,omitempty" yaml:"irc,omitempty"`
	ML        string `json:"ml,omitempty" yaml:"ml,omitempty"`
	Twitter   string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	Mastodon  string `json:"mastodon,omitempty" yaml:"mastodon,omitempty"`
	Facebook  string `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Phone     string `json:"phone,omitempty" yaml:"phone,omitempty"`
	SIP       string `json:"sip,omitempty" yaml:"sip,omitempty"`
	Jabber    string `json:"jabber,omitempty" yaml:"jabber,omitempty"`
	Matrix    string `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	IssueMail string `json:"issue_mail,omitempty" yaml:"issue_mail,omitempty"`
}

// ContactMethods is the fixed order in which contact channels are reported.
var ContactMethods = []string{"email", "irc", "ml", "twitter", "mastodon", "facebook", "phone", "sip", "jabber", "matrix"}

// Methods returns the names of the contact channels that are set, in ContactMethods order.
func (c Contact) Methods() []string {
	values := map[string]string{
		"email":    c.Email,
		"irc":      c.IRC,
		"ml":       c.ML,
		"twitter":  c.Twitter,
		"mastodon": c.Mastodon,
		"facebook": c.Facebook,
		"phone":    c.Phone,
		"sip":      c.SIP,
		"jabber":   c.Jabber,
		"matrix":   c.Matrix,
	}
	var out []string
	for _, m := range ContactMethods {
		if values[m] != "" {
			out = append(out, m)
		}
	}
	return out
}

// Sensor is one reading. Value is set for numeric and boolean readings (true = 1);
// Text keeps the published value when it is not numeric.
type Sensor struct {
	Type        string         `json:"type" yaml:"type"`
	Name        string         `json:"name" yaml:"name"`
	Location    string         `json:"location,omitempty" yaml:"location,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string         `json:"unit,omitempty" yaml:"unit,omitempty"`
	Value       *float64       `json:"value,omitempty" yaml:"value,omitempty"`
	Text        string         `json:"text,omitempty" yaml:"text,omitempty"`
	Names       []string       `json:"names,omitempty" yaml:"names,omitempty"`
	LastChange  int64          `json:"lastchange,omitempty" yaml:"lastchange,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// SensorCount returns the number of sensor readings across all types.
func (s SpaceStatus) SensorCount() int {
	n := 0
	for _, list := range s.Sensors {
		n += len(list)
	}
	return n
}

// Event is a recent happening such as a check-in.
type Event struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Extra     string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Feed is a syndication feed (blog, wiki, calendar, flickr).
type Feed struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	URL  string `json:"url" yaml:"url"`
}

// Link is an arbitrary related resource.
type Link struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string `json:"url" yaml:"url"`
}

// Area is a room or floor of the space.
type Area struct {
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string  `json:"description,omitempty" yaml:"description,omitempty"`
	SquareMeters float64 `json:"square_meters" yaml:"square_meters"`
}

// FetchResult pairs a status URL with either its normalized status or the error that prevented it.
type FetchResult struct {
	Name   string
	URL    string
	Status SpaceStatus
	Err    error
}

// Stamp records where and when a status was obtained.
func (s SpaceStatus) Stamp(sourceURL string) SpaceStatus {
	s.SourceURL = sourceURL
	s.FetchedAt = clock.Now().UTC()
	return s
}
