package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParseStatus normalizes a status document of any supported schema generation.
//
// It fails with a *ValidationError naming the offending field when a required field
// is missing or unusable, and with a *ValidationError wrapping ErrMalformedJSON when
// the payload is not a JSON object. Optional fields that are absent, null or of an
// unexpected shape are skipped.
func ParseStatus(raw []byte) (SpaceStatus, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return SpaceStatus{}, &ValidationError{
			Field:  "$",
			Reason: "document is not a JSON object",
			Err:    fmt.Errorf("%w: %v", ErrMalformedJSON, err),
		}
	}

	versions, err := parseVersions(doc)
	if err != nil {
		return SpaceStatus{}, err
	}

	if !doc.present("space") {
		return SpaceStatus{}, missing("space")
	}
	space := doc.str("space")
	if space == "" {
		return SpaceStatus{}, invalid("space", "must be a non-empty string")
	}

	location, err := parseLocation(doc)
	if err != nil {
		return SpaceStatus{}, err
	}

	state, err := parseState(doc)
	if err != nil {
		return SpaceStatus{}, err
	}

	channels, _ := doc.list("issue_report_channels")
	projects, _ := doc.list("projects")
	cams, _ := doc.list("cam")

	return SpaceStatus{
		Space:               space,
		APIVersions:         versions,
		Version:             DetectVersion(versions),
		Logo:                doc.str("logo"),
		URL:                 doc.str("url"),
		Location:            location,
		State:               state,
		Contact:             parseContact(doc),
		IssueReportChannels: channels,
		Sensors:             parseSensors(doc),
		Events:              parseEvents(doc),
		Projects:            projects,
		Feeds:               parseFeeds(doc),
		Cams:                cams,
		Links:               parseLinks(doc),
		Areas:               parseAreas(doc),
		Spacefed:            parseSpacefed(doc),
	}, nil
}

// parseVersions reads api_compatibility (14+) and falls back to api (0.13 and older).
func parseVersions(doc object) ([]string, error) {
	if doc.present("api_compatibility") {
		list, ok := doc.list("api_compatibility")
		if !ok {
			return nil, invalid("api_compatibility", "must be a list of version strings")
		}
		if len(list) > 0 {
			return list, nil
		}
	}
	if doc.present("api") {
		v, ok := doc.scalar("api")
		if !ok || v == "" {
			return nil, invalid("api", "must be a version string")
		}
		return []string{v}, nil
	}
	return nil, missing("api_compatibility")
}

func parseLocation(doc object) (Location, error) {
	if !doc.present("location") {
		return Location{}, missing("location")
	}
	lo, ok := doc.obj("location")
	if !ok {
		return Location{}, invalid("location", "must be an object")
	}

	lat, err := coordinate(lo, "lat", 90)
	if err != nil {
		return Location{}, err
	}
	lon, err := coordinate(lo, "lon", 180)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Address:     lo.str("address"),
		Lat:         lat,
		Lon:         lon,
		Timezone:    lo.str("timezone"),
		CountryCode: strings.ToUpper(lo.str("country_code")),
		Hint:        lo.str("hint"),
	}, nil
}

func coordinate(o object, key string, limit float64) (*float64, error) {
	if !o.present(key) {
		return nil, nil
	}
	field := "location." + key
	v, ok := o.number(key)
	if !ok {
		return nil, invalid(field, "must be a number")
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return nil, invalid(field, fmt.Sprintf("must be within [-%g, %g]", limit, limit))
	}
	return &v, nil
}

// parseState prefers the 0.13+ state object and falls back to the legacy top-level fields.
func parseState(doc object) (State, error) {
	if so, ok := doc.obj("state"); ok {
		openRaw, field := so["open"], "state.open"
		if !so.has("open") {
			if !doc.has("open") {
				return State{}, missing("state.open")
			}
			openRaw, field = doc["open"], "open"
		}
		open, err := openFlag(openRaw, field)
		if err != nil {
			return State{}, err
		}
		s := State{
			Open:          open,
			LastChange:    timestamp(so, "lastchange"),
			TriggerPerson: so.str("trigger_person"),
			Message:       so.str("message"),
			Icon:          parseIcon(so),
		}
		if s.LastChange == 0 {
			s.LastChange = timestamp(doc, "lastchange")
		}
		if s.Message == "" {
			s.Message = doc.str("status")
		}
		if s.Icon == nil {
			s.Icon = parseIcon(doc)
		}
		return s, nil
	}
	if doc.present("state") {
		return State{}, invalid("state", "must be an object")
	}

	if doc.has("open") {
		open, err := openFlag(doc["open"], "open")
		if err != nil {
			return State{}, err
		}
		return State{
			Open:       open,
			LastChange: timestamp(doc, "lastchange"),
			Message:    doc.str("status"),
			Icon:       parseIcon(doc),
		}, nil
	}
	return State{}, missing("state")
}

func openFlag(raw json.RawMessage, field string) (*bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, invalid(field, "must be a boolean or null")
	}
	var b bool
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "open":
			b = true
		case "false", "closed":
			b = false
		default:
			return nil, invalid(field, "must be a boolean or null")
		}
	case float64:
		if t != 0 && t != 1 {
			return nil, invalid(field, "must be a boolean or null")
		}
		b = t == 1
	default:
		return nil, invalid(field, "must be a boolean or null")
	}
	return &b, nil
}

// timestamp reads a unix timestamp published as int, float or numeric string.
// Negative and out-of-range values are dropped; millisecond timestamps are scaled down to seconds.
func timestamp(o object, key string) int64 {
	v, ok := o.number(key)
	if !ok || v <= 0 {
		return 0
	}
	if v > 1e12 {
		v /= 1000
	}
	if v >= math.MaxInt64 {
		return 0
	}
	return int64(v)
}

func parseIcon(o object) *Icon {
	io, ok := o.obj("icon")
	if !ok {
		return nil
	}
	icon := Icon{Open: io.str("open"), Closed: io.str("closed")}
	if icon.Open == "" && icon.Closed == "" {
		return nil
	}
	return &icon
}

func parseContact(doc object) Contact {
	co, ok := doc.obj("contact")
	if !ok {
		return Contact{}
	}
	return Contact{
		Email:     co.str("email"),
		IRC:       co.str("irc"),
		ML:        co.str("ml"),
		Twitter:   co.str("twitter"),
		Mastodon:  co.str("mastodon"),
		Facebook:  co.str("facebook"),
		Phone:     co.str("phone"),
		SIP:       co.str("sip"),
		Jabber:    co.str("jabber"),
		Matrix:    co.str("matrix"),
		IssueMail: co.str("issue_mail"),
	}
}

var knownSensorKeys = map[string]bool{
	"name": true, "location": true, "description": true, "unit": true,
	"value": true, "names": true, "lastchange": true,
}

func parseSensors(doc object) map[string][]Sensor {
	so, ok := doc.obj("sensors")
	if !ok {
		return nil
	}
	out := make(map[string][]Sensor, len(so))
	for typ, raw := range so {
		var list []Sensor
		for _, eo := range objectList(raw) {
			list = append(list, parseSensor(typ, eo))
		}
		if len(list) > 0 {
			out[typ] = list
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseSensor(typ string, o object) Sensor {
	names, _ := o.list("names")
	s := Sensor{
		Type:        typ,
		Name:        o.str("name"),
		Location:    o.str("location"),
		Description: o.str("description"),
		Unit:        o.str("unit"),
		Names:       names,
		LastChange:  timestamp(o, "lastchange"),
	}
	if s.Name == "" {
		s.Name = typ + "_sensor"
	}
	if raw, ok := o["value"]; ok {
		s.Value, s.Text = sensorValue(raw)
	}

	keys := make([]string, 0, len(o))
	for k := range o {
		if !knownSensorKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v any
		if err := json.Unmarshal(o[k], &v); err != nil || v == nil {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
	return s
}

func sensorValue(raw json.RawMessage) (*float64, string) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ""
	}
	switch t := v.(type) {
	case float64:
		return &t, ""
	case bool:
		f := 0.0
		if t {
			f = 1
		}
		return &f, strconv.FormatBool(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && finite(f) {
			return &f, ""
		}
		return nil, t
	}
	return nil, ""
}

func parseEvents(doc object) []Event {
	var out []Event
	for _, eo := range objectList(doc["events"]) {
		name := eo.str("name")
		if name == "" {
			continue
		}
		e := Event{Name: name, Type: eo.str("type"), Timestamp: timestamp(eo, "timestamp")}
		if s := eo.str("extra"); s != "" {
			e.Extra = s
		} else if raw, ok := eo["extra"]; ok && !isNull(raw) {
			var buf bytes.Buffer
			if json.Compact(&buf, raw) == nil {
				e.Extra = buf.String()
			}
		}
		out = append(out, e)
	}
	return out
}

// parseFeeds reads "feeds" and its early misspelling "feed".
func parseFeeds(doc object) map[string]Feed {
	fo, ok := doc.obj("feeds")
	if !ok {
		fo, ok = doc.obj("feed")
	}
	if !ok {
		return nil
	}
	out := make(map[string]Feed, len(fo))
	for name := range fo {
		f, ok := fo.obj(name)
		if !ok || f.str("url") == "" {
			continue
		}
		out[name] = Feed{Type: f.str("type"), URL: f.str("url")}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseLinks(doc object) []Link {
	var out []Link
	for _, lo := range objectList(doc["links"]) {
		if lo.str("url") == "" {
			continue
		}
		out = append(out, Link{Name: lo.str("name"), Description: lo.str("description"), URL: lo.str("url")})
	}
	return out
}

// parseAreas reads top-level areas (14) and location.areas (15).
func parseAreas(doc object) []Area {
	raw := doc["areas"]
	if lo, ok := doc.obj("location"); ok && lo.present("areas") {
		raw = lo["areas"]
	}
	var out []Area
	for _, ao := range objectList(raw) {
		sqm, _ := ao.number("square_meters")
		out = append(out, Area{Name: ao.str("name"), Description: ao.str("description"), SquareMeters: sqm})
	}
	return out
}

func parseSpacefed(doc object) map[string]bool {
	so, ok := doc.obj("spacefed")
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(so))
	for k, raw := range so {
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			out[k] = b
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// object is a lazily decoded JSON object; values are decoded on access so that a
// malformed optional field never poisons the rest of the document.
type object map[string]json.RawMessage

func decodeObject(raw []byte) (object, error) {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.New("null document")
	}
	return o, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) present(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

// str returns the trimmed string value of key, or "" when absent or not a string.
func (o object) str(key string) string {
	var s string
	if raw, ok := o[key]; ok && json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

// scalar renders a string or number value as a string.
func (o object) scalar(key string) (string, bool) {
	var v any
	if raw, ok := o[key]; !ok || json.Unmarshal(raw, &v) != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

// number returns a numeric value published either as a JSON number or a numeric string.
func (o object) number(key string) (float64, bool) {
	var v any
	if raw, ok := o[key]; !ok || json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && finite(f)
	}
	return 0, false
}

// finite rejects the NaN and Inf spellings ParseFloat accepts; encoders refuse them.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (o object) obj(key string) (object, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	nested, err := decodeObject(raw)
	return nested, err == nil
}

// list decodes a list of scalars into strings, skipping entries of other shapes.
// ok is false when the value is not a list.
func (o object) list(key string) ([]string, bool) {
	raw, present := o[key]
	if !present || isNull(raw) {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return out, true
}

// objectList decodes a list of objects, dropping nulls and non-objects.
// A single object in place of a list is accepted as a one-element list.
func objectList(raw json.RawMessage) []object {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if o, err := decodeObject(raw); err == nil {
			return []object{o}
		}
		return nil
	}
	out := make([]object, 0, len(items))
	for _, it := range items {
		if o, err := decodeObject(it); err == nil {
			out = append(out, o)
		}
	}
	return out
}
