// Package domain models hackerspace status records published through the SpaceAPI.
//
// # Data Source
//
// The SpaceAPI directory at https://directory.spaceapi.io/ is a flat JSON object
// mapping a space name to the URL of its status endpoint. Each endpoint is run by
// the space itself and returns a single JSON document describing the space, its
// location, contact channels and whether it is currently open. Endpoints are
// maintained independently, so the same directory mixes several schema generations
// and plenty of hand-edited JSON.
//
// # Schema Generations
//
// Version declaration:
//
//	0.13 and older:  "api": "0.13"
//	14 and newer:    "api_compatibility": ["14", "15"]
//	A payload may declare several compatible versions; the newest known one wins.
//	See [DetectVersion].
//
// Open state:
//
//	0.12 and older:  top-level "open" (bool), "lastchange", "status" (message)
//	0.13 onwards:    "state": {"open": bool|null, "lastchange": <unix>, "message": ...}
//	null means the space does not know (or does not publish) its state.
//
// Location:
//
//	"location": {"address": ..., "lat": <float>, "lon": <float>}
//	14 adds "timezone"; 15 adds "country_code", "hint" and nests "areas".
//	Latitude and longitude are sometimes published as strings; both forms are accepted.
//
// Sensors:
//
//	"sensors": {"<type>": [{"value": ..., "unit": ..., "location": ..., "name": ...}]}
//	Older endpoints publish null lists, null entries and entries without a name.
//	Null lists and entries are dropped; unnamed entries are named "<type>_sensor".
//
// # Required Fields
//
// A status is accepted only when the api version indicator, "space", "location" and
// "state.open" (key present, null allowed) are all there. Legacy top-level "open"
// satisfies "state.open". Everything else is optional in every generation, and a
// missing optional field never fails a parse. See [ParseStatus] and [ValidationError].
package domain
