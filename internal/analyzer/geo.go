package analyzer

import "github.com/couchcryptid/spaceapi-explorer/internal/domain"

// Region names returned by Region. The grouping is deliberately coarse.
const (
	RegionArctic          = "Arctic"
	RegionNorthAmerica    = "North America"
	RegionEurope          = "Europe"
	RegionAsia            = "Asia"
	RegionSouthAmerica    = "South America"
	RegionAfricaMideast   = "Africa/Middle East"
	RegionAsiaPacific     = "Asia-Pacific"
	RegionSouthHemisphere = "Southern Hemisphere"
	RegionUnlocated       = "Unlocated"
)

// Region maps a coordinate to a rough continental bucket.
func Region(lat, lon float64) string {
	switch {
	case lat > 60:
		return RegionArctic
	case lat >= 30:
		switch {
		case lon >= -140 && lon <= -40:
			return RegionNorthAmerica
		case lon >= -10 && lon <= 40:
			return RegionEurope
		default:
			return RegionAsia
		}
	case lat >= -30:
		switch {
		case lon >= -80 && lon <= -30:
			return RegionSouthAmerica
		case lon >= -20 && lon <= 50:
			return RegionAfricaMideast
		default:
			return RegionAsiaPacific
		}
	default:
		return RegionSouthHemisphere
	}
}

// GeoHistogram counts spaces per region; spaces without coordinates land in RegionUnlocated.
func GeoHistogram(statuses []domain.SpaceStatus) Histogram {
	counts := map[string]int{}
	for _, s := range statuses {
		if !s.Location.HasCoordinates() {
			counts[RegionUnlocated]++
			continue
		}
		counts[Region(*s.Location.Lat, *s.Location.Lon)]++
	}
	return histogram(counts)
}

// Point is a located space, the unit plotted on maps and scatter charts.
type Point struct {
	Name    string  `json:"name" yaml:"name"`
	Lat     float64 `json:"lat" yaml:"lat"`
	Lon     float64 `json:"lon" yaml:"lon"`
	Address string  `json:"address,omitempty" yaml:"address,omitempty"`
	State   string  `json:"state" yaml:"state"`
	Region  string  `json:"region" yaml:"region"`
}

// Points returns the spaces that have coordinates, in input order.
func Points(statuses []domain.SpaceStatus) []Point {
	var out []Point
	for _, s := range statuses {
		if !s.Location.HasCoordinates() {
			continue
		}
		lat, lon := *s.Location.Lat, *s.Location.Lon
		out = append(out, Point{
			Name:    s.Space,
			Lat:     lat,
			Lon:     lon,
			Address: s.Location.Address,
			State:   s.State.Label(),
			Region:  Region(lat, lon),
		})
	}
	return out
}
