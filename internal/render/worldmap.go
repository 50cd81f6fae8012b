package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// State colours shared by the map and the charts.
const (
	colorOpen    = "#2ecc71"
	colorClosed  = "#e74c3c"
	colorUnknown = "#95a5a6"
)

func stateColor(state string) string {
	switch state {
	case domain.StateOpen:
		return colorOpen
	case domain.StateClosed:
		return colorClosed
	default:
		return colorUnknown
	}
}

type marker struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address"`
	State   string  `json:"state"`
	URL     string  `json:"url"`
	Color   string  `json:"color"`
}

type mapPage struct {
	Title    string
	Markers  []marker
	Unplaced int
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.legend { background: white; border: 2px solid grey; padding: 8px 12px; font: 14px sans-serif; line-height: 1.6; }
.legend i { display: inline-block; width: 12px; height: 12px; border-radius: 50%; margin-right: 6px; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var spaces = {{.Markers}};
var map = L.map('map').setView([20, 0], 2);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  maxZoom: 18,
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

function popup(s) {
  var div = document.createElement('div');
  var name = document.createElement('b');
  name.textContent = s.name;
  div.appendChild(name);
  div.appendChild(document.createElement('br'));
  div.appendChild(document.createTextNode(s.address || 'No address'));
  div.appendChild(document.createElement('br'));
  div.appendChild(document.createTextNode('Status: ' + s.state.charAt(0).toUpperCase() + s.state.slice(1)));
  if (s.url) {
    div.appendChild(document.createElement('br'));
    var a = document.createElement('a');
    a.href = s.url;
    a.target = '_blank';
    a.rel = 'noopener';
    a.textContent = 'Website';
    div.appendChild(a);
  }
  return div;
}

(spaces || []).forEach(function (s) {
  L.circleMarker([s.lat, s.lon], { radius: 7, color: s.color, fillColor: s.color, fillOpacity: 0.8 })
    .bindPopup(popup(s), { maxWidth: 300 })
    .bindTooltip(s.name)
    .addTo(map);
});

var legend = L.control({ position: 'bottomleft' });
legend.onAdd = function () {
  var div = L.DomUtil.create('div', 'legend');
  div.innerHTML = '<b>Status</b><br>' +
    '<i style="background:#2ecc71"></i>Open<br>' +
    '<i style="background:#e74c3c"></i>Closed<br>' +
    '<i style="background:#95a5a6"></i>Unknown' +
    '<br><small>{{.Unplaced}} spaces without coordinates</small>';
  return div;
};
legend.addTo(map);
</script>
</body>
</html>
`))

// WorldMap writes a standalone Leaflet page with one marker per located space,
// coloured by state. Spaces without coordinates are counted in the legend.
// Website links are kept only for http and https URLs.
func WorldMap(w io.Writer, statuses []domain.SpaceStatus) error {
	page := mapPage{Title: "Hackerspaces of the world", Markers: []marker{}}
	for _, s := range statuses {
		if !s.Location.HasCoordinates() {
			page.Unplaced++
			continue
		}
		state := s.State.Label()
		link := ""
		if domain.IsWebURL(s.URL) {
			link = s.URL
		}
		page.Markers = append(page.Markers, marker{
			Name:    s.Space,
			Lat:     *s.Location.Lat,
			Lon:     *s.Location.Lon,
			Address: s.Location.Address,
			State:   state,
			URL:     link,
			Color:   stateColor(state),
		})
	}
	if err := mapTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render world map: %w", err)
	}
	return nil
}
