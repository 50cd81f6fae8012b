package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/spaceapi-explorer/internal/analyzer"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
	FormatCSV  Format = "csv"
)

// Formats lists every supported export format.
var Formats = []Format{FormatJSON, FormatYAML, FormatCBOR, FormatCSV}

// ParseFormat accepts a format name, case-insensitively; "yml" is an alias for yaml.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatCBOR, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml, cbor or csv)", s)
}

// cborEncMode writes deterministic CBOR with RFC 3339 timestamps; struct keys come from json tags.
var cborEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("create CBOR encoder mode: %v", err))
	}
	return em
}()

// Export writes v in a structured format. CSV is only defined for rows; use WriteCSV.
func Export(w io.Writer, f Format, v any) error {
	var err error
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(v); err == nil {
			err = enc.Close()
		}
	case FormatCBOR:
		err = cborEncMode.NewEncoder(w).Encode(v)
	case FormatCSV:
		rows, ok := v.([]analyzer.Row)
		if !ok {
			return fmt.Errorf("export csv: unsupported value %T", v)
		}
		return WriteCSV(w, rows)
	default:
		return fmt.Errorf("export: unknown format %q", f)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}
	return nil
}

// csvHeader matches the column order written by WriteCSV.
var csvHeader = []string{
	"name", "url", "logo", "lat", "lon", "address", "timezone", "country_code",
	"state", "lastchange", "has_contact", "has_sensors", "has_projects", "api_version",
}

// WriteCSV writes rows with a header line. Unknown numbers are written as empty cells.
func WriteCSV(w io.Writer, rows []analyzer.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Name, r.URL, r.Logo, coord(r.Lat), coord(r.Lon), r.Address, r.Timezone, r.CountryCode,
			r.State, "", strconv.FormatBool(r.HasContact), strconv.FormatBool(r.HasSensors),
			strconv.FormatBool(r.HasProjects), r.APIVersion,
		}
		if r.LastChange > 0 {
			rec[9] = strconv.FormatInt(r.LastChange, 10)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

func coord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
