package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DirectoryEntry is one listing of the SpaceAPI directory.
type DirectoryEntry struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Directory is the parsed directory listing, sorted by name.
// Rejected lists names whose URL was not an absolute http(s) URL.
type Directory struct {
	Entries   []DirectoryEntry `json:"entries" yaml:"entries"`
	Rejected  []string         `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	FetchedAt time.Time        `json:"fetched_at" yaml:"fetched_at"`
}

// ParseDirectory decodes the directory's {"name": "url"} object.
func ParseDirectory(raw []byte) (Directory, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Directory{}, fmt.Errorf("parse directory: %w: %v", ErrMalformedJSON, err)
	}
	if doc == nil {
		return Directory{}, fmt.Errorf("parse directory: %w: null document", ErrMalformedJSON)
	}

	dir := Directory{
		Entries:   make([]DirectoryEntry, 0, len(doc)),
		FetchedAt: clock.Now().UTC(),
	}
	for name, v := range doc {
		s, ok := v.(string)
		if !ok || !IsWebURL(s) {
			dir.Rejected = append(dir.Rejected, name)
			continue
		}
		dir.Entries = append(dir.Entries, DirectoryEntry{Name: name, URL: strings.TrimSpace(s)})
	}
	sort.Slice(dir.Entries, func(i, j int) bool { return dir.Entries[i].Name < dir.Entries[j].Name })
	sort.Strings(dir.Rejected)
	return dir, nil
}

// IsWebURL reports whether s is an absolute http or https URL.
func IsWebURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Len returns the number of usable entries.
func (d Directory) Len() int { return len(d.Entries) }

// Lookup finds an entry by exact name.
func (d Directory) Lookup(name string) (DirectoryEntry, bool) {
	i := sort.Search(len(d.Entries), func(i int) bool { return d.Entries[i].Name >= name })
	if i < len(d.Entries) && d.Entries[i].Name == name {
		return d.Entries[i], true
	}
	return DirectoryEntry{}, false
}

// Search returns entries whose name contains query, ignoring case.
func (d Directory) Search(query string) []DirectoryEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []DirectoryEntry
	for _, e := range d.Entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// Head returns at most n entries; n <= 0 returns all of them.
func (d Directory) Head(n int) []DirectoryEntry {
	if n <= 0 || n >= len(d.Entries) {
		return d.Entries
	}
	return d.Entries[:n]
}

// Names returns the entry names in directory order.
func (d Directory) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Name
	}
	return out
}
