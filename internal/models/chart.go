// Package models defines the domain types shared by the chart library.
package models

import (
	"strings"
	"time"
)

// ChartFile describes a chart file on disk.
type ChartFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Analysis is the cached result of labelling a chart. Fingerprint names the
// analyzer settings and key the labels were produced under.
type Analysis struct {
	Key         string   `json:"key" msgpack:"key"`
	Chords      []string `json:"chords" msgpack:"chords"`
	Labels      []string `json:"labels" msgpack:"labels"`
	Fingerprint string   `json:"fingerprint" msgpack:"fingerprint"`
}

// LocalKeys returns the distinct local keys named by labels, in first-seen
// order. Labels in the tonic carry no key and are skipped.
func (a *Analysis) LocalKeys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range a.Labels {
		_, key, ok := cutKey(l)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// cutKey splits "V7/ii" into "V7" and "ii". A chord prefix ("A7:") and a
// runner-up suffix (" (...)") are ignored.
func cutKey(label string) (string, string, bool) {
	if _, after, ok := strings.Cut(label, ":"); ok {
		label = after
	}
	label, _, _ = strings.Cut(label, " ")
	fn, key, ok := strings.Cut(label, "/")
	if !ok || key == "" {
		return label, "", false
	}
	return fn, key, true
}
