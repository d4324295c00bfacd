// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reporting

import (
	"encoding/json"
	"strings"
)

// measure is one reported outcome measure. Two layouts are accepted: the
// registry's nested classes/categories/measurements and the compact
// groups list produced by the retrieval extract.
type measure struct {
	Title          string         `json:"title"`
	Type           string         `json:"type"`
	ParamType      string         `json:"paramType"`
	DispersionType string         `json:"dispersionType"`
	Classes        []measureClass `json:"classes"`
	Groups         []compactGroup `json:"groups"`
}

type measureClass struct {
	Categories []struct {
		Measurements []map[string]any `json:"measurements"`
	} `json:"categories"`
}

type compactGroup struct {
	Group  string `json:"group"`
	Value  any    `json:"value"`
	Spread any    `json:"spread"`
	Lower  any    `json:"lower"`
	Upper  any    `json:"upper"`
}

// fieldKind describes how a results cell was parsed.
type fieldKind int

const (
	fieldEmpty fieldKind = iota
	fieldStructured
	fieldText
	fieldMalformed
)

// classify reports whether cell is blank, a JSON value, free text, or
// something that looks like JSON but does not parse.
func classify(cell string) (fieldKind, any) {
	t := strings.TrimSpace(cell)
	if t == "" || t == "null" || t == "[]" || t == "{}" {
		return fieldEmpty, nil
	}
	if !strings.HasPrefix(t, "[") && !strings.HasPrefix(t, "{") {
		return fieldText, nil
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return fieldMalformed, nil
	}
	return fieldStructured, v
}

// parseMeasures decodes a structured outcome-measures cell. A single object
// is treated as a list of one; plain string elements become titles.
func parseMeasures(cell string) ([]measure, error) {
	t := strings.TrimSpace(cell)
	if strings.HasPrefix(t, "{") {
		t = "[" + t + "]"
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(t), &raw); err != nil {
		return nil, err
	}
	ms := make([]measure, 0, len(raw))
	for _, r := range raw {
		var title string
		if err := json.Unmarshal(r, &title); err == nil {
			ms = append(ms, measure{Title: title})
			continue
		}
		var m measure
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func (m measure) hasValues() bool {
	for _, cls := range m.Classes {
		for _, cat := range cls.Categories {
			for _, meas := range cat.Measurements {
				if _, ok := meas["value"]; ok {
					return true
				}
			}
		}
	}
	for _, g := range m.Groups {
		if present(g.Value) {
			return true
		}
	}
	return false
}

func (m measure) hasLimits() bool {
	for _, cls := range m.Classes {
		for _, cat := range cls.Categories {
			for _, meas := range cat.Measurements {
				if _, ok := meas["lowerLimit"]; ok {
					return true
				}
				if _, ok := meas["upperLimit"]; ok {
					return true
				}
			}
		}
	}
	for _, g := range m.Groups {
		if present(g.Lower) || present(g.Upper) || present(g.Spread) {
			return true
		}
	}
	return false
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return true
	}
}
