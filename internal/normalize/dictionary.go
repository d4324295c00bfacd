// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// ErrInvalidDictionary marks dictionary problems that must abort a run
// before any record is processed.
var ErrInvalidDictionary = errors.New("invalid endpoint dictionary")

// Entry is one validated canonical endpoint with its normalized synonyms.
type Entry struct {
	Code     types.EndpointCode
	Name     string
	Synonyms []string
}

// term is one normalized synonym ready for token matching.
type term struct {
	tokens []string
	code   types.EndpointCode
}

// Dictionary is the validated, read-only endpoint dictionary. It is safe for
// concurrent use.
type Dictionary struct {
	entries map[types.EndpointCode]Entry
	terms   []term
	version string
}

// Load reads the canonical endpoint file and the optional alias file and
// validates them. Both files may be YAML or JSON.
func Load(canonicalPath, aliasesPath string) (*Dictionary, error) {
	data, err := os.ReadFile(canonicalPath)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint dictionary %s: %w", canonicalPath, err)
	}
	defs, err := parseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDictionary, canonicalPath, err)
	}

	var aliases map[string]string
	if aliasesPath != "" {
		raw, err := os.ReadFile(aliasesPath)
		if err != nil {
			return nil, fmt.Errorf("reading alias map %s: %w", aliasesPath, err)
		}
		if err := yaml.Unmarshal(raw, &aliases); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDictionary, aliasesPath, err)
		}
	}

	return New(defs, aliases)
}

// parseDefinitions accepts either a list of {code, name, synonyms} or a
// mapping of code to {name, synonyms}. JSON parses as YAML.
func parseDefinitions(data []byte) ([]types.EndpointDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var defs []types.EndpointDefinition
		if err := root.Decode(&defs); err != nil {
			return nil, err
		}
		return defs, nil
	case yaml.MappingNode:
		var m map[string]struct {
			Name     string   `yaml:"name"`
			Synonyms []string `yaml:"synonyms"`
		}
		if err := root.Decode(&m); err != nil {
			return nil, err
		}
		defs := make([]types.EndpointDefinition, 0, len(m))
		for code, v := range m {
			defs = append(defs, types.EndpointDefinition{
				Code:     types.EndpointCode(code),
				Name:     v.Name,
				Synonyms: v.Synonyms,
			})
		}
		sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
		return defs, nil
	default:
		return nil, fmt.Errorf("expected a list or mapping of endpoint definitions")
	}
}

// New validates definitions and aliases and builds a Dictionary. Aliases map
// a synonym to an endpoint code or display name. Any of the following is
// fatal: an unknown or duplicated code, an entry with no synonyms, an alias
// whose target does not exist, or one synonym claimed by two codes.
func New(defs []types.EndpointDefinition, aliases map[string]string) (*Dictionary, error) {
	d := &Dictionary{entries: make(map[types.EndpointCode]Entry, len(defs))}
	owner := map[string]types.EndpointCode{}

	claim := func(code types.EndpointCode, raw string) error {
		syn := Text(raw)
		if syn == "" {
			return nil
		}
		if prev, ok := owner[syn]; ok {
			if prev != code {
				return fmt.Errorf("%w: synonym %q maps to both %s and %s", ErrInvalidDictionary, raw, prev, code)
			}
			return nil
		}
		owner[syn] = code
		e := d.entries[code]
		e.Synonyms = append(e.Synonyms, syn)
		d.entries[code] = e
		return nil
	}

	for _, def := range defs {
		if _, ok := types.EndpointIndex(def.Code); !ok {
			return nil, fmt.Errorf("%w: unknown endpoint code %q", ErrInvalidDictionary, def.Code)
		}
		if _, dup := d.entries[def.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate endpoint code %q", ErrInvalidDictionary, def.Code)
		}
		if !hasNonBlank(def.Synonyms) {
			return nil, fmt.Errorf("%w: endpoint %s has an empty synonym set", ErrInvalidDictionary, def.Code)
		}
		name := strings.TrimSpace(def.Name)
		if name == "" {
			name = string(def.Code)
		}
		d.entries[def.Code] = Entry{Code: def.Code, Name: name}
	}

	// Declared synonyms first, then display names, then aliases, each in a
	// stable order so the first conflict reported is reproducible.
	for _, code := range types.EndpointCodes {
		e, ok := d.entries[code]
		if !ok {
			continue
		}
		for _, def := range defs {
			if def.Code != code {
				continue
			}
			for _, s := range def.Synonyms {
				if err := claim(code, s); err != nil {
					return nil, err
				}
			}
		}
		if err := claim(code, e.Name); err != nil {
			return nil, err
		}
	}

	aliasKeys := make([]string, 0, len(aliases))
	for k := range aliases {
		aliasKeys = append(aliasKeys, k)
	}
	sort.Strings(aliasKeys)
	for _, alias := range aliasKeys {
		if Text(alias) == "" {
			return nil, fmt.Errorf("%w: blank alias", ErrInvalidDictionary)
		}
		code, ok := d.resolveTarget(aliases[alias])
		if !ok {
			return nil, fmt.Errorf("%w: alias %q targets unknown endpoint %q", ErrInvalidDictionary, alias, aliases[alias])
		}
		if err := claim(code, alias); err != nil {
			return nil, err
		}
	}

	for syn, code := range owner {
		d.terms = append(d.terms, term{tokens: strings.Fields(syn), code: code})
	}
	sort.Slice(d.terms, func(i, j int) bool {
		a, b := d.terms[i], d.terms[j]
		if len(a.tokens) != len(b.tokens) {
			return len(a.tokens) > len(b.tokens)
		}
		return strings.Join(a.tokens, " ") < strings.Join(b.tokens, " ")
	})

	d.version = d.computeVersion()
	return d, nil
}

// resolveTarget maps an alias target (code or display name) to a code.
func (d *Dictionary) resolveTarget(target string) (types.EndpointCode, bool) {
	t := strings.TrimSpace(target)
	if _, ok := d.entries[types.EndpointCode(strings.ToUpper(t))]; ok {
		return types.EndpointCode(strings.ToUpper(t)), true
	}
	want := Text(t)
	for _, code := range types.EndpointCodes {
		if e, ok := d.entries[code]; ok && Text(e.Name) == want {
			return code, true
		}
	}
	return "", false
}

func (d *Dictionary) computeVersion() string {
	h := sha256.New()
	for _, code := range types.EndpointCodes {
		e, ok := d.entries[code]
		if !ok {
			continue
		}
		syns := append([]string(nil), e.Synonyms...)
		sort.Strings(syns)
		fmt.Fprintf(h, "%s\t%s\t%s\n", e.Code, e.Name, strings.Join(syns, "|"))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Version identifies the dictionary content. Adjudication fingerprints
// include it so a curated dictionary naturally bypasses stale cache entries.
func (d *Dictionary) Version() string { return d.version }

// Entry returns the validated entry for code.
func (d *Dictionary) Entry(code types.EndpointCode) (Entry, bool) {
	e, ok := d.entries[code]
	return e, ok
}

// Len returns the number of canonical endpoints defined.
func (d *Dictionary) Len() int { return len(d.entries) }

// SynonymCount returns the number of distinct normalized synonyms.
func (d *Dictionary) SynonymCount() int { return len(d.terms) }

func hasNonBlank(ss []string) bool {
	for _, s := range ss {
		if Text(s) != "" {
			return true
		}
	}
	return false
}
