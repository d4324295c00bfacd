// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EndpointDefinition is one canonical endpoint in the dictionary file.
type EndpointDefinition struct {
	Code     EndpointCode `json:"code" yaml:"code"`
	Name     string       `json:"name" yaml:"name"`
	Synonyms []string     `json:"synonyms" yaml:"synonyms"`
}
