// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adjudicate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const shapeSchemaURL = "https://trial-enricher.local/schemas/decision-shape.schema.json"

// shapeSchema describes a well-formed response regardless of the question.
const shapeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["labels"],
  "properties": {
    "labels": {"type": "array", "items": {"type": "string"}},
    "reason": {"type": "string"}
  }
}`

var (
	shapeOnce     sync.Once
	shapeCompiled *jsonschema.Schema
	shapeErr      error

	constraintMu    sync.Mutex
	constraintCache = map[string]*jsonschema.Schema{}
)

func compileSchema(url, doc string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("decision schema load failed: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("decision schema compile failed: %w", err)
	}
	return s, nil
}

func shape() (*jsonschema.Schema, error) {
	shapeOnce.Do(func() {
		shapeCompiled, shapeErr = compileSchema(shapeSchemaURL, shapeSchema)
	})
	return shapeCompiled, shapeErr
}

// constraintSchema restricts labels to the offered set and cardinality.
// Compiled schemas are memoized by their document.
func constraintSchema(labels []string, minLabels, maxLabels int) (*jsonschema.Schema, error) {
	enum, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}
	doc := fmt.Sprintf(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "labels": {
      "type": "array",
      "items": {"enum": %s},
      "minItems": %d,
      "maxItems": %d,
      "uniqueItems": true
    }
  }
}`, enum, minLabels, maxLabels)

	constraintMu.Lock()
	defer constraintMu.Unlock()
	if s, ok := constraintCache[doc]; ok {
		return s, nil
	}
	url := fmt.Sprintf("https://trial-enricher.local/schemas/decision-%d.schema.json", len(constraintCache))
	s, err := compileSchema(url, doc)
	if err != nil {
		return nil, err
	}
	constraintCache[doc] = s
	return s, nil
}
