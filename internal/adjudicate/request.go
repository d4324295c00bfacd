// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adjudicate

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pdiddy/trial-enricher/internal/normalize"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

// Request is one constrained question: pick between Min and Max labels from
// Labels for Text.
type Request struct {
	Task types.AdjudicationTask

	// Instruction states the question in one or two sentences.
	Instruction string

	// Text is the record text under adjudication. It is normalized before
	// it is fingerprinted and sent, so formatting differences share a cache
	// entry and one wording of the question.
	Text string

	// Context is optional supporting metadata (phase, intervention type).
	// It is normalized and fingerprinted like Text.
	Context string

	Labels []string
	Min    int
	Max    int
}

func (r Request) validate() error {
	if r.Task == "" {
		return fmt.Errorf("adjudication request has no task")
	}
	if len(r.Labels) == 0 {
		return fmt.Errorf("adjudication request %s offers no labels", r.Task)
	}
	if r.Min < 0 || r.Max < r.Min || r.Max > len(r.Labels) {
		return fmt.Errorf("adjudication request %s has invalid bounds [%d, %d] for %d labels", r.Task, r.Min, r.Max, len(r.Labels))
	}
	return nil
}

// Fingerprint identifies a request's normalized input: everything the
// service is shown, plus the dictionary version.
func Fingerprint(r Request, dictionaryVersion string) string {
	labels := append([]string(nil), r.Labels...)
	sort.Strings(labels)

	h := sha256.New()
	fmt.Fprintf(h, "task=%s\n", r.Task)
	fmt.Fprintf(h, "dict=%s\n", dictionaryVersion)
	fmt.Fprintf(h, "instruction=%s\n", normalize.Text(r.Instruction))
	fmt.Fprintf(h, "text=%s\n", normalize.Text(r.Text))
	fmt.Fprintf(h, "context=%s\n", normalize.Text(r.Context))
	fmt.Fprintf(h, "labels=%s\n", strings.Join(labels, "\x1f"))
	fmt.Fprintf(h, "bounds=%d:%d\n", r.Min, r.Max)
	return fmt.Sprintf("%x", h.Sum(nil))
}

var promptTmpl = template.Must(template.New("adjudicate").Parse(`Task: {{.Task}}
{{.Instruction}}

Permissible labels (choose only from this list):
{{range .Labels}}- {{.}}
{{end}}
Select at least {{.Min}} and at most {{.Max}} label(s).
{{if .Context}}
Context:
{{.Context}}
{{end}}
Text:
{{.Text}}

Respond with a JSON object of the form {"labels": ["..."], "reason": "..."} and nothing else.`))

// renderPrompt builds the query sent to the service from the same
// normalized text the fingerprint covers.
func renderPrompt(r Request) (string, error) {
	r.Text = normalize.Text(r.Text)
	r.Context = normalize.Text(r.Context)
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("rendering adjudication prompt: %w", err)
	}
	return buf.String(), nil
}
