// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// defaultPromptTmpl is the prompt sent to the LLM for each record. It
// instructs the model to return exactly the fixed schema as a bare JSON
// object.
var defaultPromptTmpl = template.Must(template.New("structuring").Parse(`You are an analyst structuring academic literature on AI adoption in manufacturing. Read the publication details below and produce a single JSON object with exactly these fields:

- use_cases: array of short strings, the concrete AI use cases discussed
- opportunities: array of short strings, opportunities the work identifies
- challenges: array of short strings, obstacles or limitations discussed
- ai_category: string, the dominant AI technique family (e.g. "machine learning", "computer vision", "optimization")
- business_function: string, the business function addressed (e.g. "production", "quality", "logistics")
- technical_complexity: string, one of "low", "medium", "high"
- roi_impact: string, one of "low", "medium", "high"
- time_horizon: string, one of "short-term", "medium-term", "long-term"
- industry_segment: string, the manufacturing segment when identifiable
- implementation_stage: string, one of "conceptual", "pilot", "production"
- data_requirements: array of short strings, data the approach depends on
- model_family: string, the model family when named (e.g. "CNN", "random forest")
- deployment_pattern: string, how the system is deployed (e.g. "edge", "cloud", "hybrid")
- human_in_the_loop: string, role of human oversight when discussed
- risk_factors: array of short strings
- compliance_considerations: array of short strings
- kpis: array of short strings, metrics the work measures or targets
- stakeholders: array of short strings
- cost_profile: string, one of "low", "medium", "high"
- scalability: string, one of "low", "medium", "high"
- integration_complexity: string, one of "low", "medium", "high"
- confidence_score: number between 0.0 and 1.0, your confidence in this structuring
- concise_summary: string, two sentences at most

Use null for scalar fields and [] for array fields that the abstract does not support. Respond with the JSON object only, no surrounding text and no code fences.

Title: {{.Title}}
Publication year: {{.PublicationYear}}
Publication type: {{.Type}}
Abstract: {{.Abstract}}
`))

// promptData is the template input for one record.
type promptData struct {
	Title           string
	PublicationYear int
	Type            string
	Abstract        string
}

// loadPromptTemplate returns the built-in template, or the parsed contents
// of path when an override is configured.
func loadPromptTemplate(path string) (*template.Template, error) {
	if path == "" {
		return defaultPromptTmpl, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt template %s: %w", path, err)
	}
	tmpl, err := template.New("structuring").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template %s: %w", path, err)
	}
	return tmpl, nil
}

// renderPrompt executes the template for one record.
func renderPrompt(tmpl *template.Template, rec types.KeyedRecord) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, promptData{
		Title:           rec.Title,
		PublicationYear: rec.PublicationYear,
		Type:            rec.Type,
		Abstract:        rec.Abstract,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
