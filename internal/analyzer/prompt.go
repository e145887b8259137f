// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"bytes"
	"text/template"
)

// paperPromptTmpl asks the model to assess a paper and look for its code.
var paperPromptTmpl = template.Must(template.New("paper").Parse(`You are reviewing research papers for a curated index of systems that ship working code.

Assess the paper below and respond with a single JSON object with these fields:
- github_url: the URL of the paper's official code repository, or "not found"
- scores: an object of numbers from 0 to 10
  - relevance: how closely the paper matches the index topic
  - novelty: how new the contribution is
  - clarity: how clearly the system is described
- tier: 1 (must include), 2 (strong candidate) or 3 (marginal)
- summary: two sentences describing the contribution

Do not include any text outside the JSON object.

Example response:
{"github_url": "https://github.com/org/repo", "scores": {"relevance": 8, "novelty": 6, "clarity": 7}, "tier": 2, "summary": "..."}

Title: {{.Title}}
URL: {{.URL}}

{{.Content}}
`))

// repositoryPromptTmpl asks the model to validate a repository against a paper.
var repositoryPromptTmpl = template.Must(template.New("repository").Parse(`You are validating that a code repository implements a research paper.

Paper: {{.PaperTitle}}
Repository: {{.RepositoryURL}}

Respond with a single JSON object with these fields:
- is_valid: true if the repository exists, is public and implements the paper
- scores: an object of numbers from 0 to 10
  - code_quality: structure, tests and readability of the code
  - documentation: README and usage instructions
  - activity: recent commits and maintenance
- summary: one paragraph describing the codebase
- error: why validation failed, if is_valid is false

Do not include any text outside the JSON object.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
