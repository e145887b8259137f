// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/paper-triage/pkg/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// paperPayload is the shape the paper analyzer must return.
type paperPayload struct {
	GithubURL string             `json:"github_url" validate:"omitempty,url"`
	Scores    map[string]float64 `json:"scores" validate:"required,dive,keys,required,endkeys,gte=0,lte=10"`
	Summary   string             `json:"summary"`
}

// repositoryPayload is the shape the repository analyzer must return.
type repositoryPayload struct {
	IsValid *bool              `json:"is_valid" validate:"required"`
	Scores  map[string]float64 `json:"scores" validate:"dive,keys,required,endkeys,gte=0,lte=10"`
	Summary string             `json:"summary"`
	Error   string             `json:"error"`
}

// placeholderURLs are values analyzers write instead of omitting the field.
var placeholderURLs = map[string]bool{
	"":          true,
	"none":      true,
	"null":      true,
	"n/a":       true,
	"na":        true,
	"not found": true,
	"unknown":   true,
}

// DecodePaper parses and validates a paper analyzer response. The response
// may be wrapped in prose or a fenced code block. Shape violations wrap
// ErrMalformedOutput.
func DecodePaper(data []byte) (types.PaperAnalysis, error) {
	body, raw, err := decodeObject(data)
	if err != nil {
		return types.PaperAnalysis{}, err
	}

	var p paperPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return types.PaperAnalysis{}, malformed("paper analysis: %v", err)
	}
	p.GithubURL = normalizeURL(p.GithubURL)
	if err := validate.Struct(p); err != nil {
		return types.PaperAnalysis{}, malformed("paper analysis: %v", err)
	}

	return types.PaperAnalysis{
		RepositoryURL: p.GithubURL,
		Scores:        p.Scores,
		Summary:       p.Summary,
		Raw:           raw,
	}, nil
}

// DecodeRepository parses and validates a repository analyzer response.
func DecodeRepository(data []byte) (types.RepositoryAnalysis, error) {
	body, raw, err := decodeObject(data)
	if err != nil {
		return types.RepositoryAnalysis{}, err
	}

	var p repositoryPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return types.RepositoryAnalysis{}, malformed("repository analysis: %v", err)
	}
	if err := validate.Struct(p); err != nil {
		return types.RepositoryAnalysis{}, malformed("repository analysis: %v", err)
	}

	scores := p.Scores
	if scores == nil {
		scores = map[string]float64{}
	}
	return types.RepositoryAnalysis{
		IsValid: *p.IsValid,
		Scores:  scores,
		Summary: p.Summary,
		Error:   p.Error,
		Raw:     raw,
	}, nil
}

// decodeObject locates the JSON object in data and decodes it generically.
func decodeObject(data []byte) ([]byte, map[string]any, error) {
	body := extractJSON(data)
	if body == nil {
		return nil, nil, malformed("no JSON object in response")
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, malformed("decoding response: %v", err)
	}
	return body, raw, nil
}

// extractJSON returns the outermost {...} span of data, or nil.
func extractJSON(data []byte) []byte {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start < 0 || end < start {
		return nil
	}
	return data[start : end+1]
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if placeholderURLs[strings.ToLower(u)] {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/.")
}
