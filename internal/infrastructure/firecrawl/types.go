package firecrawl

// scrapeRequest is the body of POST /v1/scrape
type scrapeRequest struct {
	URL     string         `json:"url"`
	Formats []string       `json:"formats"`
	Extract extractOptions `json:"extract"`
	Timeout int            `json:"timeout,omitempty"` // milliseconds, server side
}

type extractOptions struct {
	Schema       map[string]any `json:"schema"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
}

// scrapeResponse is the envelope returned by /v1/scrape
type scrapeResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Details any         `json:"details,omitempty"`
	Data    *scrapeData `json:"data,omitempty"`
}

type scrapeData struct {
	Extract  map[string]any `json:"extract"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Warning  string         `json:"warning,omitempty"`
}
