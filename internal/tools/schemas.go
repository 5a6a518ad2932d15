// Package tools defines the MCP tools exposed by the smartsummary service
// and the request/response schemas they use.
package tools

const (
	// ToolSummarize is the name of the summarize MCP tool
	ToolSummarize = "summarize"

	// ToolFindSimilar is the name of the find_similar MCP tool
	ToolFindSimilar = "find_similar"

	// DefaultSimilarLimit is the number of results returned when a
	// find_similar request gives no limit
	DefaultSimilarLimit = 5

	// MaxSimilarLimit caps the number of results of a find_similar request
	MaxSimilarLimit = 50

	// StatusSuccess and StatusError are the two values of a response Status
	StatusSuccess = "success"
	StatusError   = "error"
)

// SummarizeRequest defines the input schema for the summarize tool
type SummarizeRequest struct {
	// Text is the text to summarize
	Text string `json:"text"`

	// MaxLength is the maximum summary length in words.
	// If not specified, the service default is used
	MaxLength int `json:"max_length,omitempty"`
}

// SummarizeResponse defines the output schema for the summarize tool
type SummarizeResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Summary is the generated summary
	Summary string `json:"summary,omitempty"`

	// Strategy names the prompt strategy that produced the summary
	Strategy string `json:"strategy,omitempty"`

	// CacheHit reports whether the summary was served from the similarity cache
	CacheHit bool `json:"cache_hit"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}

// FindSimilarRequest defines the input schema for the find_similar tool
type FindSimilarRequest struct {
	// Text is compared against the source texts of cached summaries
	Text string `json:"text"`

	// Limit is the maximum number of results to return
	// If not specified, DefaultSimilarLimit will be used
	Limit int `json:"limit,omitempty"`
}

// SimilarResult is one cached summary returned by find_similar
type SimilarResult struct {
	ID       string  `json:"id"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
	Strategy string  `json:"strategy"`
}

// FindSimilarResponse defines the output schema for the find_similar tool
type FindSimilarResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Results contains the matching cached summaries, most similar first
	Results []SimilarResult `json:"results"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}
