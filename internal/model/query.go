package model

// QueryRequest represents a natural language query request
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse is the outcome of one query through the pipeline.
// It is always populated; failures leave Movies and Overviews empty and set Error.
type QueryResponse struct {
	RequestID string        `json:"request_id"`
	Query     string        `json:"query"`
	Intent    *IntentResult `json:"intent,omitempty"`
	Predicate *Predicate    `json:"predicate,omitempty"`
	Movies    []ResultRow   `json:"movies"`
	Overviews []ResultRow   `json:"overviews"`
	Display   string        `json:"display"`
	Error     string        `json:"error,omitempty"`
	Took      int64         `json:"took_ms"`
}

// Empty reports whether the response carries no rows
func (r *QueryResponse) Empty() bool {
	return len(r.Movies) == 0 && len(r.Overviews) == 0
}
