package ollama

// generateRequest is the request body for /api/generate.
type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	System  string           `json:"system,omitempty"`
	Stream  bool             `json:"stream"`
	Images  []string         `json:"images,omitempty"`
	Options *generateOptions `json:"options,omitempty"`
}

// generateOptions tunes a single generation.
type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateResponse is the non-streaming response from /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// tagsResponse is the response from /api/tags.
type tagsResponse struct {
	Models []modelTag `json:"models"`
}

// modelTag identifies one locally available model.
type modelTag struct {
	Name string `json:"name"`
}
