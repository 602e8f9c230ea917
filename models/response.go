package models

// ResolveResponse is the 200 response for POST /resolve.
type ResolveResponse struct {
	OK            bool    `json:"ok"`
	GoogleNewsURL string  `json:"google_news_url"`
	Blocked       bool    `json:"blocked"`
	ResolvedURL   *string `json:"resolved_url"`
	Method        Method  `json:"method"`
	HTTPStatus    *int    `json:"http_status"`
	FinalURL      *string `json:"final_url"`
	Attempt       int     `json:"attempt"`
	TargetURL     string  `json:"target_url"`
}

// NewResolveResponse flattens an outcome into the wire shape.
func NewResolveResponse(googleNewsURL string, o *ResolveOutcome) ResolveResponse {
	return ResolveResponse{
		OK:            true,
		GoogleNewsURL: googleNewsURL,
		Blocked:       o.Blocked(),
		ResolvedURL:   o.ResolvedURL,
		Method:        o.Method,
		HTTPStatus:    o.HTTPStatus,
		FinalURL:      o.FinalURL,
		Attempt:       o.Attempt,
		TargetURL:     o.TargetURL,
	}
}

// ErrorResponse is returned for 400, 429 and 500 responses.
type ErrorResponse struct {
	OK            bool            `json:"ok"`
	GoogleNewsURL string          `json:"google_news_url,omitempty"`
	Error         string          `json:"error"`
	Example       *ResolveRequest `json:"example,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Time    string `json:"time"`
}
