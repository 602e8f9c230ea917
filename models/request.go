package models

// ResolveRequest is the payload for POST /resolve.
type ResolveRequest struct {
	// GoogleNewsURL is the aggregator link to resolve. Required, non-empty.
	GoogleNewsURL string `json:"google_news_url" binding:"required"`
}

// ExampleRequest is echoed back to clients that send a malformed body.
var ExampleRequest = ResolveRequest{
	GoogleNewsURL: "https://news.google.com/rss/articles/CBMiK2h0dHBzOi8vd3d3LmV4YW1wbGUuY29tL25ld3Mvc3Rvcnktc2x1Zy0xMjPSAQA?oc=5",
}
