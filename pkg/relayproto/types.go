package relayproto

// FileSnapshot is the decoded state of the relayed file as returned by GET /file
type FileSnapshot struct {
	Content string `json:"content"` // Content is the decoded file text
	SHA     string `json:"sha"`     // SHA is the opaque blob version, echoed back on update
}

// UpdateRequest is the body accepted by POST /file
type UpdateRequest struct {
	Content string `json:"content"` // Content is the new file text, sent upstream base64-encoded
	SHA     string `json:"sha"`     // SHA is the blob version the caller last read
}

// DiffRequest is the body accepted by POST /file/diff
type DiffRequest struct {
	Content string `json:"content"`
}

// ErrorResponse is written for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is written by GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}
