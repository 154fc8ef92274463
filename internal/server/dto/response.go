package dto

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthResponse is a response from the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Branch  string `json:"branch"`
}

// PageSummary is a brief representation of a page for list responses.
type PageSummary struct {
	Link string         `json:"link"`
	Meta map[string]any `json:"meta"`
}

// ListPagesResponse is a response containing a list of pages.
type ListPagesResponse struct {
	Pages []PageSummary `json:"pages"`
}

// Section is one node of a table of contents.
type Section struct {
	Link     string     `json:"link"`
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Children []*Section `json:"children,omitempty"`
}

// GetPageResponse is a rendered page.
type GetPageResponse struct {
	Link string         `json:"link"`
	Meta map[string]any `json:"meta"`
	TOC  *Section       `json:"toc"`
	HTML string         `json:"html"`
}

// GetRawPageResponse is a page as stored, front matter included.
type GetRawPageResponse struct {
	Link    string         `json:"link"`
	Meta    map[string]any `json:"meta"`
	Content string         `json:"content"`
	Text    string         `json:"text"`
}

// SavePageResponse is a response from saving a page.
type SavePageResponse struct {
	Link   string `json:"link"`
	Commit string `json:"commit"`
}

// DeletePageResponse is a response from deleting a page.
type DeletePageResponse struct {
	Commit string `json:"commit"`
}

// Commit is one entry of the branch history.
type Commit struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// LogResponse is a response containing the branch history, newest first.
type LogResponse struct {
	Commits []Commit `json:"commits"`
}
