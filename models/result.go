package models

// Scrape pass status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ScrapeResult is the structured outcome of one source's scraping pass.
// Scraper entry points never propagate panics or raw errors to the caller;
// they report through this object.
type ScrapeResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`

	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

// ErrorResult builds an error-status result.
func ErrorResult(msg string) ScrapeResult {
	return ScrapeResult{Status: StatusError, Message: msg}
}
