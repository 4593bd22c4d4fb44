package download

// Status is the finite state of one download/extract/install pipeline.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusInstalling  Status = "installing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Task is the mutable state of one pipeline, identified by the composite key
// "<service>-<version>". Owned exclusively by the Manager; consumers receive
// copies.
type Task struct {
	ID         string `json:"id"`
	Service    string `json:"service"`
	Version    string `json:"version"`
	Status     Status `json:"status"`
	Progress   int    `json:"progress"`
	Downloaded int64  `json:"downloaded,omitempty"`
	Total      int64  `json:"total,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Event is the progress notification delivered to subscribers. Failures
// arrive as a human-readable Error string, never a raw error value, so
// subscribers need no exception-aware handling.
type Event struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	Progress   int    `json:"progress"`
	Downloaded int64  `json:"downloaded,omitempty"`
	Total      int64  `json:"total,omitempty"`
	Error      string `json:"error,omitempty"`
}
