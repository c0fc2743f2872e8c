package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDeal    ResultType = "deal"
	ResultTask    ResultType = "task"
	ResultContact ResultType = "contact"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
	Stage   string     `json:"stage,omitempty"`
}

// Query describes a search request. Results are always scoped to UserID.
type Query struct {
	UserID string
	Text   string
	Type   string // "deal", "task", "contact"; empty = all types
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// dealRecord is the data we index for a deal.
type dealRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Stage       string `json:"stage"`
}

// taskRecord is the data we index for a task.
type taskRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// contactRecord is the data we index for a contact.
type contactRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JobTitle string `json:"job_title"`
}
