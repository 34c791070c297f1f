package search

// Result is a single topic hit returned to the caller.
type Result struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Supervisor string `json:"supervisor"`
	Department string `json:"department,omitempty"`
}

// Query describes a topic search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a topic search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TopicRecord is the data we index for an available thesis topic.
type TopicRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Supervisor  string `json:"supervisor"`
	Department  string `json:"department"`
}
