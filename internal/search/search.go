package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	AuthorName string `json:"authorName"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterAuthorID string
	Limit          int
	Offset         int
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

// Indexer can push notes into a search index.
type Indexer interface {
	IndexNote(n NoteRecord) error
	DeleteNote(id string) error
}

// NoteRecord is the data we index for a note. Body carries the redacted
// text rendering, never the raw body.
type NoteRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
}
