// Package openlibrary provides a tool to look up books in the Open Library catalog.
package openlibrary

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/httpclient"
	"github.com/effective-security/agenttools/tools"
	"github.com/tidwall/gjson"
)

// ToolName is the name of the tool
const ToolName = "OpenLibrary"

// DefaultBaseURL is the public Open Library endpoint
const DefaultBaseURL = "https://openlibrary.org"

const (
	errRequestFailed = "Request to Open Library API has failed!"
	errParseFailed   = "Request to Open Library has failed to parse!"
)

// SearchRequest represents the tool input.
// All fields are optional, a meaningful search has at least one.
type SearchRequest struct {
	Title     string `json:"title,omitempty" yaml:"title" url:"title,omitempty" jsonschema:"title=Title,description=The title of the book."`
	Author    string `json:"author,omitempty" yaml:"author" url:"author,omitempty" jsonschema:"title=Author,description=The author of the book."`
	ISBN      string `json:"isbn,omitempty" yaml:"isbn" url:"isbn,omitempty" jsonschema:"title=ISBN,description=The ISBN of the book."`
	Subject   string `json:"subject,omitempty" yaml:"subject" url:"subject,omitempty" jsonschema:"title=Subject,description=The subject of the book."`
	Place     string `json:"place,omitempty" yaml:"place" url:"place,omitempty" jsonschema:"title=Place,description=A place related to the book."`
	Person    string `json:"person,omitempty" yaml:"person" url:"person,omitempty" jsonschema:"title=Person,description=A person related to the book."`
	Publisher string `json:"publisher,omitempty" yaml:"publisher" url:"publisher,omitempty" jsonschema:"title=Publisher,description=The publisher of the book."`
}

// Book is a normalized search result.
// Every field is always present in the JSON output.
type Book struct {
	Title            string   `json:"title" yaml:"title"`
	AuthorName       []string `json:"author_name" yaml:"author_name"`
	Contributor      []string `json:"contributor" yaml:"contributor"`
	FirstPublishYear int      `json:"first_publish_year" yaml:"first_publish_year"`
	// PublishDate values are kept as returned by upstream, strings or numbers
	PublishDate  []any    `json:"publish_date" yaml:"publish_date"`
	Language     []string `json:"language" yaml:"language"`
	PublishPlace []string `json:"publish_place" yaml:"publish_place"`
	Place        []string `json:"place" yaml:"place"`
	Publisher    []string `json:"publisher" yaml:"publisher"`
	ISBN         []string `json:"isbn" yaml:"isbn"`
}

// Result is the tool output
type Result = tools.JSONOutput[[]Book]

// searchResponse is the subset of the /search.json response used by the tool
type searchResponse struct {
	Docs []*Book `json:"docs"`
}

// Options is the immutable configuration of the tool
type Options struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url" validate:"omitempty,url"`
}

// Tool provides access to the Open Library search API
type Tool struct {
	name        string
	description string

	baseURL    string
	httpClient httpclient.Doer
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[SearchRequest, Result] = (*Tool)(nil)
var _ tools.Snapshotter = (*Tool)(nil)

// New returns the Open Library tool
func New() *Tool {
	return &Tool{
		name:        ToolName,
		description: "Provides access to a library of books with information about book titles, authors, contributors, publication dates, publisher and isbn.",
		baseURL:     DefaultBaseURL,
	}
}

// NewWithOptions returns the tool configured with opts
func NewWithOptions(opts *Options) *Tool {
	t := New()
	if opts != nil && opts.BaseURL != "" {
		t.WithBaseURL(opts.BaseURL)
	}
	return t
}

func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = strings.TrimSuffix(baseURL, "/")
	return t
}

func (t *Tool) WithHTTPClient(client httpclient.Doer) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return tools.Parameters[SearchRequest]()
}

// Options returns the tool configuration
func (t *Tool) Options() *Options {
	return &Options{BaseURL: t.baseURL}
}

func (t *Tool) Snapshot() (*tools.Snapshot, error) {
	return tools.NewSnapshot(t.name, t.Options())
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Call(ctx, t, input)
}

// Run searches the catalog, the results are returned in the upstream order.
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*Result, error) {
	resp, err := httpclient.Do(ctx, t.httpClient, &httpclient.Request{
		URL:   t.baseURL + "/search.json",
		Query: req,
	})
	if err != nil {
		return nil, tools.TransportError(ctx, errRequestFailed, err)
	}
	if !resp.OK() {
		cause := string(resp.Body)
		if cause == "" {
			cause = resp.Status
		}
		return nil, tools.NewError(tools.KindTransport, errRequestFailed, errors.New(cause))
	}

	var res searchResponse
	if err = json.Unmarshal(resp.Body, &res); err != nil {
		return nil, tools.NewError(tools.KindParse, errParseFailed, err)
	}
	if !gjson.GetBytes(resp.Body, "docs").IsArray() {
		return nil, tools.NewError(tools.KindParse, errParseFailed, errors.New("search response has no docs"))
	}

	books := make([]Book, 0, len(res.Docs))
	for _, doc := range res.Docs {
		books = append(books, normalize(doc))
	}
	return tools.NewJSONOutput(books), nil
}

func normalize(doc *Book) Book {
	if doc == nil {
		doc = &Book{}
	}
	b := Book{
		Title:            doc.Title,
		AuthorName:       nonNil(doc.AuthorName),
		Contributor:      nonNil(doc.Contributor),
		FirstPublishYear: doc.FirstPublishYear,
		PublishDate:      nonNil(doc.PublishDate),
		Language:         nonNil(doc.Language),
		PublishPlace:     nonNil(doc.PublishPlace),
		Place:            nonNil(doc.Place),
		Publisher:        nonNil(doc.Publisher),
		ISBN:             nonNil(doc.ISBN),
	}
	if b.Title == "" {
		b.Title = "Unknown"
	}
	return b
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
