// Package airtable provides a tool to query the tables of an Airtable base.
//
// The agent needs to build Airtable filter formulas to refine the query,
// see https://support.airtable.com/docs/formula-field-reference.
// The records are returned to the agent as the API returns them.
package airtable

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/httpclient"
	"github.com/effective-security/agenttools/tools"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// ToolName is the name of the tool
const ToolName = "Airtable"

const (
	// DefaultEndpoint is the Airtable API endpoint
	DefaultEndpoint = "https://api.airtable.com"
	// DefaultPageSize is the maximum page size supported by Airtable
	DefaultPageSize = 100
)

// Action is the operation requested by the agent
type Action string

const (
	// ActionGetSchema returns the summarized schema of the base tables
	ActionGetSchema Action = "GET_SCHEMA"
	// ActionQueryTable returns the records of a table
	ActionQueryTable Action = "QUERY_TABLE"
)

const (
	errInvalidAction = "Invalid Action."
	errSchemaFailed  = "Error occurred getting airtable base schema"
	errRequestFailed = "Request to Airtable API has failed!"
	errParseFailed   = "Request to Airtable has failed to parse!"
)

// Request represents the tool input.
type Request struct {
	Action        Action   `json:"action" yaml:"action" jsonschema:"title=Action,description=The action for the tool to take. GET_SCHEMA requests the airtable base table schema. QUERY_TABLE requests data from a selected table.,enum=GET_SCHEMA,enum=QUERY_TABLE"`
	Table         string   `json:"table,omitempty" yaml:"table" jsonschema:"title=Table,description=The table ID to query when using the QUERY_TABLE action."`
	Fields        []string `json:"fields,omitempty" yaml:"fields" jsonschema:"title=Fields,description=The fields to return from the table query when using the QUERY_TABLE action."`
	FilterFormula string   `json:"filterFormula,omitempty" yaml:"filterFormula" jsonschema:"title=Filter Formula,description=The airtable filter formula to refine the query when using the QUERY_TABLE action."`
}

// FieldSchema is the summarized field of a table
type FieldSchema struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// TableSchema is the summarized table of a base
type TableSchema struct {
	Name        string         `json:"name" yaml:"name"`
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []*FieldSchema `json:"fields" yaml:"fields"`
}

// Result is the tool output:
// []*TableSchema for GET_SCHEMA, or []json.RawMessage for QUERY_TABLE
type Result = tools.JSONOutput[any]

// Options is the immutable configuration of the tool
type Options struct {
	APIToken string `json:"api_token" yaml:"api_token" validate:"required"`
	BaseID   string `json:"base_id" yaml:"base_id" validate:"required"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint" validate:"omitempty,url"`
	// MaxRecords caps the number of records returned by QUERY_TABLE,
	// 0 means all matching records.
	MaxRecords int `json:"max_records,omitempty" yaml:"max_records" validate:"gte=0"`
	// PageSize is the number of records requested per page
	PageSize int `json:"page_size,omitempty" yaml:"page_size" validate:"gte=0,lte=100"`
}

// listQuery is the query of the list records request
type listQuery struct {
	Fields          []string `url:"fields[],omitempty"`
	FilterByFormula string   `url:"filterByFormula,omitempty"`
	MaxRecords      int      `url:"maxRecords,omitempty"`
	PageSize        int      `url:"pageSize,omitempty"`
	Offset          string   `url:"offset,omitempty"`
}

type tablesResponse struct {
	Tables []*TableSchema `json:"tables"`
}

// Tool queries the tables of one Airtable base
type Tool struct {
	name        string
	description string

	opts       Options
	httpClient httpclient.Doer
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[Request, Result] = (*Tool)(nil)
var _ tools.Snapshotter = (*Tool)(nil)

// New returns the Airtable tool, the options are validated once.
func New(opts *Options) (*Tool, error) {
	if opts == nil {
		return nil, errors.New("airtable: options are required")
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, errors.Wrap(err, "invalid airtable options")
	}

	o := *opts
	if o.Endpoint == "" {
		o.Endpoint = DefaultEndpoint
	}
	o.Endpoint = strings.TrimSuffix(o.Endpoint, "/")
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}

	return &Tool{
		name:        ToolName,
		description: "Can Query records from airtable tables in an airtable base. Use the action GET_SCHEMA to learn about the structure of the airtable base and QUERY_TABLE to request data from a table within the base.",
		opts:        o,
	}, nil
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
	return tools.Parameters[Request]()
}

// Options returns a copy of the tool configuration
func (t *Tool) Options() *Options {
	o := t.opts
	return &o
}

func (t *Tool) Snapshot() (*tools.Snapshot, error) {
	return tools.NewSnapshot(t.name, t.Options())
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Call(ctx, t, input)
}

// Run dispatches the action
func (t *Tool) Run(ctx context.Context, req *Request) (*Result, error) {
	switch {
	case req.Action == ActionGetSchema:
		res, err := t.GetSchema(ctx)
		if err != nil {
			return nil, err
		}
		return tools.NewJSONOutput[any](res), nil
	case req.Action == ActionQueryTable && req.Table != "":
		res, err := t.QueryTable(ctx, req.Table, req.Fields, req.FilterFormula)
		if err != nil {
			return nil, err
		}
		return tools.NewJSONOutput[any](res), nil
	default:
		return nil, tools.NewError(tools.KindInvalidAction, errInvalidAction)
	}
}

// GetSchema returns the summarized schema of the base tables
func (t *Tool) GetSchema(ctx context.Context) ([]*TableSchema, error) {
	resp, err := httpclient.Do(ctx, t.httpClient, &httpclient.Request{
		URL:   t.opts.Endpoint + "/v0/meta/bases/" + url.PathEscape(t.opts.BaseID) + "/tables",
		Token: t.opts.APIToken,
	})
	if err != nil {
		return nil, tools.TransportError(ctx, errSchemaFailed, err)
	}
	if !resp.OK() {
		return nil, tools.NewError(tools.KindTransport, errSchemaFailed, responseError(resp))
	}

	var res tablesResponse
	if err = json.Unmarshal(resp.Body, &res); err != nil {
		return nil, tools.NewError(tools.KindParse, errParseFailed, err)
	}
	if !gjson.GetBytes(resp.Body, "tables").IsArray() {
		return nil, tools.NewError(tools.KindParse, errParseFailed, errors.New("base schema response has no tables"))
	}

	tables := make([]*TableSchema, 0, len(res.Tables))
	for _, table := range res.Tables {
		if table == nil {
			continue
		}
		if table.Fields == nil {
			table.Fields = []*FieldSchema{}
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// QueryTable returns all records of the table matching the filter formula,
// following the pagination cursor until exhausted or MaxRecords is reached.
func (t *Tool) QueryTable(ctx context.Context, table string, fields []string, filterFormula string) ([]json.RawMessage, error) {
	q := &listQuery{
		Fields:          fields,
		FilterByFormula: filterFormula,
		MaxRecords:      t.opts.MaxRecords,
		PageSize:        t.opts.PageSize,
	}
	path := t.opts.Endpoint + "/v0/" + url.PathEscape(t.opts.BaseID) + "/" + url.PathEscape(table)

	records := []json.RawMessage{}
	// offsets already requested, a repeated cursor would never end the loop
	seen := map[string]bool{}
	for {
		resp, err := httpclient.Do(ctx, t.httpClient, &httpclient.Request{
			URL:   path,
			Query: q,
			Token: t.opts.APIToken,
		})
		if err != nil {
			return nil, tools.TransportError(ctx, errRequestFailed, err)
		}
		if !resp.OK() {
			return nil, tools.NewError(tools.KindTransport, errRequestFailed, responseError(resp))
		}
		if !gjson.ValidBytes(resp.Body) {
			return nil, tools.NewError(tools.KindParse, errParseFailed, errors.New("invalid JSON in list records response"))
		}

		page := gjson.ParseBytes(resp.Body)
		list := page.Get("records")
		if !list.IsArray() {
			return nil, tools.NewError(tools.KindParse, errParseFailed, errors.New("list records response has no records"))
		}
		count := 0
		list.ForEach(func(_, rec gjson.Result) bool {
			records = append(records, json.RawMessage(rec.Raw))
			count++
			return true
		})

		if t.opts.MaxRecords > 0 && len(records) >= t.opts.MaxRecords {
			return records[:t.opts.MaxRecords], nil
		}

		offset := page.Get("offset").String()
		if offset == "" {
			return records, nil
		}
		if count == 0 || seen[offset] {
			return nil, tools.NewError(tools.KindParse, errParseFailed,
				errors.Newf("pagination cursor %q did not advance", offset))
		}
		seen[offset] = true
		q.Offset = offset
	}
}

func responseError(resp *httpclient.Response) error {
	if len(resp.Body) > 0 {
		return errors.New(string(resp.Body))
	}
	return errors.New(resp.Status)
}
