package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/basehub/basehub-go/transport"
)

// Doer issues authenticated requests. *auth.Manager satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) ([]byte, error)
}

// Direction orders results.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// FilterKind tags a filter condition. Only equality exists today; the tag
// leaves room for In/Range variants without changing call sites.
type FilterKind int

const (
	FilterEquals FilterKind = iota
)

// Filter is one tagged condition against a column.
type Filter struct {
	Kind   FilterKind
	Column string
	Value  any
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{Kind: FilterEquals, Column: column, Value: value}
}

// Builder accumulates a fluent call chain against one table and turns it
// into table-endpoint requests. The backend supports a single filter
// condition per request; a later Where replaces an earlier one.
type Builder struct {
	doer     Doer
	table    string
	filter   *Filter
	orderBy  string
	orderDir Direction
	page     int
	pageSize int
}

func NewBuilder(doer Doer, table string) *Builder {
	return &Builder{doer: doer, table: table}
}

func (b *Builder) Where(filter Filter) *Builder {
	b.filter = &filter
	return b
}

func (b *Builder) OrderBy(column string, direction Direction) *Builder {
	b.orderBy = column
	b.orderDir = direction
	return b
}

func (b *Builder) Page(page int) *Builder {
	b.page = page
	return b
}

func (b *Builder) PageSize(size int) *Builder {
	b.pageSize = size
	return b
}

// Select fetches matching rows.
func (b *Builder) Select(ctx context.Context) ([]map[string]any, error) {
	data, err := b.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   b.dataPath(""),
		Query:  b.queryParams(),
	})
	if err != nil {
		return nil, err
	}
	rows := []map[string]any{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert creates one row and returns the created record.
func (b *Builder) Insert(ctx context.Context, record any) (map[string]any, error) {
	data, err := b.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   b.dataPath(""),
		Body:   record,
	})
	if err != nil {
		return nil, err
	}
	created := map[string]any{}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update modifies the row selected by an id-equality condition. Multi-row
// updates are unsupported by the backend, so the condition is mandatory.
func (b *Builder) Update(ctx context.Context, record any) (map[string]any, error) {
	id, err := b.requireIDCondition()
	if err != nil {
		return nil, err
	}
	data, err := b.doer.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   b.dataPath(id),
		Body:   record,
	})
	if err != nil {
		return nil, err
	}
	updated := map[string]any{}
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the row selected by an id-equality condition.
func (b *Builder) Delete(ctx context.Context) error {
	id, err := b.requireIDCondition()
	if err != nil {
		return err
	}
	_, err = b.doer.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   b.dataPath(id),
	})
	return err
}

func (b *Builder) requireIDCondition() (string, error) {
	if b.filter == nil || b.filter.Kind != FilterEquals || b.filter.Column != "id" {
		return "", transport.ValidationError("update/delete requires an id-based condition", nil)
	}
	return fmt.Sprintf("%v", b.filter.Value), nil
}

func (b *Builder) dataPath(id string) string {
	path := "/tables/" + url.PathEscape(b.table) + "/data"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path
}

func (b *Builder) queryParams() url.Values {
	params := url.Values{}
	if b.page > 0 {
		params.Set("page", strconv.Itoa(b.page))
	}
	if b.pageSize > 0 {
		params.Set("page_size", strconv.Itoa(b.pageSize))
	}
	if b.orderBy != "" {
		dir := b.orderDir
		if dir == "" {
			dir = Ascending
		}
		params.Set("order_by", b.orderBy+":"+string(dir))
	}
	if b.filter != nil {
		params.Set("filter_column", b.filter.Column)
		params.Set("filter_value", fmt.Sprintf("%v", b.filter.Value))
	}
	return params
}
