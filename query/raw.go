package query

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/basehub/basehub-go/transport"
)

// Result is the raw query endpoint's response.
type Result struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// Execute runs a SQL statement through the raw passthrough endpoint. The
// statement is sent verbatim in the request body; this package never
// assembles SQL text from caller-supplied values.
func Execute(ctx context.Context, doer Doer, sql string) (*Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, transport.ValidationError("query must not be empty", nil)
	}
	data, err := doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/query",
		Body:   map[string]string{"query": sql},
	})
	if err != nil {
		return nil, err
	}
	result := Result{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
