// Package output renders connector listings for the CLI.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/open-sspm/catalogctl/internal/catalog"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ParseFormat normalizes a --output value.
func ParseFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	switch format {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return format, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("output format must be one of: %s, %s, %s", FormatTable, FormatJSON, FormatYAML)
	}
}

// Renderer writes connectors in one format, optionally filtered by a jq query.
type Renderer struct {
	format string
	query  *gojq.Code
}

func NewRenderer(format, query string) (*Renderer, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	r := &Renderer{format: format}

	query = strings.TrimSpace(query)
	if query == "" {
		return r, nil
	}
	if format == FormatTable {
		return nil, errors.New("--query requires json or yaml output")
	}
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	r.query = code
	return r, nil
}

func (r *Renderer) Render(ctx context.Context, w io.Writer, connectors []catalog.Connector) error {
	if connectors == nil {
		connectors = []catalog.Connector{}
	}
	if r.format == FormatTable {
		return writeTable(w, connectors)
	}

	var value any = connectors
	if r.query != nil || r.format == FormatYAML {
		// yaml and jq both work on the JSON field names.
		data, err := genericJSON(connectors)
		if err != nil {
			return err
		}
		value = data
	}
	if r.query != nil {
		results, err := r.transform(ctx, mapNumbers(value, queryNumber))
		if err != nil {
			return err
		}
		value = results
	}

	switch r.format {
	case FormatYAML:
		value = mapNumbers(value, yamlNumber)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
}

// genericJSON re-decodes v keeping numbers as json.Number, so ids above 2^53
// keep their exact value.
func genericJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// mapNumbers returns a copy of a decoded JSON value with every json.Number
// and *big.Int leaf replaced by conv.
func mapNumbers(v any, conv func(any) any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = mapNumbers(e, conv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = mapNumbers(e, conv)
		}
		return out
	case json.Number, *big.Int:
		return conv(t)
	default:
		return v
	}
}

// queryNumber converts to the number types gojq works with: int, *big.Int
// and float64.
func queryNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(n.String(), 10, 0); err == nil {
		return int(i)
	}
	if b, ok := new(big.Int).SetString(n.String(), 10); ok {
		return b
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// yamlNumber converts to integer types yaml.v3 writes without rounding.
func yamlNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case *big.Int:
		if n.IsInt64() {
			return n.Int64()
		}
		if n.IsUint64() {
			return n.Uint64()
		}
		return n.String()
	}
	return v
}

// transform runs the query over data. A single result is returned unwrapped.
func (r *Renderer) transform(ctx context.Context, data any) (any, error) {
	iter := r.query.RunWithContext(ctx, data)
	results := []any{}
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			var haltErr *gojq.HaltError
			if errors.As(err, &haltErr) && haltErr.Value() == nil {
				break
			}
			return nil, fmt.Errorf("query: %w", err)
		}
		results = append(results, v)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func writeTable(w io.Writer, connectors []catalog.Connector) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tVERSION\tAGENT")
	for _, c := range connectors {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, dash(c.Name), dash(c.ConnectorCategory), dash(c.ConnectorVersion), strconv.FormatBool(c.UsesAgent))
	}
	return tw.Flush()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
