package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/collection"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printListing(w io.Writer, columns []string, listing collection.Listing) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range listing.Rows {
		fmt.Fprintln(tw, strings.Join(row.Cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s (page %d of %d)\n", listing.Summary, listing.Footer.Page, listing.Footer.TotalPages)
}

// printRecord prints the top-level fields of record sorted by name.
func printRecord(w io.Writer, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s:\t%s\n", name, fieldText(fields[name]))
	}
	return tw.Flush()
}

func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case map[string]any, []any:
		data, _ := json.Marshal(t)
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// errorText prefers the upstream's own message for API errors.
func errorText(err error) string {
	var apiErr *api.APIError
	var partial *api.PartialFailureError
	if errors.As(err, &apiErr) || errors.As(err, &partial) {
		return api.Message(err)
	}
	return err.Error()
}
