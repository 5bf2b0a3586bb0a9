package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/workspace"
)

var listCmd = &cobra.Command{
	Use:   "list <resource>",
	Short: "List a collection",
	Long:  "List a collection. Resources: " + strings.Join(collection.Names(), ", "),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := listValues(cmd.Flags())
		if err != nil {
			return err
		}
		prof, err := currentProfile()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(prof)
		if err != nil {
			return err
		}
		defer ws.Reset()
		return runList(cmd.Context(), cmd.OutOrStdout(), ws, args[0], values)
	},
}

func init() {
	addFilterFlags(listCmd.Flags())
}

func addFilterFlags(flags *pflag.FlagSet) {
	flags.StringP("search", "q", "", "search term")
	flags.StringSliceP("status", "s", nil, "filter by status (repeatable)")
	flags.String("from", "", "created on or after (YYYY-MM-DD)")
	flags.String("to", "", "created on or before (YYYY-MM-DD)")
	flags.StringArray("facet", nil, "facet filter as key=value (repeatable)")
	flags.Int("page", 0, "page number")
	flags.Int("size", 0, "page size")
	flags.String("sort", "", "sort field")
	flags.Bool("desc", false, "sort descending")
	flags.Bool("reveal", false, "show sensitive values")
}

// listValues maps the list flags onto the query parameters of the console
// list view.
func listValues(flags *pflag.FlagSet) (url.Values, error) {
	v := url.Values{}
	if flags.Changed("search") {
		s, _ := flags.GetString("search")
		v.Set(filter.ParamSearch, s)
	}
	if flags.Changed("status") {
		statuses, _ := flags.GetStringSlice("status")
		v[filter.ParamStatus] = statuses
	}
	for _, name := range []string{filter.ParamFrom, filter.ParamTo} {
		if flags.Changed(name) {
			s, _ := flags.GetString(name)
			v.Set(name, s)
		}
	}
	facets, _ := flags.GetStringArray("facet")
	for _, f := range facets {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("facet %q must be key=value", f)
		}
		v.Add(key, value)
	}
	for _, name := range []string{filter.ParamPage, filter.ParamSize} {
		if flags.Changed(name) {
			n, _ := flags.GetInt(name)
			v.Set(name, strconv.Itoa(n))
		}
	}
	if flags.Changed("sort") {
		field, _ := flags.GetString("sort")
		v.Set(filter.ParamSortField, field)
		direction := "asc"
		if desc, _ := flags.GetBool("desc"); desc {
			direction = "desc"
		}
		v.Set(filter.ParamSortDirection, direction)
	}
	if reveal, _ := flags.GetBool("reveal"); reveal {
		v.Set(filter.ParamReveal, "true")
	}
	return v, nil
}

func runList(ctx context.Context, w io.Writer, ws *workspace.Workspace, resource string, values url.Values) error {
	coll, err := ws.Collection(resource)
	if err != nil {
		return err
	}
	if err := applyFilters(coll, values); err != nil {
		return err
	}
	listing := coll.Listing(ctx)
	if listing.Err != nil {
		return listing.Err
	}
	if jsonOutput {
		return printJSON(w, listing)
	}
	printListing(w, coll.Columns(), listing)
	return nil
}

// applyFilters dispatches the actions encoded in values and commits them
// without waiting for the debounce delay.
func applyFilters(coll collection.Collection, values url.Values) error {
	actions, err := filter.NewParser().ParseValues(values, coll.Rules())
	if err != nil {
		return err
	}
	if len(actions) > 0 {
		coll.Dispatch(actions...)
	}
	coll.Flush()
	return nil
}
