package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mangoautomation/dashboard-data-apis/query"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	"github.com/mangoautomation/dashboard-data-apis/settings"
	"github.com/mangoautomation/dashboard-data-apis/table"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "Print a page of a collection",
		Long: "Print a page of a collection. Filters, sort, columns and page size are remembered per " +
			"user and collection, flags only change the remembered values.",
		Example: "  mango-data list users --filter disabled=true --sort -lastLogin --columns username,name,lastLogin:date",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("columns", nil, "columns to show as name[:type], type is one of string, number, boolean, date, enum or array")
	flags.StringArray("filter", nil, "column filter as column=value, e.g. name=boiler or created=2024-01-01..2024-02-01")
	flags.String("sort", "", "column to sort on, prefix with - for descending order")
	flags.Int("page", 0, "page to show, starting at 1")
	flags.Bool("clear-filters", false, "forget the remembered filters")
	return cmd
}

type filterFlag struct {
	column string
	value  string
}

func parseFilters(values []string) ([]filterFlag, error) {
	filters := make([]filterFlag, 0, len(values))
	for _, value := range values {
		i := strings.Index(value, "=")
		if i <= 0 {
			return nil, e.NewPreconditionError("filter %q must be column=value", value)
		}
		filters = append(filters, filterFlag{column: value[:i], value: value[i+1:]})
	}
	return filters, nil
}

// parseColumns reads name[:type] columns, columns are sortable and filterable.
func parseColumns(values []string) ([]table.Column, []string) {
	columns := make([]table.Column, 0, len(values))
	names := make([]string, 0, len(values))
	for _, value := range values {
		name, dataType, _ := strings.Cut(value, ":")
		column := table.NewColumn(name)
		if dataType != "" {
			column.Type = query.DataType(dataType)
		}
		columns = append(columns, column)
		names = append(names, name)
	}
	return columns, names
}

func runList(cmd *cobra.Command, collection string) error {
	flags := cmd.Flags()
	columnFlags, _ := flags.GetStringSlice("columns")
	filterValues, _ := flags.GetStringArray("filter")
	sortFlag, _ := flags.GetString("sort")
	page, _ := flags.GetInt("page")
	clearFilters, _ := flags.GetBool("clear-filters")

	filters, err := parseFilters(filterValues)
	if err != nil {
		return err
	}
	columns, selected := parseColumns(columnFlags)
	if len(columns) == 0 {
		columns, _ = parseColumns([]string{"xid", "name"})
	}
	// filtered and sorted columns are known to the table even when not shown
	for _, f := range filters {
		columns = append(columns, hidden(f.column))
	}
	if sortFlag != "" {
		columns = append(columns, hidden(strings.TrimLeft(sortFlag, "+-")))
	}

	cfg, err := createConfig()
	if err != nil {
		return err
	}
	store, err := createStore(cfg)
	if err != nil {
		return err
	}
	storageKey := "cli " + collection
	// remembered filters and sorts need their columns, otherwise the table drops them
	columns = append(columns, rememberedColumns(store, cfg.Naming().ToStorageKey(storageKey))...)

	controller, err := table.NewController[row](cfg, table.Options[row]{
		StorageKey:     storageKey,
		DefaultColumns: dedupeColumns(columns),
		IDFunc:         func(r row) string { return fmt.Sprint(r["xid"]) },
		Fetch:          table.FetchFrom(createClient(cfg, collection)),
		Store:          store,
		Logger:         logger,
		Notifier:       consoleNotifier(),
	})
	if err != nil {
		return err
	}
	defer controller.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	steps := []func() error{func() error { return controller.Init(ctx) }}
	if len(selected) > 0 {
		steps = append(steps, func() error { return controller.SelectColumns(ctx, selected...) })
	}
	if clearFilters {
		steps = append(steps, func() error { return controller.ClearFilters(ctx) })
	}
	for _, f := range filters {
		f := f
		steps = append(steps, func() error { return controller.SetFilter(ctx, f.column, f.value) })
	}
	if sortFlag != "" {
		direction := query.Ascending
		if strings.HasPrefix(sortFlag, "-") {
			direction = query.Descending
		}
		steps = append(steps, func() error {
			return controller.SetSort(ctx, strings.TrimLeft(sortFlag, "+-"), direction)
		})
	}
	if flags.Changed("page-size") {
		steps = append(steps, func() error { return controller.SetPageSize(ctx, cfg.PageSize()) })
	}
	if page > 0 {
		steps = append(steps, func() error { return controller.GoToPage(ctx, page) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	printPage(cmd.OutOrStdout(), controller.Snapshot())
	return nil
}

func rememberedColumns(store settings.Store, key string) []table.Column {
	saved := settings.LoadQuerySettings(store, key, settings.QuerySettings{}, logger)
	names := make([]string, 0, len(saved.Filters)+len(saved.Sort))
	for name := range saved.Filters {
		names = append(names, name)
	}
	for _, s := range saved.Sort {
		names = append(names, s.Column)
	}
	sort.Strings(names)

	columns := make([]table.Column, len(names))
	for i, name := range names {
		columns[i] = hidden(name)
	}
	return columns
}

func hidden(name string) table.Column {
	column := table.NewColumn(name)
	column.Flags.Clear(table.SelectedByDefault)
	return column
}

// dedupeColumns keeps the first column of every name.
func dedupeColumns(columns []table.Column) []table.Column {
	seen := make(map[string]bool, len(columns))
	result := make([]table.Column, 0, len(columns))
	for _, column := range columns {
		if seen[column.Name] {
			continue
		}
		seen[column.Name] = true
		result = append(result, column)
	}
	return result
}

func printPage(out io.Writer, snapshot table.Snapshot[row]) {
	header := color.New(color.Bold, color.FgCyan)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	names := make([]string, len(snapshot.Visible))
	for i, column := range snapshot.Visible {
		names[i] = header.Sprint(column.Label)
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	for _, r := range snapshot.Rows {
		values := make([]string, len(snapshot.Visible))
		for i, column := range snapshot.Visible {
			values[i] = formatCell(lookup(r, column.Name))
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	_ = w.Flush()

	footer := color.New(color.Faint)
	footer.Fprintf(out, "page %d of %d, %d items", snapshot.Page, snapshot.Pages(), snapshot.Total)
	if len(snapshot.Filters) > 0 {
		footer.Fprintf(out, ", filtered on %s", filterSummary(snapshot.Filters))
	}
	fmt.Fprintln(out)
}

func filterSummary(filters map[string]string) string {
	parts := make([]string, 0, len(filters))
	for column, value := range filters {
		parts = append(parts, column+"="+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func lookup(r row, path string) interface{} {
	var current interface{} = r
	for _, key := range strings.Split(path, ".") {
		object, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = object[key]
	}
	return current
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = formatCell(item)
		}
		return strings.Join(parts, ", ")
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
