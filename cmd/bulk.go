package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mangoautomation/dashboard-data-apis/bulk"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

func bulkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <collection> <file.json>",
		Short: "Save a file of edits as one bulk task",
		Long: "Save a file of edits as one bulk task. The file holds a JSON array of edits: " +
			`{"originalXid": "...", "remove": false, "body": {...}}. An edit without originalXid ` +
			"creates an item, one with remove set deletes it, any other updates it.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, args[0], args[1])
		},
	}
}

// fileEdit is one entry of an edits file.
type fileEdit struct {
	OriginalXID string `json:"originalXid"`
	Remove      bool   `json:"remove"`
	Body        row    `json:"body"`
}

func readEdits(path string) ([]bulk.Edit[row], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []fileEdit
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, e.NewPreconditionError("%s holds no edits", path)
	}

	edits := make([]bulk.Edit[row], len(entries))
	for i, entry := range entries {
		edits[i] = bulk.Edit[row]{
			// the position in the file identifies the row in the messages
			Key:         strconv.Itoa(i + 1),
			OriginalXID: entry.OriginalXID,
			Row:         entry.Body,
			Remove:      entry.Remove,
		}
	}
	return edits, nil
}

func runBulk(cmd *cobra.Command, collection, path string) error {
	edits, err := readEdits(path)
	if err != nil {
		return err
	}
	cfg, err := createConfig()
	if err != nil {
		return err
	}

	editor := bulk.NewEditor[row](cfg, createClient(cfg, collection), consoleNotifier())
	for _, edit := range edits {
		editor.Stage(edit)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	progress := color.New(color.Faint)
	outcome, err := editor.Submit(ctx, func(task m.Task) {
		progress.Fprintf(out, "%s %d/%d\n", task.Status, task.Position, task.Maximum)
	})
	if err != nil {
		return err
	}

	printOutcome(out, outcome)
	if outcome.Status != m.TaskSuccess || len(outcome.Failed) > 0 {
		return e.NewPreconditionError("%d of %d edits were not saved", len(outcome.Failed), len(edits))
	}
	return nil
}

func printOutcome(out io.Writer, outcome *bulk.Outcome[row]) {
	bold := color.New(color.Bold)
	failed := color.New(color.FgRed)

	bold.Fprintf(out, "task %s: %s\n", outcome.Task.ID, outcome.Status)
	for _, r := range outcome.Rows {
		color.New(color.FgGreen).Fprintf(out, "  saved %v\n", r["xid"])
	}

	keys := make([]string, 0, len(outcome.RowMessages))
	for key := range outcome.RowMessages {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	for _, key := range keys {
		for _, message := range outcome.RowMessages[key] {
			failed.Fprintf(out, "  edit %s: %s %s\n", key, message.Property, message.String())
		}
	}
	for _, message := range outcome.GeneralErrors {
		failed.Fprintf(out, "  %s\n", message.String())
	}
	for _, message := range outcome.ResponseErrors {
		failed.Fprintf(out, "  edit %s: %s\n", message.RowKey, message.Message)
	}
}
