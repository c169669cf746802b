package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wufan123/vs-ex-compress/workspace"
)

const defaultListLimit = 20

var listLimitFlag int
var listFormatFlag string

// listItem is one row of list output.
type listItem struct {
	Path         string    `json:"path" yaml:"path"`
	RelativePath string    `json:"relativePath" yaml:"relative_path"`
	ModifiedAt   time.Time `json:"modifiedAt" yaml:"modified_at"`
	Age          string    `json:"age" yaml:"age"`
	Freshness    string    `json:"freshness" yaml:"freshness"`
	Size         int64     `json:"size" yaml:"size"`
}

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently modified files",
		Long:  "Scan the workspace once and print its files, most recently modified first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(workspace.LogNotifier{})
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := svc.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printRanked(cmd.OutOrStdout(), list, listLimitFlag, listFormatFlag, time.Now())
		},
	}

	cmd.Flags().IntVarP(&listLimitFlag, listLimitFlagName, "n", defaultListLimit, "maximum number of files to print (0 = all)")
	cmd.Flags().StringVarP(&listFormatFlag, listFormatFlagName, "f", "text", "output format: text, json or yaml")

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listItems(list *workspace.RankedList, limit int, now time.Time) []listItem {
	annotated := list.Annotated(now)
	if limit > 0 && len(annotated) > limit {
		annotated = annotated[:limit]
	}
	items := make([]listItem, 0, len(annotated))
	for _, it := range annotated {
		items = append(items, listItem{
			Path:         it.Path,
			RelativePath: it.RelativePath,
			ModifiedAt:   it.ModifiedAt,
			Age:          humanize.RelTime(it.ModifiedAt, now, "ago", "from now"),
			Freshness:    string(it.Freshness),
			Size:         it.Size,
		})
	}
	return items
}

func printRanked(w io.Writer, list *workspace.RankedList, limit int, format string, now time.Time) error {
	items := listItems(list, limit, now)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if len(items) == 0 {
			_, err := fmt.Fprintln(w, "No files found.")
			return err
		}
		for _, it := range items {
			if _, err := fmt.Fprintf(w, "%-6s  %10s  %-16s  %s\n",
				it.Freshness, workspace.FormatSize(it.Size), it.Age, it.RelativePath); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}
