package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wufan123/vs-ex-compress/workspace"
)

// inspectCmd represents the inspect command.
var inspectCmd = newInspectCmd()

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List the entries of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := expandPath(args[0])
			fsys := afero.NewOsFs()

			names, err := workspace.ListArchive(cmd.Context(), fsys, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name) //nolint:errcheck
			}

			info, err := fsys.Stat(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d entries, %s\n", len(names), workspace.FormatSize(info.Size())) //nolint:errcheck
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
