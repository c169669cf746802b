package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

const compressLongDescription = `Compress the workspace into a zip archive.

Without arguments the whole tree is archived into "<root>_<timestamp>.zip"
inside the root, skipping ignored entries. With arguments only the given
files and folders are archived, into "selected-items.zip".`

// compressCmd represents the compress command.
var compressCmd = newCompressCmd()

func newCompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress [paths...]",
		Short: "Compress the workspace or a selection of it",
		Long:  compressLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			svc, err := newService(consoleNotifier{out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer svc.Close()

			if len(paths) == 0 {
				_, err = svc.CompressWholeTree(cmd.Context(), "")
			} else {
				_, err = svc.CompressSelection(cmd.Context(), paths, "")
			}
			if err != nil {
				// Already reported by the notifier.
				cmd.SilenceErrors = true
			}
			return err
		},
	}
}

func init() {
	rootCmd.AddCommand(compressCmd)
}

// absPaths resolves command-line paths against the working directory.
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		p, err := filepath.Abs(expandPath(a))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		out = append(out, p)
	}
	return out, nil
}
