package main

import (
	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/session"
)

func NewResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <path>",
		Short:   "Print the output path a run would write to",
		GroupID: gUtility,
		Long: `Resolve an output path the way a run would: if the given file cannot be
written (open in another program, or otherwise locked), numbered
alternatives like result_1.csv are tried in order.

The resolved path is printed without creating the file, so scripts can pick
a name before starting a run.`,
		Example: `  calrun resolve result.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := session.ResolveOutputPath(args[0])
			if err != nil {
				return err
			}
			cmd.Println(resolved)
			return nil
		},
	}
}
