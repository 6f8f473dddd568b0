package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yurykabanov/archivist/pkg/integrity"
)

func newVerifyCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify FILE.sha256",
		Short: "Verify artifacts against a checksum file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := integrity.Verify(cmd.Context(), args[0], dir)

			for _, e := range entries {
				switch {
				case e.OK():
					fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", e.Name)
				case e.Err != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED (%v)\n", e.Name, e.Err)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED\n", e.Name)
				}
			}

			if err != nil {
				if len(entries) == 0 {
					return err
				}
				return &exitError{code: exitFailure}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding the artifacts (default: next to the checksum file)")

	return cmd
}
