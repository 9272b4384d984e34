package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacktop/xpub/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the xpub configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the example configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
