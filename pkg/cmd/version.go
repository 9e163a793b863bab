package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   VersionCmdName,
	Short: VersionCmdShort,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", RootCmdName, Version, runtime.Version())
	},
}
