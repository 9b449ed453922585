// Command lookupd runs the lookup-data service and its admin tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refdata-io/lookupd/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "lookupd",
		Short: "Reference-data service for lookup entities",
		Long: "lookupd serves countries, devices, and educational institutions from a\n" +
			"durable key-value store mirrored into a Redis search index.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.Init()
	config.SetupFlags(root)

	root.AddCommand(
		newServeCmd(),
		newCreateTablesCmd(),
		newDropTablesCmd(),
		newInitIndexCmd(),
		newLoadDataCmd(),
		newCleanDataCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
