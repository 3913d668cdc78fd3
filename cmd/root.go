package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentonlabs/daxc/client"
	"github.com/fentonlabs/daxc/cmd/item"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "daxc",
		Short: "accelerator client for a hosted table store",
		Long: fmt.Sprintf(`daxc (v%s)

A client for in-region cache clusters fronting a hosted key-value/table
store, speaking the cluster's binary protocol directly instead of the
public REST API.`, client.Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of daxc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("daxc v%s\n", client.Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(item.ItemCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
