package item

import (
	"github.com/spf13/cobra"

	"github.com/fentonlabs/daxc/client"
	"github.com/fentonlabs/daxc/cmd/util"
)

var (
	daxClient *client.Client

	// ItemCommands represents the item command group
	ItemCommands = &cobra.Command{
		Use:               "item",
		Short:             "Perform table operations against the cluster",
		PersistentPreRunE: setupClient,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if daxClient != nil {
				return daxClient.Close()
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common cluster flags to the item command
	util.SetupClientFlags(ItemCommands)

	// Add subcommands
	ItemCommands.AddCommand(getCmd)
	ItemCommands.AddCommand(putCmd)
	ItemCommands.AddCommand(delCmd)
	ItemCommands.AddCommand(queryCmd)
	ItemCommands.AddCommand(scanCmd)
	ItemCommands.AddCommand(describeCmd)
}

// setupClient initializes the cluster client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	daxClient, err = util.NewClient()
	return err
}
