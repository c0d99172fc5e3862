package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gridnet",
	Short: "Vehicle messaging and peer discovery over a broadcast grid",
	Long: `gridnet runs simulated vehicles that exchange commands and discover
each other over a lossy broadcast medium. Vehicles address one another
with grid:// URIs and gossip their position, velocity and liveness on
shared discovery channels.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
