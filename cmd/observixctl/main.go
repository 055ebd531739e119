package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

var (
	controlPlaneURL string
	bearerToken     string
)

var rootCmd = &cobra.Command{
	Use:           "observixctl",
	Short:         "Manage Observix pipelines, assignments, and agents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlPlaneURL, "control-plane", "http://127.0.0.1:8080", "control plane base URL")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "bearer token for the control plane")

	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(assignmentsCmd)
	rootCmd.AddCommand(agentsCmd)
}
