package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/observix/observix/internal/cliclient"
	"github.com/observix/observix/internal/wire"
)

func client() *cliclient.Client {
	return cliclient.New(controlPlaneURL, bearerToken)
}

// exitCodeFor maps an error to the process exit code: 0 is handled by
// cobra's nil-error path, 1 is a transport failure (never reached the
// control plane), 2 is every other error: a non-2xx API response, and also
// local failures such as an unreadable spec file.
func exitCodeFor(err error) int {
	var transportErr *cliclient.TransportError
	if errors.As(err, &transportErr) {
		return 1
	}
	return 2
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "Manage pipeline specs",
}

var pipelinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipelines, err := client().ListPipelines(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(pipelines)
		return nil
	},
}

var (
	createPipelineName        string
	createPipelineSpecFile    string
	createPipelineEnabled     bool
)

var pipelinesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pipeline from a JSON spec file",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(createPipelineSpecFile)
		if err != nil {
			return fmt.Errorf("read spec file: %w", err)
		}
		var spec wire.PipelineSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("parse spec file: %w", err)
		}
		p, err := client().CreatePipeline(cmd.Context(), createPipelineName, spec, &createPipelineEnabled)
		if err != nil {
			return err
		}
		printJSON(p)
		return nil
	},
}

// tri-state --enabled: unset means "leave enabled unchanged" on update,
// matching the flagged ambiguity's resolution -- cobra's Changed() tells
// apart "not passed" from "explicitly passed --enabled=false."
var updatePipelineEnabled bool
var updatePipelineSpecFile string

var pipelinesUpdateCmd = &cobra.Command{
	Use:   "update <pipeline_id>",
	Short: "Update a pipeline's spec and/or enabled flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var specPtr *wire.PipelineSpec
		if updatePipelineSpecFile != "" {
			raw, err := os.ReadFile(updatePipelineSpecFile)
			if err != nil {
				return fmt.Errorf("read spec file: %w", err)
			}
			var spec wire.PipelineSpec
			if err := json.Unmarshal(raw, &spec); err != nil {
				return fmt.Errorf("parse spec file: %w", err)
			}
			specPtr = &spec
		}

		var enabledPtr *bool
		if cmd.Flags().Changed("enabled") {
			v := updatePipelineEnabled
			enabledPtr = &v
		}

		p, err := client().UpdatePipeline(cmd.Context(), args[0], specPtr, enabledPtr)
		if err != nil {
			return err
		}
		printJSON(p)
		return nil
	},
}

var pipelinesDeleteCmd = &cobra.Command{
	Use:   "delete <pipeline_id>",
	Short: "Delete a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().DeletePipeline(cmd.Context(), args[0])
	},
}

func init() {
	pipelinesCreateCmd.Flags().StringVar(&createPipelineName, "name", "", "pipeline name")
	pipelinesCreateCmd.Flags().StringVar(&createPipelineSpecFile, "spec", "", "path to a JSON pipeline spec file")
	pipelinesCreateCmd.Flags().BoolVar(&createPipelineEnabled, "enabled", true, "whether the pipeline starts enabled")
	pipelinesCreateCmd.MarkFlagRequired("name")
	pipelinesCreateCmd.MarkFlagRequired("spec")

	pipelinesUpdateCmd.Flags().StringVar(&updatePipelineSpecFile, "spec", "", "path to a replacement JSON pipeline spec file")
	pipelinesUpdateCmd.Flags().BoolVar(&updatePipelineEnabled, "enabled", false, "enable or disable the pipeline")

	pipelinesCmd.AddCommand(pipelinesListCmd, pipelinesCreateCmd, pipelinesUpdateCmd, pipelinesDeleteCmd)
}

var assignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Bind pipelines to agents",
}

var (
	assignAgentID     string
	assignRegion      string
	assignPipelineID  string
)

var assignmentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Assign a pipeline to an agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := client().CreateAssignment(cmd.Context(), assignAgentID, assignRegion, assignPipelineID)
		if err != nil {
			return err
		}
		printJSON(a)
		return nil
	},
}

var assignmentsDeleteCmd = &cobra.Command{
	Use:   "delete <assignment_id>",
	Short: "Remove an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client().DeleteAssignment(cmd.Context(), args[0])
	},
}

func init() {
	assignmentsCreateCmd.Flags().StringVar(&assignAgentID, "agent-id", "", "agent_id")
	assignmentsCreateCmd.Flags().StringVar(&assignRegion, "region", "", "region")
	assignmentsCreateCmd.Flags().StringVar(&assignPipelineID, "pipeline-id", "", "pipeline_id")
	assignmentsCreateCmd.MarkFlagRequired("agent-id")
	assignmentsCreateCmd.MarkFlagRequired("pipeline-id")

	assignmentsCmd.AddCommand(assignmentsCreateCmd, assignmentsDeleteCmd)
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect registered agents",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known agents and their liveness status",
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := client().ListAgents(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(agents)
		return nil
	},
}

func init() {
	agentsCmd.AddCommand(agentsListCmd)
}
