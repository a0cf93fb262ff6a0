package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDefinitionCmd создаёт группу команд для управления определениями workflow.
func NewDefinitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Manage workflow definitions",
	}

	cmd.AddCommand(
		newDefinitionListCmd(clientFn, outputFn),
		newDefinitionCreateCmd(clientFn, outputFn),
		newDefinitionShowCmd(clientFn, outputFn),
		newDefinitionDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newDefinitionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definitions, err := client.ListDefinitions()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STEPS", "CREATED_BY", "CREATED"}
			rows := make([][]string, len(definitions))
			for i, d := range definitions {
				rows[i] = []string{d.ID, d.Name, strconv.Itoa(len(d.Steps)), d.CreatedBy, d.CreatedAt}
			}

			out.Print(headers, rows, definitions)
			return nil
		},
	}
}

func newDefinitionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var createdBy string
	var stepsFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow definition from a steps file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(stepsFile)
			if err != nil {
				return fmt.Errorf("failed to read steps file: %w", err)
			}

			var steps []StepDefJSON
			if err := json.Unmarshal(data, &steps); err != nil {
				return fmt.Errorf("steps file is not a valid step array: %w", err)
			}

			def, err := client.CreateDefinition(CreateDefinitionRequest{
				Name:      name,
				CreatedBy: createdBy,
				Steps:     steps,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition created: %s", def.ID))
			out.Print(
				[]string{"ID", "NAME", "STEPS", "CREATED"},
				[][]string{{def.ID, def.Name, strconv.Itoa(len(def.Steps)), def.CreatedAt}},
				def,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Definition name (required)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Author email")
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "Path to steps JSON file (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("steps-file")

	return cmd
}

func newDefinitionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show definition steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetDefinition(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "KIND", "DELAY_DAYS"}
			rows := make([][]string, len(def.Steps))
			for i, s := range def.Steps {
				rows[i] = []string{s.ID, s.Kind, strconv.Itoa(s.DelayDays)}
			}

			out.Print(headers, rows, def)
			return nil
		},
	}
}

func newDefinitionDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteDefinition(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition deleted: %s", args[0]))
			return nil
		},
	}
}
