package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewContainerCmd создаёт группу команд для управления контейнерами форм.
func NewContainerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Manage form containers",
	}

	cmd.AddCommand(
		newContainerListCmd(clientFn, outputFn),
		newContainerCreateCmd(clientFn, outputFn),
		newContainerShowCmd(clientFn, outputFn),
		newContainerTimelineCmd(clientFn, outputFn),
		newContainerStepsCmd(clientFn, outputFn),
		newContainerValidateCmd(clientFn, outputFn),
		newContainerCancelCmd(clientFn, outputFn),
		newContainerEscalateCmd(clientFn, outputFn),
		newContainerReviseCmd(clientFn, outputFn),
	)

	return cmd
}

func containerStatus(c ContainerResponse) string {
	switch {
	case c.Validated:
		return "validated"
	case c.ArchivedAt != "":
		return "archived"
	}
	return "open"
}

func containerRow(c ContainerResponse) []string {
	return []string{c.ID, c.Title, c.UserEmail, containerStatus(c), c.CreatedAt}
}

func newContainerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List form containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			containers, err := client.ListContainers(ListContainersOpts{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			headers := []string{"ID", "TITLE", "RESPONDENT", "STATUS", "CREATED"}
			rows := make([][]string, len(containers))
			for i, c := range containers {
				rows[i] = containerRow(c)
			}

			out.Print(headers, rows, containers)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of containers")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")

	return cmd
}

func newContainerCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateContainerRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a form container and send the initial notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			container, err := client.CreateContainer(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Container created: %s", container.ID))
			out.Print(
				[]string{"ID", "TITLE", "RESPONDENT", "TOKEN", "CREATED"},
				[][]string{{container.ID, container.Title, container.UserEmail, container.AccessToken, container.CreatedAt}},
				container,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Container title (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Container description")
	cmd.Flags().StringVar(&req.UserEmail, "user-email", "", "Respondent email (required)")
	cmd.Flags().StringVar(&req.EscaladeEmail, "escalade-email", "", "Manager email for escalations")
	cmd.Flags().StringSliceVar(&req.CCEmails, "cc", nil, "CC emails")
	cmd.Flags().StringVar(&req.MailSender, "sender", "", "Sender address for notifications (required)")
	cmd.Flags().BoolVar(&req.Escalate, "escalate", false, "Enable escalation steps")
	cmd.Flags().BoolVar(&req.UseWorkingDays, "working-days", false, "Schedule delays in working days")
	cmd.Flags().StringVar(&req.Country, "country", "", "Holiday calendar country code")
	cmd.Flags().StringVar(&req.DefinitionID, "definition", "", "Workflow definition ID")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("user-email")
	cmd.MarkFlagRequired("sender")

	return cmd
}

func newContainerShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show container details with its forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			container, err := client.GetContainer(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(container)
				return nil
			}

			out.Detail([][2]string{
				{"ID", container.ID},
				{"TITLE", container.Title},
				{"RESPONDENT", container.UserEmail},
				{"ESCALATION", container.EscaladeEmail},
				{"STATUS", containerStatus(container.ContainerResponse)},
				{"TOKEN", container.AccessToken},
				{"CREATED", container.CreatedAt},
			}, nil)

			headers := []string{"FORM_ID", "STATUS", "WORKFLOW_STEP", "CREATED"}
			rows := make([][]string, len(container.Forms))
			for i, f := range container.Forms {
				rows[i] = []string{f.ID, f.Status, f.WorkflowStep, f.CreatedAt}
			}
			out.Table(headers, rows)
			return nil
		},
	}
}

func newContainerTimelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline ID",
		Short: "Show container audit timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.GetTimeline(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TIMESTAMP", "EVENT", "DETAILS"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.Timestamp, e.Event, e.Details}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}
}

func newContainerStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps ID",
		Short: "Show scheduled workflow steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "KIND", "SEQ", "ETA", "STATUS", "ATTEMPT", "ERROR"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{s.StepID, s.Kind, strconv.Itoa(s.Seq), s.ETA, s.Status, strconv.Itoa(s.Attempt), s.Error}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}

func newContainerValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate the answer and close the container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ValidateContainer(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Container validated: %s", args[0]))
			return nil
		},
	}
}

func newContainerCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel and archive a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelContainer(args[0], comment); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Container canceled: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Cancellation comment")

	return cmd
}

func newContainerEscalateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "escalate ID",
		Short: "Trigger a manual escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			step, err := client.EscalateContainer(args[0], email)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Escalation scheduled: %s", step.ID))
			out.Print(
				[]string{"ID", "KIND", "ETA", "STATUS"},
				[][]string{{step.ID, step.Kind, step.ETA, step.Status}},
				step,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Escalation target (defaults to container escalade_email)")

	return cmd
}

func newContainerReviseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "revise ID",
		Short: "Create a new form revision and restart the workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			form, err := client.CreateFormRevision(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Form revision created: %s", form.ID))
			out.Print(
				[]string{"FORM_ID", "STATUS", "CREATED"},
				[][]string{{form.ID, form.Status, form.CreatedAt}},
				form,
			)
			return nil
		},
	}
}
