package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/converge/internal/app"
	"github.com/vk/converge/internal/formatter"
	"github.com/vk/converge/internal/plan"
)

func (c *CLI) planCommand() *cobra.Command {
	var destroy bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change, without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadAndMerge(cmd)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			a := c.buildApp(s)
			p, err := a.Plan(cmd.Context(), destroy)
			if err != nil {
				return err
			}
			fmt.Fprint(c.outW, p.Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&destroy, "destroy", false, "Plan the destruction of every managed resource.")
	return cmd
}

func (c *CLI) applyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create, update and destroy resources to match the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runApply(cmd, false)
		},
	}
	cmd.Flags().Bool("auto-approve", false, "Skip the interactive approval prompt.")
	return cmd
}

func (c *CLI) destroyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy every resource recorded in state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runApply(cmd, true)
		},
	}
	cmd.Flags().Bool("auto-approve", false, "Skip the interactive approval prompt.")
	return cmd
}

func (c *CLI) runApply(cmd *cobra.Command, destroy bool) error {
	s, err := loadAndMerge(cmd)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	a := c.buildApp(s)

	var approve app.ApproveFunc
	if !s.AutoApprove {
		approve = c.promptApproval
	}

	result, err := a.Apply(cmd.Context(), destroy, approve)
	if err != nil {
		return err
	}
	if result.Failed() {
		return &ExitError{Code: 1, Message: "apply finished with failed or abandoned operations"}
	}
	return nil
}

// promptApproval asks the user to type "yes" before execution starts.
func (c *CLI) promptApproval(p *plan.Plan) (bool, error) {
	fmt.Fprint(c.outW, "\nDo you want to perform these actions? Only 'yes' will be accepted: ")
	line, err := bufio.NewReader(c.inR).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("reading approval: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}

func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for syntax, reference and cycle errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadAndMerge(cmd)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			a := c.buildApp(s)
			if err := a.Validate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.outW, "Configuration is valid.")
			return nil
		},
	}
}

func (c *CLI) graphCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the resource dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadAndMerge(cmd)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			a := c.buildApp(s)
			g, err := a.Graph(cmd.Context())
			if err != nil {
				return err
			}

			var out string
			switch format {
			case "dot":
				out, err = formatter.ToDOT(g)
			case "json":
				out, err = formatter.ToJSON(g)
			default:
				return &ExitError{Code: 2, Message: fmt.Sprintf("invalid format %q: must be 'dot' or 'json'", format)}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.outW, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "dot", "Output format: 'dot' or 'json'.")
	return cmd
}
