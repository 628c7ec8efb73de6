// Package cli exposes the converge command tree: plan, apply, destroy,
// validate and graph.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/converge/internal/app"
	"github.com/vk/converge/internal/hcl"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/state"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// CLI binds the command tree to its input and output streams so tests can
// drive it without touching the process's real streams.
type CLI struct {
	outW io.Writer
	errW io.Writer
	inR  io.Reader
	// newRegistry is swappable so tests can inject a pre-seeded provider.
	newRegistry func() *provider.Registry
}

// New constructs a CLI writing results to outW and logs to errW, reading
// interactive confirmations from inR.
func New(outW, errW io.Writer, inR io.Reader) *CLI {
	return &CLI{
		outW:        outW,
		errW:        errW,
		inR:         inR,
		newRegistry: builtinRegistry,
	}
}

// Execute parses args and runs the selected command.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(c.outW)
	root.SetErr(c.errW)
	return root.ExecuteContext(ctx)
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "converge [command]",
		Short: "Reconcile declared resources against a remote system",
		Long: `converge reads a declarative description of desired resources, compares
it with recorded state, and creates, updates or destroys remote objects
until the system matches the description.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config-dir", ".", "Directory (or single file) holding the .hcl configuration.")
	pf.String("state", "converge.state.json", "Path to the state file.")
	pf.Int("parallelism", 10, "Maximum number of concurrent provider operations.")
	pf.String("log-format", "text", "Log output format: 'text' or 'json'.")
	pf.String("log-level", "info", "Log level: 'debug', 'info', 'warn', or 'error'.")

	root.AddCommand(
		c.planCommand(),
		c.applyCommand(),
		c.destroyCommand(),
		c.validateCommand(),
		c.graphCommand(),
	)
	return root
}

// buildApp wires a fully configured App for one command invocation.
func (c *CLI) buildApp(s *Settings) *app.App {
	cfg := &app.Config{
		ConfigDir:   s.ConfigDir,
		StatePath:   s.StatePath,
		Parallelism: s.Parallelism,
		LogFormat:   s.LogFormat,
		LogLevel:    s.LogLevel,
	}
	return app.NewApp(c.outW, c.errW, cfg, hcl.NewLoader(), state.NewFileStore(s.StatePath), c.newRegistry())
}
