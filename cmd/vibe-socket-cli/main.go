// Command vibe-socket-cli submits patient processing jobs and follows their results.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to the shell
	}
}

type rootOptions struct {
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "vibe-socket-cli",
		Short: "Submit patient processing jobs and watch results stream back",
		Long: `vibe-socket-cli talks to a running vibe-socket server.

Examples:
  vibe-socket-cli submit patient-42 --watch
  vibe-socket-cli status patient-42
  vibe-socket-cli watch --count 5`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("VIBE_SOCKET_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "Server base URL (env VIBE_SOCKET_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request and watch timeout")

	root.AddCommand(
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newPatientsCmd(opts),
		newWatchCmd(opts),
	)
	return root
}
