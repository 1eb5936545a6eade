// Package commands implements the emsctl CLI commands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goems/internal/client"
)

var (
	// sess is the established client session, opened in
	// PersistentPreRunE and closed in PersistentPostRunE.
	sess *client.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// rendezvousPath is the goems daemon's well-known rendezvous FIFO.
	rendezvousPath string

	// reqPath and respPath are this invocation's per-session FIFOs. Left
	// empty, they default to PID-scoped paths under os.TempDir so two
	// concurrent emsctl invocations never collide.
	reqPath  string
	respPath string
)

// rootCmd is the top-level cobra command for emsctl.
var rootCmd = &cobra.Command{
	Use:   "emsctl",
	Short: "CLI client for the goems Event Management Server",
	Long:  "emsctl communicates with the goems daemon over named FIFOs to create events, reserve seats, and inspect the catalog.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// The version command talks to no daemon.
		if cmd.Name() == "version" {
			return nil
		}

		if reqPath == "" {
			reqPath = defaultSessionPath("req")
		}
		if respPath == "" {
			respPath = defaultSessionPath("resp")
		}

		c, err := client.Setup(rendezvousPath, reqPath, respPath)
		if err != nil {
			return fmt.Errorf("setup session: %w", err)
		}
		sess = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" || cmd.Name() == "quit" || sess == nil {
			return nil
		}
		return sess.Close()
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// defaultSessionPath builds a PID-scoped FIFO path for this invocation;
// internal/client.Setup creates the FIFO itself if it doesn't exist.
func defaultSessionPath(kind string) string {
	return filepath.Join(os.TempDir(), "emsctl-"+strconv.Itoa(os.Getpid())+"-"+kind)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rendezvousPath, "rendezvous", "/tmp/goems.rendezvous",
		"goems daemon's rendezvous FIFO path")
	rootCmd.PersistentFlags().StringVar(&reqPath, "req-pipe", "",
		"request FIFO path (default: PID-scoped temp path)")
	rootCmd.PersistentFlags().StringVar(&respPath, "resp-pipe", "",
		"response FIFO path (default: PID-scoped temp path)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(reserveCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(quitCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
