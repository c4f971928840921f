package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simwire/simwire/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errorOutput decides how a failed command's error is printed. Commands
// that load a config set jsonLogs from log.format.
var errorOutput struct {
	quiet    bool
	jsonLogs bool
}

const banner = `
  ┌─┐┬┌┬┐┬ ┬┬┬─┐┌─┐
  └─┐││││││││├┬┘├┤
  └─┘┴┴ ┴└┴┘┴┴└─└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "simwire",
		Short: "Region simulator speaking the viewer circuit protocol",
		Long: `Simwire hosts a region for virtual-world viewers.

It speaks the UDP circuit protocol (reliable delivery, acks and
zero-coding), streams DCT-compressed terrain and serves the HTTP
event queue for messages retired from UDP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&errorOutput.quiet, "quiet", "q", false, "Print errors on one line without color")

	rootCmd.AddCommand(
		serveCmd(),
		terrainCmd(),
		messagesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.Write(os.Stderr, err, errorStyle(errorOutput.jsonLogs, errorOutput.quiet, isTerminal(os.Stderr)))
		os.Exit(1)
	}
}

// errorStyle picks JSON when the config asks for JSON logs, a single line
// when quiet or not writing to a terminal, and the full report otherwise.
func errorStyle(jsonLogs, quiet, terminal bool) errors.Style {
	switch {
	case jsonLogs:
		return errors.StyleJSON
	case quiet || !terminal:
		return errors.StyleLine
	}
	return errors.StyleTerminal
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
