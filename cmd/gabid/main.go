package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/villadeifiori/gabi/internal/cli"
	"github.com/villadeifiori/gabi/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gabid",
		Short: "Gabi daemon",
		Long:  "Gabi daemon runs the knowledge-base API server and the background ingestion worker",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
