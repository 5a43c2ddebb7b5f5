package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/villadeifiori/gabi/internal/cli"
	"github.com/villadeifiori/gabi/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gabi",
		Short: "Gabi CLI - Condominium knowledge base client",
		Long: `Gabi CLI talks to the knowledge-base API of the virtual property manager.

Environment variables:
  GABI_API_TOKEN   Service token for authentication (optional)
  GABI_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.StatusCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
