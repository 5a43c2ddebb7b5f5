package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// IngestProcessRequest represents the process ingestion API request.
type IngestProcessRequest struct {
	ProcessID        string `json:"process_id"`
	ProcessVersionID string `json:"process_version_id"`
}

// IngestDocumentRequest represents the document ingestion API request.
type IngestDocumentRequest struct {
	DocumentID string `json:"document_id"`
}

// ChunkFailure is one chunk that could not be embedded.
type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	ChunkType  string `json:"chunk_type"`
	Error      string `json:"error"`
}

// IngestResponse represents either ingestion API response.
type IngestResponse struct {
	Success        bool           `json:"success"`
	ChunksIngested int            `json:"chunks_ingested"`
	ChunksCount    int            `json:"chunks_count"`
	FailedChunks   []ChunkFailure `json:"failed_chunks"`
}

// IngestCmd creates the ingest command with process and document subcommands.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest content into the knowledge base",
	}

	cmd.AddCommand(ingestProcessCmd())
	cmd.AddCommand(ingestDocumentCmd())

	return cmd
}

func ingestProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <process-id> <version-id>",
		Short: "Ingest one approved process version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			var resp IngestResponse
			err = api.Post("/ingest-process", IngestProcessRequest{
				ProcessID:        args[0],
				ProcessVersionID: args[1],
			}, &resp)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			printIngestResult(resp, resp.ChunksIngested, outputJSON)
			return nil
		},
	}
}

func ingestDocumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "document <document-id>",
		Short: "Ingest one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			var resp IngestResponse
			err = api.Post("/ingest-document", IngestDocumentRequest{DocumentID: args[0]}, &resp)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			printIngestResult(resp, resp.ChunksCount, outputJSON)
			return nil
		},
	}
}

func printIngestResult(resp IngestResponse, chunks int, outputJSON bool) {
	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("Ingested %d chunks.\n", chunks)
	if len(resp.FailedChunks) > 0 {
		fmt.Printf("%d chunks failed to embed:\n", len(resp.FailedChunks))
		for _, failure := range resp.FailedChunks {
			fmt.Printf("  - chunk %d (%s): %s\n", failure.ChunkIndex, failure.ChunkType, failure.Error)
		}
	}
}
