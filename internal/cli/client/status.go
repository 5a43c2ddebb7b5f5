package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// IngestionStatus represents one ingestion status row from the API.
type IngestionStatus struct {
	ID               string     `json:"id"`
	ProcessID        string     `json:"process_id"`
	ProcessVersionID string     `json:"process_version_id"`
	Status           string     `json:"status"`
	ChunksCount      int        `json:"chunks_count"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StatusListResponse represents the status listing API response.
type StatusListResponse struct {
	Items      []IngestionStatus `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	var (
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "status [process-id version-id]",
		Short: "Show ingestion status",
		Long:  "Shows the ingestion status for one process version, or lists recent runs.",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if len(args) == 2 {
				return runStatusGet(args[0], args[1], outputJSON)
			}
			if len(args) == 1 {
				return fmt.Errorf("status requires both process-id and version-id, or neither")
			}
			return runStatusList(cursor, limit, outputJSON)
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows")

	return cmd
}

func runStatusGet(processID, versionID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	var status IngestionStatus
	path := "/ingestion-status/" + url.PathEscape(processID) + "/" + url.PathEscape(versionID)
	if err := api.Get(path, &status); err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printStatus(status)
	return nil
}

func runStatusList(cursor string, limit int, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/ingestion-status"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp StatusListResponse
	if err := api.Get(path, &resp); err != nil {
		return fmt.Errorf("failed to list statuses: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Items) == 0 {
		fmt.Println("No ingestion runs found.")
		return nil
	}

	for _, status := range resp.Items {
		printStatus(status)
		fmt.Println()
	}
	if resp.HasMore && resp.NextCursor != "" {
		fmt.Printf("More rows available. Use --cursor %s\n", resp.NextCursor)
	}
	return nil
}

func printStatus(status IngestionStatus) {
	fmt.Printf("process %s version %s: %s", status.ProcessID, status.ProcessVersionID, status.Status)
	switch status.Status {
	case "completed":
		fmt.Printf(" (%d chunks)", status.ChunksCount)
	case "failed":
		if status.ErrorMessage != "" {
			fmt.Printf(" (%s)", status.ErrorMessage)
		}
	}
	fmt.Printf("\n  updated %s\n", status.UpdatedAt.Local().Format(time.RFC3339))
}
