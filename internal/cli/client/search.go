package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request. MatchThreshold is a
// pointer so `-t 0` requests an unfiltered search instead of the default.
type SearchRequest struct {
	Query          string   `json:"query"`
	MatchThreshold *float64 `json:"match_threshold,omitempty"`
	MatchCount     int      `json:"match_count,omitempty"`
	UseHybrid      bool     `json:"use_hybrid,omitempty"`
}

// SearchResult represents one ranked chunk from the API.
type SearchResult struct {
	ProcessID   string  `json:"process_id,omitempty"`
	ProcessName string  `json:"process_name,omitempty"`
	ChunkType   string  `json:"chunk_type"`
	Content     string  `json:"content"`
	Similarity  float64 `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Success bool           `json:"success"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		threshold float64
		limit     int
		hybrid    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long:  "Searches ingested processes and documents using semantic search.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			var t *float64
			if cmd.Flags().Changed("threshold") {
				t = &threshold
			}
			return runSearch(args[0], t, limit, hybrid, outputJSON)
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Minimum similarity (default 0.7)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Combine semantic and full-text ranking")

	return cmd
}

func runSearch(query string, threshold *float64, limit int, hybrid, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	var resp SearchResponse
	err = api.Post("/search-knowledge", SearchRequest{
		Query:          query,
		MatchThreshold: threshold,
		MatchCount:     limit,
		UseHybrid:      hybrid,
	}, &resp)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(resp.Results))
	for i, result := range resp.Results {
		name := result.ProcessName
		if name == "" {
			name = "Documento"
		}
		fmt.Printf("%d. %s [%s] (%.2f)\n", i+1, name, result.ChunkType, result.Similarity)

		content := result.Content
		if len(content) > 200 {
			content = content[:197] + "..."
		}
		fmt.Printf("   %s\n", content)
		if i < len(resp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
