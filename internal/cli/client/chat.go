package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	UseHybrid      *bool  `json:"use_hybrid,omitempty"`
}

// ChatSource is one citation attached to a reply.
type ChatSource struct {
	ProcessName string  `json:"process_name"`
	ChunkType   string  `json:"chunk_type"`
	Similarity  float64 `json:"similarity"`
}

// ChatResponse represents the synchronous chat API response.
type ChatResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Sources     []ChatSource `json:"sources"`
	ContextUsed bool         `json:"context_used"`
}

type chatStreamEvent struct {
	Delta   string       `json:"delta"`
	Done    bool         `json:"done"`
	Error   string       `json:"error"`
	Sources []ChatSource `json:"sources"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		conversationID string
		userID         string
		noHybrid       bool
		noStream       bool
	)

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask Gabi a question",
		Long:  "Sends a message to the virtual property manager. Replies stream by default.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := ChatRequest{
				Message:        args[0],
				ConversationID: conversationID,
				UserID:         userID,
			}
			if noHybrid {
				hybrid := false
				req.UseHybrid = &hybrid
			}
			if noStream || outputJSON {
				return runChat(req, outputJSON)
			}
			return runChatStream(req)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID for history and persistence")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID for persistence")
	cmd.Flags().BoolVar(&noHybrid, "no-hybrid", false, "Use vector-only retrieval")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full reply instead of streaming")

	return cmd
}

func runChat(req ChatRequest, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	var resp ChatResponse
	if err := api.Post("/chat-with-rag", req, &resp); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(resp.Message)
	printSources(resp.Sources)
	return nil
}

func runChatStream(req ChatRequest) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	var sources []ChatSource
	err = api.PostStream("/chat-with-rag/stream", req, func(raw json.RawMessage) error {
		var event chatStreamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("failed to parse stream event: %w", err)
		}
		switch {
		case event.Error != "":
			return fmt.Errorf("chat failed: %s", event.Error)
		case event.Done:
			sources = event.Sources
		default:
			fmt.Fprint(os.Stdout, event.Delta)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	printSources(sources)
	return nil
}

func printSources(sources []ChatSource) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nFontes:")
	for _, source := range sources {
		fmt.Printf("  - %s [%s] (%.2f)\n", source.ProcessName, source.ChunkType, source.Similarity)
	}
}
