package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/villadeifiori/gabi/internal/domain"
)

// ChunkConfig controls sliding-window chunking for freeform documents.
type ChunkConfig struct {
	WindowSize int
	Overlap    int
}

// DefaultChunkConfig provides the pipeline defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowSize: 1000,
		Overlap:    200,
	}
}

// Chunker turns process and document content into chunk drafts. It performs
// no embedding and no persistence.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) *Chunker {
	if cfg.WindowSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowSize {
		cfg.Overlap = DefaultChunkConfig().Overlap
	}
	return &Chunker{cfg: cfg}
}

// ChunkProcess produces at most one draft per populated content field, in
// the fixed order name, description, workflow, entities, variables, raci.
// When nothing is populated it emits a single content draft carrying the
// raw version content.
func (c *Chunker) ChunkProcess(process *domain.Process, version *domain.ProcessVersion) []domain.ChunkDraft {
	var drafts []domain.ChunkDraft
	content := version.Content

	baseMetadata := func() map[string]any {
		return map[string]any{
			"category":      process.Category,
			"document_type": process.DocumentType,
			"process_name":  process.Name,
			"source":        "process",
		}
	}

	if process.Name != "" {
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeName,
			Content:    process.Name,
			Metadata:   baseMetadata(),
		})
	}

	if content.Description != "" {
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeDescription,
			Content:    content.Description,
			Metadata:   baseMetadata(),
		})
	}

	if len(content.Workflow) > 0 {
		lines := make([]string, 0, len(content.Workflow))
		for i, step := range content.Workflow {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, step.Text))
		}
		metadata := baseMetadata()
		metadata["workflow_steps"] = len(content.Workflow)
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeWorkflow,
			Content:    strings.Join(lines, "\n"),
			Metadata:   metadata,
		})
	}

	if len(content.Entities) > 0 {
		metadata := baseMetadata()
		metadata["entities"] = content.Entities
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeEntities,
			Content:    "Entidades envolvidas: " + strings.Join(content.Entities, ", "),
			Metadata:   metadata,
		})
	}

	if len(content.Variables) > 0 {
		keys := make([]string, 0, len(content.Variables))
		for k := range content.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+content.Variables[k])
		}
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeVariables,
			Content:    strings.Join(lines, "\n"),
			Metadata:   baseMetadata(),
		})
	}

	if len(content.RACI) > 0 {
		lines := make([]string, 0, len(content.RACI))
		for _, entry := range content.RACI {
			lines = append(lines, entry.Line())
		}
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: len(drafts),
			ChunkType:  domain.ChunkTypeRACI,
			Content:    strings.Join(lines, "\n"),
			Metadata:   baseMetadata(),
		})
	}

	if len(drafts) == 0 {
		raw := string(version.RawContent)
		if raw == "" {
			raw = "{}"
		}
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: 0,
			ChunkType:  domain.ChunkTypeContent,
			Content:    raw,
			Metadata:   baseMetadata(),
		})
	}

	return drafts
}

// ChunkDocument windows the document content with the configured size and
// overlap. Windows are trimmed; windows that are empty after trimming are
// dropped, and indices follow emission order. A window that reaches the end
// of the content terminates the scan, so no fully-overlapped tail window is
// emitted.
func (c *Chunker) ChunkDocument(doc *domain.Document) []domain.ChunkDraft {
	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil
	}

	step := c.cfg.WindowSize - c.cfg.Overlap

	docType := doc.DocumentType
	if docType == "" {
		docType = "outro"
	}
	category := doc.Category
	if category == "" {
		category = "Outro"
	}

	var drafts []domain.ChunkDraft
	for start := 0; ; start += step {
		end := start + c.cfg.WindowSize
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			drafts = append(drafts, domain.ChunkDraft{
				ChunkIndex: len(drafts),
				ChunkType:  domain.ChunkTypeContent,
				Content:    window,
				Metadata: map[string]any{
					"document_id":    doc.ID,
					"document_title": doc.Title,
					"document_type":  docType,
					"category":       category,
					"source":         "document",
				},
			})
		}

		if end >= len(runes) {
			break
		}
	}

	return drafts
}
