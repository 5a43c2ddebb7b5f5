package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ProcessStatus represents the lifecycle status of a condominium process.
type ProcessStatus string

const (
	ProcessStatusDraft    ProcessStatus = "rascunho"
	ProcessStatusInReview ProcessStatus = "em_revisao"
	ProcessStatusApproved ProcessStatus = "aprovado"
	ProcessStatusRejected ProcessStatus = "rejeitado"
)

// IsValidProcessStatus checks whether the given status is a known value.
func IsValidProcessStatus(s ProcessStatus) bool {
	switch s {
	case ProcessStatusDraft, ProcessStatusInReview, ProcessStatusApproved, ProcessStatusRejected:
		return true
	}
	return false
}

// Process is a condominium process record, owned by the process-management
// subsystem. The ingestion pipeline only reads it.
type Process struct {
	ID           string
	Name         string
	Category     string
	DocumentType string
	Status       ProcessStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsApproved reports whether the process may be ingested.
func (p *Process) IsApproved() bool {
	return p.Status == ProcessStatusApproved
}

// ProcessVersion is an immutable-once-approved snapshot of a process's
// structured content.
type ProcessVersion struct {
	ID        string
	ProcessID string
	Version   int
	Content   ProcessContent
	// RawContent preserves the stored JSON for the fallback chunk.
	RawContent []byte
	CreatedAt  time.Time
}

// ProcessContent is the structured content of a process version.
type ProcessContent struct {
	Description string            `json:"description,omitempty"`
	Workflow    []WorkflowStep    `json:"workflow,omitempty"`
	Entities    []string          `json:"entities,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	RACI        []RACIEntry       `json:"raci,omitempty"`
}

// WorkflowStep is a single workflow step. Stored content may carry steps as
// plain strings or as objects with a step/description property.
type WorkflowStep struct {
	Text string
}

func (s *WorkflowStep) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.Text = asString
		return nil
	}

	var asObject struct {
		Step        string `json:"step"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &asObject); err == nil {
		if asObject.Step != "" {
			s.Text = asObject.Step
			return nil
		}
		if asObject.Description != "" {
			s.Text = asObject.Description
			return nil
		}
	}

	// Unknown shape: keep the raw JSON so the step is not lost.
	s.Text = string(data)
	return nil
}

func (s WorkflowStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Text)
}

// RACIEntry maps a workflow role to the people filling it. Stored entries
// may be plain strings; those land in Raw.
type RACIEntry struct {
	Raw         string
	Role        string
	Responsible string
	Accountable string
	Consulted   string
	Informed    string
}

func (e *RACIEntry) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		e.Raw = asString
		return nil
	}

	var asObject struct {
		Role        string `json:"role"`
		Responsible string `json:"responsible"`
		Accountable string `json:"accountable"`
		Consulted   string `json:"consulted"`
		Informed    string `json:"informed"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return err
	}
	e.Role = asObject.Role
	e.Responsible = asObject.Responsible
	e.Accountable = asObject.Accountable
	e.Consulted = asObject.Consulted
	e.Informed = asObject.Informed
	return nil
}

func (e RACIEntry) MarshalJSON() ([]byte, error) {
	if e.Raw != "" {
		return json.Marshal(e.Raw)
	}
	return json.Marshal(struct {
		Role        string `json:"role,omitempty"`
		Responsible string `json:"responsible,omitempty"`
		Accountable string `json:"accountable,omitempty"`
		Consulted   string `json:"consulted,omitempty"`
		Informed    string `json:"informed,omitempty"`
	}{e.Role, e.Responsible, e.Accountable, e.Consulted, e.Informed})
}

// Line renders the entry the way it is embedded: "{role}: {responsible}".
func (e RACIEntry) Line() string {
	if e.Raw != "" {
		return e.Raw
	}
	role := e.Role
	if strings.TrimSpace(role) == "" {
		role = "N/A"
	}
	responsible := e.Responsible
	if strings.TrimSpace(responsible) == "" {
		responsible = "N/A"
	}
	return role + ": " + responsible
}
