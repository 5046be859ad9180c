package models

// These structs define the JSON payloads exchanged between the Cloud Workflow,
// the parser function and streaming clients.

// WorkflowArgs is the argument passed to a parse workflow execution.
type WorkflowArgs struct {
	RunID  string `json:"runId"`
	GCSUri string `json:"gcsUri"`
}

// ParseRequest is the input for the resume-parser function.
type ParseRequest struct {
	RunID       string `json:"runId"`
	GCSUri      string `json:"gcsUri"`
	ExecutionID string `json:"executionId"`
}

// StepPayload is one agent output. It is streamed as a line of NDJSON and
// collected into ParseResponse.
type StepPayload struct {
	RunID    string   `json:"runId"`
	Step     int      `json:"step"`
	Sender   string   `json:"sender"`
	Message  string   `json:"message"`
	Count    int      `json:"count"`
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues,omitempty"`
}

// ParseResponse is the output of the resume-parser function.
type ParseResponse struct {
	Status        string        `json:"status"`
	RunID         string        `json:"runId"`
	Approved      bool          `json:"approved"`
	Attempts      int           `json:"attempts"`
	Extraction    string        `json:"extraction,omitempty"`
	ExtractionURI string        `json:"extractionUri,omitempty"`
	Steps         []StepPayload `json:"steps,omitempty"`
}
