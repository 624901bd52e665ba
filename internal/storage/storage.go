package storage

import "time"

// Event records a single user/agent exchange together with its metering
// data. Events are appended in chronological order and feed the daily
// usage analytics.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	UserID            string    `json:"user_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	PromptTokens      int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  int       `json:"completion_tokens,omitempty"`
	CreditsCharged    int       `json:"credits_charged,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
