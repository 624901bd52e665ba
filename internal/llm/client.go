package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ToolCalls        []ToolCall
}

// Client is the inference collaborator boundary. Every call may fail
// (timeout, malformed output, policy rejection) and callers must treat
// a failure as recoverable.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// ToolClient is implemented by clients that support function calling.
type ToolClient interface {
	Client
	GenerateWithTools(ctx context.Context, messages []Message, tools []Tool) (Response, error)
}

// Embedder converts text into an embedding vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Moderator reports whether a text violates the provider's content policy.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

type Tool struct {
	Type     string
	Function Function
}

type Function struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

type FunctionCall struct {
	Name      string
	Arguments map[string]interface{}
}
