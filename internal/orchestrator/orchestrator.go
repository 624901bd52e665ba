// Package orchestrator coordinates the per-message pipeline: concurrent
// trait updates and knowledge extraction, context assembly, response
// generation, history upkeep and cost accounting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"astra-agent/internal/billing"
	"astra-agent/internal/extraction"
	"astra-agent/internal/history"
	"astra-agent/internal/llm"
	"astra-agent/internal/store"
	"astra-agent/internal/traits"
)

// AgentName is the role recorded in history for the agent's replies.
const AgentName = "Astra"

type Orchestrator struct {
	mbti      *traits.MBTIService
	ocean     *traits.OceanService
	knowledge *extraction.Service
	slang     *extraction.Service
	history   *history.Manager
	ledger    *billing.Ledger
	store     *store.Store
	client    llm.Client
	model     string
	log       *zap.Logger
	locks     userLocks
}

func New(
	mbti *traits.MBTIService,
	ocean *traits.OceanService,
	knowledge *extraction.Service,
	slang *extraction.Service,
	hist *history.Manager,
	ledger *billing.Ledger,
	st *store.Store,
	client llm.Client,
	model string,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		mbti:      mbti,
		ocean:     ocean,
		knowledge: knowledge,
		slang:     slang,
		history:   hist,
		ledger:    ledger,
		store:     st,
		client:    client,
		model:     model,
		log:       log,
	}
}

// LeadResult carries the reply plus the metering data for audit logging.
type LeadResult struct {
	Reply            string
	PromptTokens     int
	CompletionTokens int
	CreditsCharged   int
}

// analyze fans out the three independent per-message tasks and waits for
// all of them. Failures are logged and degrade to "no update this turn";
// they never cancel the sibling tasks or the request.
func (o *Orchestrator) analyze(ctx context.Context, userID, message string) {
	var g errgroup.Group
	g.Go(func() error {
		if _, err := o.mbti.AnalyzeMessage(ctx, userID, message); err != nil {
			o.log.Warn("MBTI analysis failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if _, err := o.ocean.AnalyzeMessage(ctx, userID, message); err != nil {
			o.log.Warn("OCEAN analysis failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if _, err := o.knowledge.Extract(ctx, userID, message); err != nil {
			o.log.Warn("knowledge extraction failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()
}

// Orchestrate runs the analysis pipeline and generates a reply informed by
// the user's personality profile and stored knowledge.
func (o *Orchestrator) Orchestrate(ctx context.Context, userID, message string) (string, error) {
	unlock := o.locks.lock(userID)
	defer unlock()

	o.analyze(ctx, userID, message)

	mbtiRec, err := o.mbti.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	oceanRec, err := o.ocean.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	typeCode := traits.TypeCode(mbtiRec)
	stylePrompt := traits.StylePrompt(typeCode)

	similar := o.retrieveKnowledge(ctx, userID, message, 3)

	systemPrompt := fmt.Sprintf(
		"MBTI Type: %s. %s\nOCEAN Traits: %s.\nSimilar Previous Knowledge: %s.\n\n"+
			"You are a conversational agent. Respond to the user using the information provided.",
		typeCode, stylePrompt, traits.LabelSummary(oceanRec), similar)

	resp, err := o.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		return "", fmt.Errorf("response generation: %w", err)
	}

	if _, err := o.history.Append(ctx, userID, "user", message); err != nil {
		o.log.Warn("failed to append user message", zap.String("user_id", userID), zap.Error(err))
	}
	hist, err := o.history.Append(ctx, userID, AgentName, resp.Content)
	if err != nil {
		o.log.Warn("failed to append agent reply", zap.String("user_id", userID), zap.Error(err))
	}
	o.maybeCompact(ctx, userID, len(hist))

	return resp.Content, nil
}

// LeadConversation is the credit-gated variant: the agent steers the
// conversation to learn about the user, and the exchange is billed against
// the credit ledger.
func (o *Orchestrator) LeadConversation(ctx context.Context, userID, message string) (LeadResult, error) {
	unlock := o.locks.lock(userID)
	defer unlock()

	// Reject before any paid inference call is made.
	balance, err := o.ledger.Balance(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return LeadResult{}, fmt.Errorf("%w: no profile", billing.ErrInsufficientCredits)
	}
	if err != nil {
		return LeadResult{}, err
	}
	if balance < 1 {
		return LeadResult{}, fmt.Errorf("%w: balance %d", billing.ErrInsufficientCredits, balance)
	}

	userName, err := o.store.GetUserName(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return LeadResult{}, err
	}
	role := userName
	if role == "" {
		role = "user"
	}
	if _, err := o.history.Append(ctx, userID, role, message); err != nil {
		return LeadResult{}, err
	}

	o.analyze(ctx, userID, message)

	mbtiRec, err := o.mbti.Current(ctx, userID)
	if err != nil {
		return LeadResult{}, err
	}
	oceanRec, err := o.ocean.Current(ctx, userID)
	if err != nil {
		return LeadResult{}, err
	}
	typeCode := traits.TypeCode(mbtiRec)
	stylePrompt := traits.StylePrompt(typeCode)

	slangExamples := o.retrieveSlang(ctx, userID, message, 2)
	similar := o.retrieveKnowledge(ctx, userID, message, 3)
	hist, err := o.history.GetOrCreate(ctx, userID)
	if err != nil {
		return LeadResult{}, err
	}

	instructions := o.leadInstructions(userID, userName, typeCode, stylePrompt,
		traits.LabelSummary(oceanRec), slangExamples, similar, hist)

	reply, err := o.generateWithTools(ctx, userID, instructions, message)
	if err != nil {
		return LeadResult{}, fmt.Errorf("response generation: %w", err)
	}

	hist, err = o.history.Append(ctx, userID, AgentName, reply)
	if err != nil {
		o.log.Warn("failed to append agent reply", zap.String("user_id", userID), zap.Error(err))
	}
	o.maybeCompact(ctx, userID, len(hist))

	inputTokens := billing.CountTokens(message)
	outputTokens := billing.CountTokens(reply)
	cost := billing.ProviderCost(message, o.model)
	credits := billing.CreditsToDeduct(cost)
	o.log.Info("interaction cost",
		zap.String("user_id", userID),
		zap.Int("input_tokens", inputTokens),
		zap.Int("output_tokens", outputTokens),
		zap.Float64("provider_cost_usd", cost),
		zap.Int("credits", credits))

	if err := o.ledger.Deduct(ctx, userID, credits); err != nil {
		o.log.Error("failed to deduct credits", zap.String("user_id", userID), zap.Error(err))
	}

	return LeadResult{
		Reply:            reply,
		PromptTokens:     inputTokens,
		CompletionTokens: outputTokens,
		CreditsCharged:   credits,
	}, nil
}

func (o *Orchestrator) leadInstructions(userID, userName, typeCode, stylePrompt, oceanSummary, slangExamples, similar string, hist []string) string {
	name := userName
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf(`You are a conversational agent.

The user_id is %s.
You are having a conversation with (this is the user's name) %s.
If their name is not available, ask for it first.
When the user's name is given, update it using the update_user_name tool.

You will lead the conversation with the user. You will ask questions to get to know the user better.
Ask your questions in a natural way as the conversation progresses. Ask questions that are relevant to gain an accurate picture of the user's personality.
Ask questions that are relevant to the user's message.

Keep your language simple, natural, and conversational. Keep it at a 5th grade level.

DO NOT MENTION MBTI OR OCEAN analysis in your response.

Personality OCEAN Traits of the user are: %s
Personality MBTI Type of the user is: %s

Your conversational style should be: %s

Use similar language as the user, here are some examples: %s

Conversation History: %s`,
		userID, name, oceanSummary, typeCode, stylePrompt, slangExamples,
		strings.Join(hist, "\n"))
}

// generateWithTools runs one tool round when the client supports function
// calling: tool calls are executed, their results injected, and a final
// completion produces the reply.
func (o *Orchestrator) generateWithTools(ctx context.Context, userID, instructions, message string) (string, error) {
	msgs := []llm.Message{
		{Role: "system", Content: instructions},
		{Role: "user", Content: message},
	}

	tc, ok := o.client.(llm.ToolClient)
	if !ok {
		resp, err := o.client.Generate(ctx, msgs)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	resp, err := tc.GenerateWithTools(ctx, msgs, leadTools())
	if err != nil {
		return "", err
	}
	if len(resp.ToolCalls) == 0 {
		return resp.Content, nil
	}

	var results []string
	for _, call := range resp.ToolCalls {
		results = append(results, fmt.Sprintf("%s -> %s",
			call.Function.Name, o.execTool(ctx, userID, call)))
	}
	msgs = append(msgs, llm.Message{
		Role:    "system",
		Content: "Tool results:\n" + strings.Join(results, "\n"),
	})
	final, err := o.client.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return final.Content, nil
}

func (o *Orchestrator) execTool(ctx context.Context, userID string, call llm.ToolCall) string {
	switch call.Function.Name {
	case "get_users_name":
		name, err := o.store.GetUserName(ctx, userID)
		if err != nil || name == "" {
			return "the user's name is not known yet"
		}
		return name
	case "update_user_name":
		name, _ := call.Function.Arguments["name"].(string)
		if name == "" {
			return "no name provided"
		}
		if err := o.store.UpdateUserName(ctx, userID, name); err != nil {
			o.log.Warn("update_user_name tool failed", zap.String("user_id", userID), zap.Error(err))
			return "failed to update name"
		}
		return "name updated to " + name
	case "retrieve_personalized_info_about_user":
		query, _ := call.Function.Arguments["query"].(string)
		if query == "" {
			return "no query provided"
		}
		return o.retrieveKnowledge(ctx, userID, query, 5)
	default:
		return "unknown tool"
	}
}

func leadTools() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        "get_users_name",
				Description: "Retrieves the name of the user.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "update_user_name",
				Description: "Updates the user's name once they share it.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name": map[string]interface{}{
							"type":        "string",
							"description": "The user's name",
						},
					},
					"required": []string{"name"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "retrieve_personalized_info_about_user",
				Description: "Retrieves personalized information about the user for a deeper, more meaningful conversation.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "Query describing the information to look up",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

func (o *Orchestrator) retrieveKnowledge(ctx context.Context, userID, query string, topK int) string {
	items, err := o.knowledge.RetrieveSimilar(ctx, userID, query, topK)
	if errors.Is(err, store.ErrNoItems) {
		return "No knowledge stored for this user."
	}
	if err != nil {
		o.log.Warn("knowledge retrieval failed", zap.String("user_id", userID), zap.Error(err))
		return "No knowledge available."
	}
	return renderItems(items)
}

func (o *Orchestrator) retrieveSlang(ctx context.Context, userID, query string, topK int) string {
	items, err := o.slang.RetrieveSimilar(ctx, userID, query, topK)
	if errors.Is(err, store.ErrNoItems) {
		return "No slang stored for this user."
	}
	if err != nil {
		o.log.Warn("slang retrieval failed", zap.String("user_id", userID), zap.Error(err))
		return "No slang available."
	}
	return renderItems(items)
}

func renderItems(items []store.ScoredItem) string {
	if len(items) == 0 {
		return "No similar items found."
	}
	texts := make([]string, 0, len(items))
	for _, it := range items {
		texts = append(texts, it.Text)
	}
	return strings.Join(texts, "; ")
}

func (o *Orchestrator) maybeCompact(ctx context.Context, userID string, length int) {
	if length < o.history.Threshold() {
		return
	}
	if err := o.history.Compact(ctx, userID); err != nil {
		// The reply was already generated; a failed compaction leaves the
		// history untouched and will be retried on the next turn.
		o.log.Error("history compaction failed", zap.String("user_id", userID), zap.Error(err))
	}
}
