package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finbot/internal/llm"
	"finbot/internal/models"
	"finbot/internal/storage"
	"finbot/internal/tools"
)

// Callback actions carried by the inline confirmation keyboard.
const (
	CallbackConfirm = "confirm"
	CallbackEdit    = "edit"
	CallbackCancel  = "cancel"
)

const authErrorReply = "I can't reach the AI: the fallback API key is invalid or missing. " +
	"Either start Ollama locally (ollama serve) or set a valid OPENAI_API_KEY " +
	"or ANTHROPIC_API_KEY in your .env."

// Result is what the orchestrator hands back to the transport layer.
type Result struct {
	// Reply is the HTML text to send or edit into an existing message.
	Reply string

	// ShowConfirm asks the caller to attach the confirm/edit/cancel
	// keyboard to the reply.
	ShowConfirm bool

	// EditMessageID, when non-zero, means the reply should edit this
	// message instead of sending a new one.
	EditMessageID int

	// LLMCalls are the model responses produced during this step, for
	// cost logging.
	LLMCalls []llm.Response
}

// Orchestrator drives the multi-step conversation state machine.
type Orchestrator struct {
	llm             llm.Client
	store           *Store
	db              storage.Store
	tools           *tools.Registry
	defaultCurrency string
	assumeHalfSplit bool

	// now is replaceable so relative-date handling is testable.
	now func() time.Time
}

// NewOrchestrator wires the orchestrator. When assumeHalfSplit is set, a
// missing split defaults to 50/50 instead of triggering a clarification.
func NewOrchestrator(client llm.Client, store *Store, db storage.Store, registry *tools.Registry, defaultCurrency string, assumeHalfSplit bool) *Orchestrator {
	return &Orchestrator{
		llm:             client,
		store:           store,
		db:              db,
		tools:           registry,
		defaultCurrency: defaultCurrency,
		assumeHalfSplit: assumeHalfSplit,
		now:             time.Now,
	}
}

// HandleMessage processes one incoming text message through the state
// machine.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID int64, text string, rawInputID uuid.UUID) Result {
	convo := o.store.Get(userID)

	// In CLARIFYING state the text answers the open question.
	if convo.State == StateClarifying {
		return o.handleClarificationAnswer(ctx, userID, text, convo)
	}

	// Otherwise start a fresh parsing round.
	convo = &Context{
		State:        StateParsing,
		RawInputID:   rawInputID,
		OriginalText: text,
	}
	o.store.Set(userID, convo)

	return o.parseAndValidate(ctx, userID, text, convo)
}

// HandleCallback processes a confirm/edit/cancel keyboard press.
func (o *Orchestrator) HandleCallback(ctx context.Context, userID int64, action string) Result {
	convo := o.store.Get(userID)

	if convo.State != StateConfirming {
		return Result{Reply: "No pending expenses to act on. Send a new expense."}
	}

	switch action {
	case CallbackConfirm:
		return o.commit(ctx, userID, convo)
	case CallbackEdit:
		return o.startEdit(userID, convo)
	case CallbackCancel:
		return o.cancel(userID)
	}
	return Result{Reply: "Unknown action."}
}

// SeedConfirming installs pre-built pending expenses (from the web app)
// directly in CONFIRMING state and returns the confirmation summary.
func (o *Orchestrator) SeedConfirming(userID int64, rawInputID uuid.UUID, expenses []PendingExpense) string {
	convo := &Context{
		State:           StateConfirming,
		RawInputID:      rawInputID,
		PendingExpenses: expenses,
	}
	o.store.Set(userID, convo)
	return FormatConfirmationSummary(expenses, nil)
}

// parseAndValidate sends the text to the LLM for extraction, then routes
// on the detected intent.
func (o *Orchestrator) parseAndValidate(ctx context.Context, userID int64, text string, convo *Context) Result {
	// Cheap regex checks first: obvious settlements and pure queries
	// skip the extraction round-trip entirely.
	if looksLikeSettlement(text) {
		return o.handleSettlement(ctx, userID, text, convo, nil)
	}
	if looksLikeQuery(text) && !hasDigit(text) {
		o.store.Clear(userID)
		return o.handleQuery(ctx, userID, text, nil)
	}

	today := o.now().Format("2006-01-02")
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: parseExpensePrompt(today, text)},
	}

	response, err := o.llm.Chat(ctx, messages, o.tools.Schemas())
	if err != nil {
		if llm.IsAuthError(err) {
			o.store.Clear(userID)
			return Result{Reply: authErrorReply}
		}
		slog.Error("LLM parse call failed", "user_id", userID, "error", err)
		o.store.Clear(userID)
		return Result{Reply: "I'm having trouble processing your message right now. Please try again in a moment."}
	}

	slog.Info("LLM parse response", "user_id", userID, "provider", response.Provider,
		"tool_calls", len(response.ToolCalls))

	parsed := extractParsed(response)
	if parsed != nil && len(parsed.Expenses) > 0 {
		parsed.Expenses = postprocessExpenses(text, parsed.Expenses, o.now())
	}

	// Non-expense intents only matter when nothing was extracted.
	if parsed != nil && len(parsed.Expenses) == 0 {
		switch {
		case parsed.Intent == tools.IntentQuery,
			(parsed.Intent == tools.IntentUnknown || parsed.Intent == tools.IntentGreeting) && looksLikeQuery(text):
			o.store.Clear(userID)
			return o.handleQuery(ctx, userID, text, response)
		case parsed.Intent == tools.IntentSettlement:
			return o.handleSettlement(ctx, userID, text, convo, response)
		case parsed.Intent == tools.IntentGreeting:
			o.store.Clear(userID)
			return Result{Reply: contentOr(response, "Hello! Send me an expense to track."), LLMCalls: responses(response)}
		case parsed.Intent == tools.IntentUnknown:
			o.store.Clear(userID)
			return Result{Reply: contentOr(response, "I didn't understand that. Try describing an expense."), LLMCalls: responses(response)}
		}
	}

	if parsed == nil || len(parsed.Expenses) == 0 {
		o.store.Clear(userID)
		if strings.TrimSpace(response.Content) != "" {
			return Result{Reply: response.Content, LLMCalls: responses(response)}
		}
		return Result{
			Reply:    "I couldn't parse your message. Try something like:\n<i>\"groceries 300, I paid, split 50/50\"</i>",
			LLMCalls: responses(response),
		}
	}

	convo.PendingExpenses = make([]PendingExpense, 0, len(parsed.Expenses))
	for _, exp := range parsed.Expenses {
		convo.PendingExpenses = append(convo.PendingExpenses, NewPendingExpense(exp, o.defaultCurrency))
	}
	defaultMissingPayersToUser(convo.PendingExpenses)
	convo.State = StateValidating
	o.store.Set(userID, convo)

	return o.validate(userID, convo, response)
}

// validate checks required fields and moves to CONFIRMING or CLARIFYING.
func (o *Orchestrator) validate(userID int64, convo *Context, llmResponse *llm.Response) Result {
	if o.assumeHalfSplit {
		applyDefaultSplit(convo.PendingExpenses)
	}

	if convo.AllComplete() {
		convo.State = StateConfirming
		o.store.Set(userID, convo)
		return Result{
			Reply:       FormatConfirmationSummary(convo.PendingExpenses, nil),
			ShowConfirm: true,
			LLMCalls:    responses(llmResponse),
		}
	}

	idx, field, _ := convo.FirstMissing()
	convo.State = StateClarifying
	convo.ClarificationField = field
	o.store.Set(userID, convo)

	return Result{
		Reply:    buildClarificationQuestion(field, idx, convo.PendingExpenses),
		LLMCalls: responses(llmResponse),
	}
}

// handleClarificationAnswer merges the user's answer into the pending
// data, preferring an LLM merge with a manual fallback.
func (o *Orchestrator) handleClarificationAnswer(ctx context.Context, userID int64, answer string, convo *Context) Result {
	field := convo.ClarificationField
	if field == "" {
		field = "unknown"
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: mergeClarificationPrompt(convo.PendingExpenses, field, answer)},
	}

	response, err := o.llm.Chat(ctx, messages, o.tools.Schemas())
	if err != nil {
		slog.Error("LLM merge call failed", "user_id", userID, "field", field, "error", err)
		question := buildClarificationQuestion(field, 0, convo.PendingExpenses)
		return Result{Reply: "I had trouble processing your answer. Could you try again?\n\n" + question}
	}

	parsed := extractParsed(response)
	if parsed != nil && len(parsed.Expenses) > 0 {
		merged := make([]PendingExpense, 0, len(parsed.Expenses))
		for _, exp := range parsed.Expenses {
			merged = append(merged, NewPendingExpense(exp, o.defaultCurrency))
		}
		// The model must return the whole batch. A different count means
		// it dropped or invented expenses, so fall back to manual merge.
		if len(merged) == len(convo.PendingExpenses) {
			convo.PendingExpenses = merged
		} else {
			mergeFieldManually(convo.PendingExpenses, field, answer)
		}
	} else {
		mergeFieldManually(convo.PendingExpenses, field, answer)
	}

	convo.State = StateValidating
	convo.ClarificationField = ""
	o.store.Set(userID, convo)

	return o.validate(userID, convo, response)
}

// handleQuery routes a question to the query tools via the LLM.
func (o *Orchestrator) handleQuery(ctx context.Context, userID int64, text string, initial *llm.Response) Result {
	today := o.now().Format("2006-01-02")
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: queryPrompt(today, text)},
	}

	response, err := o.llm.Chat(ctx, messages, o.tools.Schemas())
	if err != nil {
		slog.Error("LLM query call failed", "user_id", userID, "error", err)
		return Result{
			Reply:    "I had trouble processing your query. Please try again in a moment.",
			LLMCalls: responses(initial),
		}
	}

	all := responses(initial, response)

	for _, tc := range response.ToolCalls {
		inv := tools.Invocation{
			UserID:   userID,
			Store:    o.db,
			Currency: o.defaultCurrency,
		}
		result, err := o.tools.Execute(ctx, inv, tc.Name, tc.Arguments)
		if err != nil {
			slog.Error("query tool failed", "tool", tc.Name, "error", err)
			result = map[string]any{"error": "Tool " + tc.Name + " failed."}
		}
		if errMsg, ok := result["error"].(string); ok {
			return Result{Reply: errMsg, LLMCalls: all}
		}
		return Result{Reply: FormatQueryResult(result, tc.Name), LLMCalls: all}
	}

	return Result{
		Reply:    contentOr(response, "I couldn't find the information you're looking for. Try asking about your balance or expenses."),
		LLMCalls: all,
	}
}

// settlementDraft is the settlement shape extracted from tool calls.
type settlementDraft struct {
	Amount      *float64 `json:"amount"`
	Payer       string   `json:"payer"`
	Description string   `json:"description"`
	EventDate   string   `json:"event_date"`
	Notes       []string `json:"notes,omitempty"`
}

// handleSettlement parses a settlement, then shows a confirmation before
// committing.
func (o *Orchestrator) handleSettlement(ctx context.Context, userID int64, text string, convo *Context, initial *llm.Response) Result {
	today := o.now().Format("2006-01-02")
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: parseSettlementPrompt(today, text)},
	}

	response, err := o.llm.Chat(ctx, messages, o.tools.Schemas())
	if err != nil {
		slog.Error("LLM settlement parse failed", "user_id", userID, "error", err)
		o.store.Clear(userID)
		return Result{
			Reply:    "I had trouble processing your settlement. Please try again.",
			LLMCalls: responses(initial),
		}
	}

	all := responses(initial, response)

	draft := extractSettlement(response)
	if draft == nil {
		o.store.Clear(userID)
		return Result{
			Reply:    "I couldn't parse the settlement details. Try something like:\n<i>\"I paid partner 500\"</i> or <i>\"settled up 300\"</i>",
			LLMCalls: all,
		}
	}

	o.postprocessSettlement(text, draft)

	if draft.Amount == nil {
		o.store.Clear(userID)
		return Result{Reply: "How much is the settlement for?", LLMCalls: all}
	}

	// Re-use the expense confirmation flow; the full amount is a direct
	// payment, so the split is fixed at 100/0.
	payerPct, otherPct := 100.0, 0.0
	pending := PendingExpense{
		Amount:        draft.Amount,
		Currency:      o.defaultCurrency,
		SplitPayerPct: &payerPct,
		SplitOtherPct: &otherPct,
		Notes:         draft.Notes,
	}
	description := draft.Description
	if description == "" {
		description = "Settlement payment"
	}
	pending.Description = &description
	if draft.Payer != "" {
		pending.Payer = &draft.Payer
	}
	if draft.EventDate != "" {
		pending.EventDate = &draft.EventDate
	}

	convo.PendingExpenses = []PendingExpense{pending}
	convo.IsSettlement = true

	if pending.Payer == nil {
		convo.State = StateClarifying
		convo.ClarificationField = FieldPayer
		o.store.Set(userID, convo)
		return Result{Reply: "Who made this payment? You or your partner?", LLMCalls: all}
	}

	convo.State = StateConfirming
	o.store.Set(userID, convo)
	return Result{
		Reply:       FormatSettlementConfirmation(pending),
		ShowConfirm: true,
		LLMCalls:    all,
	}
}

func (o *Orchestrator) postprocessSettlement(text string, draft *settlementDraft) {
	candidates := extractNumericAmounts(text)
	relDate, hasRelDate := extractRelativeDate(text, o.now())

	fixed := maybeFixAmount(draft.Amount, candidates, true)
	if fixed != nil && (draft.Amount == nil || *fixed != *draft.Amount) {
		if draft.Amount != nil {
			draft.Notes = append(draft.Notes,
				"Amount auto-corrected from "+formatFloat(*draft.Amount)+" to "+formatFloat(*fixed))
		}
		draft.Amount = fixed
	}

	if hasRelDate && shouldOverrideEventDate(draft.EventDate, relDate) {
		draft.EventDate = relDate.Format("2006-01-02")
		draft.Notes = append(draft.Notes, "Date auto-corrected to "+draft.EventDate)
	}
}

// commit writes all pending expenses or settlements to the ledger and
// resets the conversation.
func (o *Orchestrator) commit(ctx context.Context, userID int64, convo *Context) Result {
	if convo.RawInputID == uuid.Nil {
		o.store.Clear(userID)
		return Result{Reply: "Something went wrong — no input reference. Please try again."}
	}

	eventType := models.EventExpense
	if convo.IsSettlement {
		eventType = models.EventSettlement
	}

	var committed []string
	for _, exp := range convo.PendingExpenses {
		if exp.Amount == nil {
			continue
		}
		// Settlements carry a fixed split; expenses must be complete.
		if !convo.IsSettlement && !exp.IsComplete() {
			continue
		}

		eventDate := resolveDate(derefString(exp.EventDate), o.now())
		payer := "user"
		if exp.Payer != nil {
			payer = *exp.Payer
		}
		payerID := o.resolvePayerID(ctx, payer, userID)

		payerPct, otherPct := 100.0, 0.0
		if exp.SplitPayerPct != nil {
			payerPct = *exp.SplitPayerPct
		}
		if exp.SplitOtherPct != nil {
			otherPct = *exp.SplitOtherPct
		}

		entry := &models.LedgerEntry{
			RawInputID:      convo.RawInputID,
			EventType:       eventType,
			Amount:          decimal.NewFromFloat(*exp.Amount),
			Currency:        exp.Currency,
			Category:        derefString(exp.Category),
			PayerTelegramID: payerID,
			SplitPayerPct:   decimal.NewFromFloat(payerPct),
			SplitOtherPct:   decimal.NewFromFloat(otherPct),
			EventDate:       eventDate,
			Description:     derefString(exp.Description),
		}
		if err := o.db.SaveLedgerEntry(ctx, entry); err != nil {
			slog.Error("ledger write failed", "user_id", userID, "error", err)
			continue
		}

		label := derefString(exp.Description)
		if label == "" {
			label = derefString(exp.Category)
		}
		if label == "" {
			label = eventType
		}
		committed = append(committed, "  "+exp.Currency+" "+formatFloat(*exp.Amount)+" — "+label)
	}

	convo.State = StateCommitting
	o.store.Set(userID, convo)

	lines := strings.Join(committed, "\n")
	var reply string
	if convo.IsSettlement {
		reply = "✅ <b>Settlement recorded:</b>\n" + lines
	} else {
		reply = "✅ <b>Committed " + strconv.Itoa(len(committed)) + " expense(s) to the ledger:</b>\n" + lines
	}

	editID := convo.ConfirmationMessageID
	o.store.Clear(userID)

	return Result{Reply: reply, EditMessageID: editID}
}

// startEdit drops back to clarifying with no specific field; the next
// text message is treated as a correction.
func (o *Orchestrator) startEdit(userID int64, convo *Context) Result {
	convo.State = StateClarifying
	convo.ClarificationField = ""
	o.store.Set(userID, convo)

	return Result{
		Reply: "What would you like to change? You can say things like:\n" +
			"<i>\"change the amount to 350\"</i>\n" +
			"<i>\"the category is dining\"</i>\n" +
			"<i>\"I paid, split 60/40\"</i>",
		EditMessageID: convo.ConfirmationMessageID,
	}
}

func (o *Orchestrator) cancel(userID int64) Result {
	convo := o.store.Get(userID)
	editID := convo.ConfirmationMessageID
	o.store.Clear(userID)
	return Result{Reply: "❌ Cancelled. No expenses were recorded.", EditMessageID: editID}
}

// resolvePayerID converts "user"/"partner" to a Telegram user ID via the
// partnership table. Falls back to 0 when no partnership exists.
func (o *Orchestrator) resolvePayerID(ctx context.Context, payer string, senderID int64) int64 {
	if payer == "user" {
		return senderID
	}
	partnership, err := o.db.Partnership(ctx, senderID)
	if err != nil || partnership == nil {
		slog.Warn("no partnership found while resolving payer", "user_id", senderID, "error", err)
		return 0
	}
	return partnership.PartnerID(senderID)
}

// extractParsed pulls parse_expense arguments out of the LLM tool calls,
// falling back to the first tool call of any name.
func extractParsed(response *llm.Response) *tools.ParseExpenseArgs {
	if response == nil || len(response.ToolCalls) == 0 {
		return nil
	}
	raw := response.ToolCalls[0].Arguments
	for _, tc := range response.ToolCalls {
		if tc.Name == "parse_expense" {
			raw = tc.Arguments
			break
		}
	}
	var parsed tools.ParseExpenseArgs
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return &parsed
}

// extractSettlement pulls settlement data from log_settlement calls, or
// from a parse_expense call that classified the message as a settlement.
func extractSettlement(response *llm.Response) *settlementDraft {
	if response == nil {
		return nil
	}
	for _, tc := range response.ToolCalls {
		if tc.Name != "log_settlement" {
			continue
		}
		var draft settlementDraft
		if err := json.Unmarshal(tc.Arguments, &draft); err == nil {
			return &draft
		}
	}
	for _, tc := range response.ToolCalls {
		if tc.Name != "parse_expense" {
			continue
		}
		var parsed tools.ParseExpenseArgs
		if err := json.Unmarshal(tc.Arguments, &parsed); err != nil {
			continue
		}
		if parsed.Intent == tools.IntentSettlement && len(parsed.Expenses) > 0 {
			exp := parsed.Expenses[0]
			return &settlementDraft{
				Amount:      exp.Amount,
				Payer:       exp.Payer,
				Description: exp.Description,
				EventDate:   exp.EventDate,
			}
		}
	}
	return nil
}

// buildClarificationQuestion uses fixed templates rather than an LLM
// call, keeping the clarification loop fast and deterministic.
func buildClarificationQuestion(field string, expenseIdx int, expenses []PendingExpense) string {
	context := ""
	if expenseIdx < len(expenses) {
		exp := expenses[expenseIdx]
		var parts []string
		if exp.Amount != nil {
			parts = append(parts, exp.Currency+" "+formatFloat(*exp.Amount))
		}
		if exp.Category != nil && *exp.Category != "" {
			parts = append(parts, *exp.Category)
		}
		if len(parts) > 0 {
			context = " for <b>" + strings.Join(parts, " — ") + "</b>"
		}
	}

	prefix := ""
	if len(expenses) > 1 {
		prefix = "For expense #" + strconv.Itoa(expenseIdx+1) + ": "
	}

	switch field {
	case FieldPayer:
		return prefix + "Who paid" + context + "? You or your partner?"
	case FieldCategory:
		return prefix + "What category is this expense" + context + "? (e.g. groceries, gas, dining, coffee)"
	case FieldSplitPayerPct, FieldSplitOtherPct:
		return prefix + "How should this expense" + context + " be split? (e.g. 50/50, 70/30, or 100/0)"
	case FieldAmount:
		return prefix + "What was the amount" + context + "?"
	}
	return "Could you provide the " + field + context + "?"
}

func applyDefaultSplit(expenses []PendingExpense) {
	for i := range expenses {
		if expenses[i].SplitPayerPct == nil && expenses[i].SplitOtherPct == nil {
			half := 50.0
			other := 50.0
			expenses[i].SplitPayerPct = &half
			expenses[i].SplitOtherPct = &other
		}
	}
}

func defaultMissingPayersToUser(expenses []PendingExpense) {
	for i := range expenses {
		if expenses[i].Payer == nil {
			user := "user"
			expenses[i].Payer = &user
		}
	}
}

func contentOr(response *llm.Response, fallback string) string {
	if response != nil && strings.TrimSpace(response.Content) != "" {
		return response.Content
	}
	return fallback
}

func responses(in ...*llm.Response) []llm.Response {
	var out []llm.Response
	for _, r := range in {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

