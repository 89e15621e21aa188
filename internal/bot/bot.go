// Package bot wires the Telegram transport: command handlers, the
// free-text orchestrator entry point, and the inline keyboard callbacks.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"finbot/internal/agent"
	"finbot/internal/config"
	"finbot/internal/ledger"
	"finbot/internal/llm"
	"finbot/internal/models"
	"finbot/internal/storage"
)

const welcomeText = "<b>Welcome to FinBot!</b>\n\n" +
	"I help you and your partner track shared expenses.\n\n" +
	"Just send me a message describing an expense, settlement, or query — for example:\n" +
	"  <i>\"groceries 300, I paid, split 50/50\"</i>\n" +
	"  <i>\"how much do we owe each other?\"</i>\n\n" +
	"Or use /add to open the expense form.\n\n" +
	"Type /help for more details."

const helpText = "<b>How to use FinBot</b>\n\n" +
	"<u>Log an expense</u>\n" +
	"Send a message like: <i>\"coffee 25, I paid\"</i>\n" +
	"I'll ask for any missing details (category, split, date) before committing.\n\n" +
	"<u>Log a settlement</u>\n" +
	"<i>\"I paid partner 500\"</i> or <i>\"settled up 500\"</i>\n\n" +
	"<u>Check balance</u>\n" +
	"Use /balance or ask: <i>\"what's the balance?\"</i>\n\n" +
	"<u>Query expenses</u>\n" +
	"<i>\"how much did we spend on groceries this month?\"</i>\n\n" +
	"<u>Commands</u>\n" +
	"/start — Show welcome message\n" +
	"/help — Show this help text\n" +
	"/add — Open expense form (Mini App)\n" +
	"/balance — Show current balance\n" +
	"/setup &lt;partner_id&gt; — Link with your partner (one-time setup)\n" +
	"/categories — View and rename expense categories"

// Bot runs the Telegram side of the assistant.
type Bot struct {
	api    *tele.Bot
	cfg    *config.Config
	db     storage.Store
	orc    *agent.Orchestrator
	convos *agent.Store
}

// New builds the bot and registers all handlers.
func New(cfg *config.Config, db storage.Store, orc *agent.Orchestrator, convos *agent.Store) (*Bot, error) {
	api, err := tele.NewBot(tele.Settings{
		Token:     cfg.TelegramBotToken,
		Poller:    &tele.LongPoller{Timeout: 10 * time.Second},
		ParseMode: tele.ModeHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	b := &Bot{api: api, cfg: cfg, db: db, orc: orc, convos: convos}
	api.Use(b.restrictAccess)

	api.Handle("/start", func(c tele.Context) error { return c.Send(welcomeText) })
	api.Handle("/help", func(c tele.Context) error { return c.Send(helpText) })
	api.Handle("/balance", b.onBalance)
	api.Handle("/setup", b.onSetup)
	api.Handle("/add", b.onAdd)
	api.Handle("/categories", b.onCategories)
	api.Handle(tele.OnText, b.onText)

	api.Handle(&tele.Btn{Unique: btnConfirmUnique}, b.callbackHandler(agent.CallbackConfirm))
	api.Handle(&tele.Btn{Unique: btnEditUnique}, b.callbackHandler(agent.CallbackEdit))
	api.Handle(&tele.Btn{Unique: btnCancelUnique}, b.callbackHandler(agent.CallbackCancel))
	api.Handle(&tele.Btn{Unique: btnRenameUnique}, b.onRenameCategory)

	return b, nil
}

// Start begins long polling. Blocks until Stop is called.
func (b *Bot) Start() {
	slog.Info("telegram bot polling started")
	b.api.Start()
}

// Stop ends long polling.
func (b *Bot) Stop() {
	b.api.Stop()
}

// restrictAccess drops updates from users outside the allow-list.
func (b *Bot) restrictAccess(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !b.cfg.Allowed(sender.ID) {
			if sender != nil {
				slog.Warn("rejected update from unauthorised user", "user_id", sender.ID)
			}
			return nil
		}
		return next(c)
	}
}

// onText routes free text: the category rename sub-flow first, then the
// orchestrator.
func (b *Bot) onText(c tele.Context) error {
	ctx := context.Background()
	userID := c.Sender().ID
	text := c.Text()

	if reply, handled := b.handleRename(ctx, userID, text); handled {
		return c.Send(reply)
	}

	rawID, err := b.db.SaveRawInput(ctx, userID, text)
	if err != nil {
		slog.Error("saving raw input failed", "user_id", userID, "error", err)
		return c.Send("Something went wrong storing your message. Please try again.")
	}

	result := b.orc.HandleMessage(ctx, userID, text, rawID)
	b.logLLMCalls(ctx, result.LLMCalls)

	return b.sendResult(c, userID, result)
}

// handleRename consumes the next text message while a category rename is
// in progress. Returns handled=false when no rename is pending.
func (b *Bot) handleRename(ctx context.Context, userID int64, text string) (string, bool) {
	convo := b.convos.Get(userID)
	if convo.RenamingCategory == "" {
		return "", false
	}

	oldName := convo.RenamingCategory
	convo.RenamingCategory = ""

	newName := strings.TrimSpace(text)
	switch strings.ToLower(newName) {
	case "/cancel", "cancel":
		return "Rename cancelled.", true
	case "":
		return "Rename cancelled — empty name.", true
	}

	renamed, rows, err := b.db.RenameCategory(ctx, oldName, newName)
	if err != nil {
		slog.Error("category rename failed", "old", oldName, "new", newName, "error", err)
	}
	if !renamed {
		return fmt.Sprintf("❌ Could not rename <b>%s</b>. The category may not exist or the new name is already taken.", oldName), true
	}

	noun := "entries"
	if rows == 1 {
		noun = "entry"
	}
	return fmt.Sprintf("✅ Renamed <b>%s</b> → <b>%s</b> (updated %d ledger %s).",
		oldName, strings.ToLower(newName), rows, noun), true
}

// sendResult delivers an orchestrator result, attaching the confirmation
// keyboard and remembering the message ID for later edits.
func (b *Bot) sendResult(c tele.Context, userID int64, result agent.Result) error {
	if result.EditMessageID != 0 {
		stored := tele.StoredMessage{
			MessageID: strconv.Itoa(result.EditMessageID),
			ChatID:    c.Chat().ID,
		}
		if _, err := b.api.Edit(stored, result.Reply); err == nil {
			return nil
		}
		// Fall through and send a fresh message if the edit failed.
	}

	if !result.ShowConfirm {
		return c.Send(result.Reply)
	}

	sent, err := b.api.Send(c.Chat(), result.Reply, confirmationKeyboard())
	if err != nil {
		return err
	}
	b.convos.Get(userID).ConfirmationMessageID = sent.ID
	return nil
}

// callbackHandler adapts a keyboard action into an orchestrator call.
func (b *Bot) callbackHandler(action string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := context.Background()
		userID := c.Sender().ID

		result := b.orc.HandleCallback(ctx, userID, action)
		b.logLLMCalls(ctx, result.LLMCalls)

		if err := c.Respond(); err != nil {
			slog.Debug("callback respond failed", "error", err)
		}
		return b.sendResult(c, userID, result)
	}
}

// onRenameCategory starts the rename sub-flow for the tapped category.
func (b *Bot) onRenameCategory(c tele.Context) error {
	userID := c.Sender().ID
	category := c.Data()

	b.convos.Get(userID).RenamingCategory = category

	if err := c.Respond(); err != nil {
		slog.Debug("callback respond failed", "error", err)
	}
	// Drop the keyboard from the categories list.
	if _, err := b.api.EditReplyMarkup(c.Message(), nil); err != nil {
		slog.Debug("could not remove categories keyboard", "error", err)
	}
	return c.Send(fmt.Sprintf("Rename <b>%s</b> to what?\n<i>Send the new category name, or /cancel to abort.</i>", category))
}

func (b *Bot) onBalance(c tele.Context) error {
	ctx := context.Background()
	userID := c.Sender().ID

	partnership, err := b.db.Partnership(ctx, userID)
	if err != nil {
		slog.Error("partnership lookup failed", "user_id", userID, "error", err)
		return c.Send("Something went wrong. Please try again.")
	}
	if partnership == nil {
		return c.Send("<i>No partnership found. You need a partner set up to check the balance.</i>")
	}

	partnerID := partnership.PartnerID(userID)
	entries, err := b.db.ActiveEntries(ctx, userID, partnerID)
	if err != nil {
		slog.Error("loading ledger failed", "user_id", userID, "error", err)
		return c.Send("Something went wrong. Please try again.")
	}

	balance := ledger.Balance(entries, userID, partnerID)
	return c.Send(formatBalance(balance, partnership.DefaultCurrency))
}

// formatBalance renders the /balance reply. Positive means the partner
// owes the user.
func formatBalance(balance decimal.Decimal, currency string) string {
	switch {
	case balance.IsZero():
		return "You're all settled up! No outstanding balance."
	case balance.IsPositive():
		return fmt.Sprintf("Partner owes you <b>%s %s</b>.", currency, balance.Abs())
	default:
		return fmt.Sprintf("You owe Partner <b>%s %s</b>.", currency, balance.Abs())
	}
}

func (b *Bot) onSetup(c tele.Context) error {
	ctx := context.Background()
	userID := c.Sender().ID
	payload := strings.TrimSpace(c.Message().Payload)

	if payload == "" {
		return c.Send("<b>Usage:</b> /setup &lt;partner_telegram_id&gt;\n\n" +
			"Example: <code>/setup 987654321</code>\n\n" +
			"You can find your Telegram user ID by messaging @userinfobot.")
	}

	partnerID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return c.Send("Invalid partner ID. Please provide a numeric Telegram user ID.\n" +
			"Example: <code>/setup 987654321</code>")
	}

	if partnerID == userID {
		return c.Send("You can't create a partnership with yourself.")
	}

	if len(b.cfg.AllowedTelegramUserIDs) > 0 && !b.cfg.Allowed(partnerID) {
		return c.Send(fmt.Sprintf("User <code>%d</code> is not in the allowed users list.\n"+
			"Both partners must be listed in <code>ALLOWED_TELEGRAM_USER_IDS</code>.", partnerID))
	}

	partnership, created, err := b.db.CreatePartnership(ctx, userID, partnerID, b.cfg.DefaultCurrency)
	if err != nil {
		slog.Error("partnership creation failed", "user_id", userID, "partner_id", partnerID, "error", err)
		return c.Send("Something went wrong creating the partnership. Please try again.")
	}

	if created {
		return c.Send(fmt.Sprintf("Partnership created between you and <code>%d</code>.\n"+
			"You're all set! Start logging expenses.", partnerID))
	}
	return c.Send(fmt.Sprintf("A partnership already exists (partner: <code>%d</code>).\n"+
		"Each user can only have one active partnership.", partnership.PartnerID(userID)))
}

func (b *Bot) onAdd(c tele.Context) error {
	ctx := context.Background()

	if b.cfg.WebAppBaseURL == "" {
		return c.Send("<i>Mini App not configured. Set <code>WEBAPP_BASE_URL</code> in your .env.</i>")
	}

	categories, err := b.db.Categories(ctx)
	if err != nil {
		slog.Error("listing categories failed", "error", err)
		return c.Send("Something went wrong. Please try again.")
	}
	if len(categories) == 0 {
		return c.Send("<i>No categories found. Add some first.</i>")
	}

	url := strings.TrimRight(b.cfg.WebAppBaseURL, "/") + "/?cats=" +
		strings.Join(categories, ",") + "&currency=" + b.cfg.DefaultCurrency
	if b.cfg.WebAppAPIURL != "" {
		url += "&api=" + strings.TrimRight(b.cfg.WebAppAPIURL, "/")
	}

	return c.Send("Tap the button below to add an expense:", webAppKeyboard(url))
}

func (b *Bot) onCategories(c tele.Context) error {
	ctx := context.Background()

	names, err := b.db.Categories(ctx)
	if err != nil {
		slog.Error("listing categories failed", "error", err)
		return c.Send("Something went wrong. Please try again.")
	}
	if len(names) == 0 {
		return c.Send("<i>No categories found.</i>")
	}

	return c.Send("<b>Expense categories</b>\n\nTap a category to <b>rename</b> it:", categoriesKeyboard(names))
}

// SendConfirmation delivers a confirmation message with the standard
// keyboard to a user directly, outside any Telegram update. The web API
// uses it after seeding a pending expense.
func (b *Bot) SendConfirmation(userID int64, text string) (int, error) {
	sent, err := b.api.Send(&tele.User{ID: userID}, text, confirmationKeyboard())
	if err != nil {
		return 0, fmt.Errorf("sending confirmation: %w", err)
	}
	b.convos.Get(userID).ConfirmationMessageID = sent.ID
	return sent.ID, nil
}

// logLLMCalls records every model invocation for cost tracking.
func (b *Bot) logLLMCalls(ctx context.Context, calls []llm.Response) {
	for _, call := range calls {
		isFallback := strings.Contains(call.Provider, "fallback")
		provider := strings.ReplaceAll(call.Provider, " (fallback)", "")

		record := &models.LLMCall{
			Provider:     provider,
			Model:        call.Model,
			InputTokens:  call.InputTokens,
			OutputTokens: call.OutputTokens,
			LatencyMS:    call.LatencyMS,
			IsFallback:   isFallback,
		}
		if cost, ok := llm.EstimateCostUSD(provider, call.Model, call.InputTokens, call.OutputTokens); ok {
			record.CostUSD = &cost
		}
		if err := b.db.LogLLMCall(ctx, record); err != nil {
			slog.Error("logging LLM call failed", "provider", provider, "error", err)
		}
	}
}
