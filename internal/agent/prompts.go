package agent

import (
	"fmt"
	"strings"
)

// systemPrompt grounds every LLM call. Extraction is clarification-first:
// the model must leave ambiguous fields empty rather than guess, so the
// orchestrator can ask follow-up questions.
const systemPrompt = `You are FinBot, a shared finance assistant for two partners who split expenses.
You communicate via Telegram.

Your job is to:
1. Parse natural language messages about expenses, settlements, and financial queries.
2. Extract structured data accurately.
3. Flag anything ambiguous - never guess when unsure.

Key rules:
- Default currency is ILS (Israeli New Shekel) unless the user specifies otherwise.
- There are exactly two partners sharing expenses.
- "I paid" or "me" means the message sender (user).
- "Partner paid" or their name means the other person.
- If the payer is not stated, leave it as null - do NOT assume.
- If the split is not stated, leave it as null - do NOT assume 50/50.
- If the date is not stated, it defaults to today.
- Categories should be lowercase, single-word when possible (e.g. "groceries", "gas", "coffee").
- A single message may contain multiple expenses.

You have access to tools for extracting structured data. Always use the provided tools rather than responding with plain text when processing expenses or queries.`

const parseExpensePromptFmt = `Analyze the following message from a user and extract all expense information.

For each expense found, extract:
- amount (required): The monetary amount as a positive number.
- currency: Three-letter code. Default "ILS" if not specified.
- category: A lowercase category label (e.g. "groceries", "gas", "coffee", "dining").
- description: Brief description if the user provided one beyond the category.
- payer: "user" if the sender paid, "partner" if the other person paid. Leave null if not explicitly stated.
- split_payer_pct: The payer's share as a percentage (0-100). For "split 70/30" where the payer is first, payer_pct=70. Leave null if not stated.
- split_other_pct: The other partner's share. Must sum to 100 with split_payer_pct. Leave null if not stated.
- event_date: In YYYY-MM-DD format. Use "today" or "yesterday" logic relative to the current date. Leave null to default to today.

Also classify the overall intent of the message:
- "expense": The user wants to log one or more expenses. Use this whenever the message describes a payment or cost - e.g. "I paid electricity 500", "groceries 300", "50 for coffee", "gas 200 I paid". If you extracted at least one expense (amount + category or description), the intent must be "expense", not "unknown".
- "settlement": The user wants to record a direct payment between partners (e.g. "I paid partner 500", "settled up").
- "query": The user is asking a question about expenses, balance, or spending (e.g. "total by category", "expenses by category", "how much did we spend?").
- "greeting": The user is just saying hello or making small talk.
- "unknown": Only if the message clearly does not describe an expense, settlement, query, or greeting.

Important:
- Only extract what is EXPLICITLY stated. Do not infer or assume missing fields.
- If the message is ambiguous, classify as many fields as you can and leave the rest null.
- A single message can contain MULTIPLE expenses - separated by newlines, commas, "and", or listed as distinct items. You MUST return ALL of them in the expenses array. Do NOT ignore or skip any expense. Each distinct item or line with an amount is a separate expense.
- Example multi-expense input:
  "Water 3 days ago 180
   Dinner 400 yesterday"
  -> TWO expenses in the array: the first with amount=180 description="Water" and the second with amount=400 description="Dinner".
- When in doubt between "expense" and "unknown", prefer "expense" if the user mentioned an amount and what it was for (category or item).
- The current date is %s (YYYY-MM-DD). Use it to resolve relative dates like "yesterday", "N days ago", or "one week ago". Do NOT invent a different year.
- Preserve the full numeric amount exactly as written. Do NOT truncate or drop digits or zeros (e.g. "2,000" means 2000).
- If the text says "paid for <item>" it is an expense (even if the partner paid).

User message: %s`

const mergeClarificationPromptFmt = `You are helping a user log an expense. Here is the current parsed data:

%s

The user was asked about the "%s" field and replied:
"%s"

Update the parsed data by incorporating the user's answer into the correct field(s). Use the parse_expense tool to return the COMPLETE updated data (all expenses, including the ones that were already complete). Keep all previously extracted fields intact - only fill in or update the field that the user's answer addresses.

Rules:
- If the user says "me", "I did", "I paid", etc. -> payer = "user"
- If the user says their partner's name, "partner", "they did", etc. -> payer = "partner"
- For split answers like "50/50" -> split_payer_pct = 50, split_other_pct = 50
- For split answers like "70/30" -> split_payer_pct = 70, split_other_pct = 30
- For "I'll pay all" or "100%%" -> split_payer_pct = 100, split_other_pct = 0
- If the answer applies to ALL expenses in the batch, apply it to all of them.
- Return intent = "expense" and include ALL expenses.`

const parseSettlementPromptFmt = `The user wants to record a settlement - a direct payment from one partner to the other to reduce or clear their outstanding balance.

Analyze the following message and extract settlement information using the log_settlement tool:

- amount (required): The monetary amount as a positive number.
- payer (required): Who is paying - "user" (the message sender) or "partner".
- description: Optional description of the settlement.
- event_date: Date in YYYY-MM-DD format. Leave null to default to today.

Examples of settlement messages:
- "I paid partner 500" -> amount=500, payer="user"
- "settled up 300" -> amount=300, payer="user" (assume sender paid if ambiguous)
- "partner sent me 200" -> amount=200, payer="partner"
- "I transferred 1000 to partner yesterday" -> amount=1000, payer="user", event_date=yesterday
- "paid back 400" -> amount=400, payer="user"
- "settled in full" -> amount=null (unknown), payer="user"
- "I paid back partner" -> amount=null, payer="user"

Important:
- The payer is the person SENDING the money, not receiving it.
- If it's unclear who paid, leave payer as null - do NOT assume.
- If the amount is not stated (e.g. "settled in full", "paid back"), leave amount as null.
- Settlements don't have categories or splits - they're direct payments.
- The current date is %s (YYYY-MM-DD). Use it to resolve relative dates like "yesterday", "N days ago", or "one week ago". Do NOT invent a different year.
- Preserve the full numeric amount exactly as written. Do NOT truncate or drop digits or zeros (e.g. "2,000" means 2000).

User message: %s`

const queryPromptFmt = `The user is asking a question about their shared expenses or balance.

Analyze the following message and determine which query tool to call:

1. If they're asking about the **balance** (e.g. "what's the balance?", "how much do we owe?", "are we settled?"):
   -> Call the **get_balance** tool (no parameters needed).

2. If they're asking about **specific expenses** (e.g. "how much did we spend on groceries?", "show me expenses from last week", "what did we spend this month?", "total by category", "expenses by category"):
   -> Call the **query_expenses** tool with appropriate filters:
     - category: lowercase category name (e.g. "groceries", "dining")
     - date_from: YYYY-MM-DD start date
     - date_to: YYYY-MM-DD end date
     - event_type: "expense", "settlement", or "correction"
     - group_by: "category" when the user asks for totals by category

3. If they're asking about **recent activity** (e.g. "what are the last few expenses?", "show recent transactions"):
   -> Call the **get_recent_entries** tool with an optional limit.

Use relative date references correctly:
- "this month" -> date_from = first day of current month
- "last month" -> date_from/to = first and last day of previous month
- "this week" -> date_from = most recent Monday
- "today" -> date_from = date_to = today's date
- The current date is %s (YYYY-MM-DD). Do NOT invent a different year.

User message: %s`

func parseExpensePrompt(currentDate, userMessage string) string {
	return fmt.Sprintf(parseExpensePromptFmt, currentDate, userMessage)
}

func mergeClarificationPrompt(expenses []PendingExpense, field, answer string) string {
	return fmt.Sprintf(mergeClarificationPromptFmt, expensesSummary(expenses), field, answer)
}

func parseSettlementPrompt(currentDate, userMessage string) string {
	return fmt.Sprintf(parseSettlementPromptFmt, currentDate, userMessage)
}

func queryPrompt(currentDate, userMessage string) string {
	return fmt.Sprintf(queryPromptFmt, currentDate, userMessage)
}

// expensesSummary serialises pending expenses into the plain-text form
// used inside clarification prompts.
func expensesSummary(expenses []PendingExpense) string {
	var blocks []string
	for i, exp := range expenses {
		lines := []string{
			fmt.Sprintf("Expense %d:", i+1),
			"  amount: " + floatOrNull(exp.Amount),
			"  currency: " + exp.Currency,
			"  category: " + stringOrNull(exp.Category),
			"  description: " + stringOrNull(exp.Description),
			"  payer: " + stringOrNull(exp.Payer),
			"  split_payer_pct: " + floatOrNull(exp.SplitPayerPct),
			"  split_other_pct: " + floatOrNull(exp.SplitOtherPct),
			"  event_date: " + stringOrNull(exp.EventDate),
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func stringOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}

func floatOrNull(f *float64) string {
	if f == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *f)
}
