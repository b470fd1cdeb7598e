package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobpilot/config"
	"jobpilot/models"
)

// NotifierService pushes run progress to a Telegram chat. An unconfigured
// notifier is a silent no-op: notifications are optional and their absence
// must never block a run.
type NotifierService struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifierService(cfg config.NotifyConfig) *NotifierService {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		log.Println("Telegram notifier disabled (no token configured)")
		return &NotifierService{}
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Printf("⚠️ Telegram notifier disabled: %v", err)
		return &NotifierService{}
	}
	return &NotifierService{api: api, chatID: cfg.TelegramChatID}
}

func (n *NotifierService) Enabled() bool {
	return n.api != nil
}

// NotifyOutcome reports a single application's terminal state.
func (n *NotifierService) NotifyOutcome(job models.JobStub, result models.ApplicationResult) {
	n.send(FormatOutcome(job, result))
}

// NotifySummary reports the end-of-run tally.
func (n *NotifierService) NotifySummary(summary RunSummary) {
	n.send(FormatSummary(summary))
}

// NotifyError reports a run-level failure.
func (n *NotifierService) NotifyError(stage string, err error) {
	n.send(fmt.Sprintf("❌ %s failed: %v", stage, err))
}

func (n *NotifierService) send(text string) {
	if n.api == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("⚠️ Could not send Telegram message: %v", err)
	}
}

// FormatOutcome renders one outcome as a plain-text message. Plain text on
// purpose: job titles contain every character MarkdownV2 treats as syntax.
func FormatOutcome(job models.JobStub, result models.ApplicationResult) string {
	text := fmt.Sprintf("%s %s at %s\n", outcomeIcon(result.Outcome), job.Title, job.Company)
	text += fmt.Sprintf("🔖 Outcome: %s (step %d, %d fields filled)\n", result.Outcome, result.Steps, result.FieldsFilled)
	if result.Reason != "" {
		text += fmt.Sprintf("📝 %s\n", result.Reason)
	}
	text += fmt.Sprintf("🔗 %s", job.URL)
	return text
}

// FormatSummary renders the run tally.
func FormatSummary(summary RunSummary) string {
	text := fmt.Sprintf("🏁 Run finished: %q in %q\n", summary.Keywords, summary.Location)
	text += fmt.Sprintf("🔎 Discovered: %d jobs\n", summary.Discovered)
	text += fmt.Sprintf("✅ Submitted: %d\n", summary.Submitted)
	if summary.RequiresManual > 0 {
		text += fmt.Sprintf("✋ Needs manual follow-up: %d\n", summary.RequiresManual)
	}
	if summary.Blocked > 0 {
		text += fmt.Sprintf("🚫 Blocked: %d\n", summary.Blocked)
	}
	if summary.Exhausted > 0 {
		text += fmt.Sprintf("⏳ Exhausted: %d\n", summary.Exhausted)
	}
	if summary.Failed > 0 {
		text += fmt.Sprintf("❌ Errors: %d\n", summary.Failed)
	}
	return text
}

func outcomeIcon(outcome models.ApplicationOutcome) string {
	switch outcome {
	case models.OutcomeSubmitted:
		return "✅"
	case models.OutcomeRequiresManual:
		return "✋"
	case models.OutcomeBlocked:
		return "🚫"
	case models.OutcomeExhausted:
		return "⏳"
	default:
		return "ℹ️"
	}
}
