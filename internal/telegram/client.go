// Package telegram sends prediction reports and shift alerts via the Telegram Bot API.
// Messages use MarkdownV2; delivery is retried with linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/causaloracle/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendReport sends the predictions of a run.
func (c *Client) SendReport(event models.Event, run *models.Run) error {
	return c.send(FormatReport(event, run))
}

// SendShifts sends an alert listing the shifts. An empty list sends nothing.
func (c *Client) SendShifts(shifts []models.Shift) error {
	if len(shifts) == 0 {
		return nil
	}
	return c.send(FormatShifts(shifts))
}

// SendError reports a failed watch cycle.
func (c *Client) SendError(cycleErr error) error {
	return c.send("⚠️ *Watch cycle failed*\n\n" + escapeMarkdownV2(cycleErr.Error()))
}

// SendRecovery reports that cycles succeed again after failures.
func (c *Client) SendRecovery(failures int) error {
	return c.send(escapeMarkdownV2(fmt.Sprintf("✅ Watch recovered after %d failed cycles", failures)))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// FormatReport renders a run's predictions as a MarkdownV2 message.
func FormatReport(event models.Event, run *models.Run) string {
	var b strings.Builder
	b.WriteString("🔮 *Causal Prediction*\n\n")
	b.WriteString(titleLink(run.EventTitle, event.URL))
	b.WriteString("\n")

	var facts []string
	if event.Volume > 0 {
		facts = append(facts, "Volume $"+humanize.Comma(int64(event.Volume)))
	}
	if event.Liquidity > 0 {
		facts = append(facts, "Liquidity $"+humanize.Comma(int64(event.Liquidity)))
	}
	if !event.CloseDate.IsZero() {
		facts = append(facts, "Closes "+humanize.Time(event.CloseDate))
	}
	if len(facts) > 0 {
		b.WriteString(escapeMarkdownV2(strings.Join(facts, " · ")))
		b.WriteString("\n")
	}

	chains := 0
	if run.Graph != nil {
		chains = len(run.Graph.Metadata.Chains)
	}
	b.WriteString(escapeMarkdownV2(fmt.Sprintf("%d sources, %d causal chains", run.SourceCount, chains)))
	b.WriteString("\n\n")

	for i, p := range run.Predictions {
		fmt.Fprintf(&b, "%d\\. *%s*: %s \\(%s, CI %s–%s\\)\n",
			i+1,
			escapeMarkdownV2(p.Outcome),
			escapeMarkdownV2(percent(p.Probability)),
			escapeMarkdownV2(string(p.ConfidenceLabel)),
			escapeMarkdownV2(percent(p.CILower)),
			escapeMarkdownV2(percent(p.CIUpper)),
		)
		fmt.Fprintf(&b, "   _%s_\n", escapeMarkdownV2(p.Reasoning))
	}
	return b.String()
}

// FormatShifts renders shifts as a MarkdownV2 alert.
func FormatShifts(shifts []models.Shift) string {
	var b strings.Builder
	b.WriteString("🚨 *Prediction Shifts Detected*\n\n")

	if len(shifts) > 0 {
		dateStr := escapeMarkdownV2(shifts[0].DetectedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "📅 Detected: %s\n\n", dateStr)
	}

	for i, s := range shifts {
		directionEmoji := "📈"
		if s.Direction == "decrease" {
			directionEmoji = "📉"
		}

		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(s.EventTitle))
		fmt.Fprintf(&b, "   🎯 Outcome: %s\n", escapeMarkdownV2(s.Outcome))
		fmt.Fprintf(&b, "   %s Change: *%s* \\(%s → %s\\)\n\n",
			directionEmoji,
			escapeMarkdownV2(percent(s.Magnitude)),
			escapeMarkdownV2(percent(s.OldProbability)),
			escapeMarkdownV2(percent(s.NewProbability)),
		)
	}
	return b.String()
}

func titleLink(title, url string) string {
	escaped := escapeMarkdownV2(title)
	if url == "" {
		return escaped
	}
	// The URL part of a link only needs ')' and '\' escaped.
	url = strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
	return fmt.Sprintf("[%s](%s)", escaped, url)
}

func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
