package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gigalert/internal/model"
)

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

const (
	telegramAPIBase = "https://api.telegram.org"

	// Telegram message bodies are capped well above this; 400 keeps the
	// alert scannable on a phone.
	descriptionLimit = 400
)

// TelegramNotifier delivers job alerts through the Telegram Bot API.
// One instance owns the channel's pacing budget: consecutive sends are
// spaced by at least minSendDelay, and an explicit retry_after from the
// API pauses only the affected send before a single retry.
type TelegramNotifier struct {
	apiBase    string
	botToken   string
	httpClient *http.Client
	pacer      *pacer
	logger     *slog.Logger
}

// NewTelegramNotifier returns a notifier posting through the given bot
// token. The bot handle is constructed once at process start and passed
// in; the notifier has no other lifecycle.
func NewTelegramNotifier(botToken string, minSendDelay time.Duration, httpClient *http.Client, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		apiBase:    telegramAPIBase,
		botToken:   botToken,
		httpClient: httpClient,
		pacer:      newPacer(minSendDelay),
		logger:     logger,
	}
}

// sendMessageRequest mirrors the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID                int64        `json:"chat_id"`
	Text                  string       `json:"text"`
	ParseMode             string       `json:"parse_mode"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview"`
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// sendMessageResponse mirrors the Bot API envelope; only the fields the
// error paths need.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Deliver formats and sends one job alert. A 429 from the API pauses for
// the advertised retry_after and retries exactly once; any further
// failure is returned to the caller, who skips this recipient for the
// rest of the cycle.
func (n *TelegramNotifier) Deliver(ctx context.Context, recipient model.Recipient, job model.Job, matchedKeyword string) error {
	if err := n.pacer.wait(ctx); err != nil {
		return err
	}

	req := sendMessageRequest{
		ChatID:                recipient.ID,
		Text:                  FormatMessage(job, matchedKeyword),
		ParseMode:             "HTML",
		DisableWebPagePreview: false,
	}
	if link := job.Link(); link != "" {
		req.ReplyMarkup = &replyMarkup{
			InlineKeyboard: [][]inlineButton{{{Text: "Open Job", URL: link}}},
		}
	}

	err := n.post(ctx, req)
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		delay := httpErr.RetryAfter
		if delay <= 0 {
			delay = time.Second
		}
		n.logger.Warn("telegram rate limited, retrying once",
			"recipient", recipient.ID,
			"retry_after", delay,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		err = n.post(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("delivering to %d: %w", recipient.ID, err)
	}

	n.logger.Debug("telegram message sent", "recipient", recipient.ID, "source", job.Source, "title", job.Title)
	return nil
}

func (n *TelegramNotifier) post(ctx context.Context, payload sendMessageRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post to telegram: %w", err)
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &model.HTTPError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode telegram response: %w", err)
	}

	if !apiResp.OK {
		httpErr := &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("telegram: %s", apiResp.Description),
		}
		if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
			httpErr.RetryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		} else if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			httpErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return httpErr
	}

	return nil
}

// FormatMessage builds the HTML alert body for one matched job.
func FormatMessage(job model.Job, matchedKeyword string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📢 <b>%s</b>\n", escapeHTML(sourceTitle(job.Source)))
	fmt.Fprintf(&b, "<b>%s</b>\n\n", escapeHTML(job.Title))
	b.WriteString(budgetLine(job))
	b.WriteString("\n")

	if matchedKeyword != "" {
		fmt.Fprintf(&b, "🔍 Keyword: %s\n", escapeHTML(matchedKeyword))
	}
	if job.PostedAt != nil {
		fmt.Fprintf(&b, "🕓 %s\n", job.PostedAt.UTC().Format(time.RFC1123))
	}

	if desc := Truncate(job.Description, descriptionLimit); desc != "" {
		fmt.Fprintf(&b, "\n📝 %s\n", escapeHTML(desc))
	}

	return b.String()
}

// budgetLine renders "💰 Budget: 30–250 EUR" style lines, falling back to
// "Not specified" when the source gave no numbers.
func budgetLine(job model.Job) string {
	cur := strings.ToUpper(job.Currency)
	if cur == "" {
		cur = "USD"
	}
	switch {
	case job.BudgetMin != nil && job.BudgetMax != nil:
		return fmt.Sprintf("💰 Budget: %s–%s %s", formatAmount(*job.BudgetMin), formatAmount(*job.BudgetMax), cur)
	case job.BudgetMin != nil:
		return fmt.Sprintf("💰 Budget: from %s %s", formatAmount(*job.BudgetMin), cur)
	case job.BudgetMax != nil:
		return fmt.Sprintf("💰 Budget: up to %s %s", formatAmount(*job.BudgetMax), cur)
	default:
		return "💰 Budget: Not specified"
	}
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Truncate caps s at limit runes with an explicit marker.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// escapeHTML escapes the three characters Telegram's HTML parse mode
// reserves.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// SendTestMessage delivers a dummy alert to the given chat to verify
// the channel end to end.
func SendTestMessage(ctx context.Context, n model.Notifier, recipientID int64) error {
	now := time.Now().UTC()
	testJob := model.Job{
		Source:      "test",
		ExternalID:  "test-001",
		Title:       "Test Alert — Integration Verified",
		Description: "If you can read this, delivery is wired up correctly.",
		URL:         "https://www.freelancer.com/jobs",
		PostedAt:    &now,
	}
	rec := model.Recipient{ID: recipientID, Active: true}
	return n.Deliver(ctx, rec, testJob, "test")
}

func sourceTitle(source string) string {
	switch source {
	case "freelancer":
		return "Freelancer"
	case "skywalker":
		return "Skywalker.gr"
	default:
		if source == "" {
			return "Unknown"
		}
		return strings.ToUpper(source[:1]) + source[1:]
	}
}
