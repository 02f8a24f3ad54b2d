// Package telegram sends a digest of each run's listings to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// maxMessageLen stays under Telegram's 4096 character limit with room for markup.
const maxMessageLen = 3800

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts HTML formatted digests.
type Notifier struct {
	bot    sender
	chatID int64
}

// New connects to the Bot API with token.
func New(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

func newWithSender(bot sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// Notify sends the digest, split across messages when it is long.
func (n *Notifier) Notify(ctx context.Context, result crawler.RunResult) error {
	for _, text := range Digest(result) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// Digest renders result as one or more HTML messages.
func Digest(result crawler.RunResult) []string {
	header := fmt.Sprintf("🔥 <b>%d new listing(s)</b> · run <code>%s</code>\n",
		len(result.Listings), html.EscapeString(result.RunID))

	var (
		messages []string
		current  strings.Builder
	)
	current.WriteString(header)
	for _, listing := range result.Listings {
		entry := fmt.Sprintf("\n🏢 <b>%s</b>\n%s · 📍 %s\n🔗 <a href=\"%s\">Apply</a>\n",
			html.EscapeString(listing.Company),
			html.EscapeString(listing.Title),
			html.EscapeString(listing.Location),
			html.EscapeString(listing.NormalizedLink),
		)
		if current.Len()+len(entry) > maxMessageLen && current.Len() > 0 {
			messages = append(messages, current.String())
			current.Reset()
		}
		current.WriteString(entry)
	}
	if current.Len() > 0 {
		messages = append(messages, current.String())
	}
	return messages
}
