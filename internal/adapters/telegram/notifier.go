package telegram

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
)

const digestTemplate = `📊 *Sentiment digest* — {{.Date}}
{{range .Coins}}
*{{.Coin}}* ({{.Total}} posts)
  🟢 {{printf "%.1f" .Positive}}%  ⚪ {{printf "%.1f" .Neutral}}%  🔴 {{printf "%.1f" .Negative}}%
{{end}}`

// CoinDigest is one coin's line in the daily digest
type CoinDigest struct {
	Coin     string
	Total    int
	Positive float64
	Neutral  float64
	Negative float64
}

// Notifier sends aggregation digests to a Telegram chat
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	tmpl   *template.Template
}

// NewNotifier creates new Telegram notifier
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest template: %w", err)
	}

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	return &Notifier{
		api:    bot,
		chatID: chatID,
		tmpl:   tmpl,
	}, nil
}

// SendDigest renders and sends the per-coin sentiment digest
func (n *Notifier) SendDigest(coins []CoinDigest) error {
	if len(coins) == 0 {
		return nil
	}

	data := map[string]interface{}{
		"Date":  time.Now().UTC().Format("2006-01-02"),
		"Coins": coins,
	}

	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render digest: %w", err)
	}

	return n.sendMessageMarkdown(buf.String())
}

func (n *Notifier) sendMessageMarkdown(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	_, err := n.api.Send(msg)
	if err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
