package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"divscan-go/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NotificationLedger remembers which divergences have already been pushed
type NotificationLedger interface {
	Notified(a model.Annotation) (bool, error)
	MarkNotified(a model.Annotation) error
	RecentAnnotations(symbol string, limit int64) ([]model.Annotation, error)
	CountSince(t time.Time) (int64, error)
}

// Watchlist is the mutable set of scanned symbols
type Watchlist interface {
	AddSymbol(symbol string) error
	RemoveSymbol(symbol string) error
	GetWatchlist() ([]string, error)
}

// TelegramService pushes live divergences to a chat and answers bot commands
type TelegramService struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	ledger    NotificationLedger
	watchlist Watchlist
	interval  string
	send      func(message string) error
}

func NewTelegramService(token, chatID, interval string, ledger NotificationLedger, watchlist Watchlist) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Printf("✅ Telegram bot authorized: %s", bot.Self.UserName)

	service := &TelegramService{
		bot:       bot,
		chatID:    parseChatID(chatID),
		ledger:    ledger,
		watchlist: watchlist,
		interval:  interval,
	}
	service.send = service.SendMessage

	// Start command handler in background
	SafeGo("TelegramCommands", service.handleCommands)
	log.Println("✅ Telegram command handler started")

	return service, nil
}

// Draw sends a live divergence to the chat. Backfill annotations are skipped and
// a divergence anchored at an already notified peak is sent only once. The
// anchor is recorded only after a successful send, so a failed send is retried
// by the next scan.
func (s *TelegramService) Draw(a model.Annotation) error {
	if a.Historical {
		return nil
	}

	if s.ledger != nil {
		notified, err := s.ledger.Notified(a)
		if err != nil {
			return err
		}
		if notified {
			return nil
		}
	}

	log.Printf("📤 [Telegram] Sending %s %s", a.Symbol, a.Tag)
	if err := s.send(formatAnnotationMessage(a)); err != nil {
		return err
	}

	if s.ledger != nil {
		if err := s.ledger.MarkNotified(a); err != nil {
			return err
		}
	}
	return nil
}

// handleCommands listens for and processes Telegram commands
func (s *TelegramService) handleCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := s.bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}

		command := update.Message.Command()
		chatID := update.Message.Chat.ID
		log.Printf("📱 /%s command executed", command)

		switch command {
		case "start", "help":
			s.sendMessage(chatID, helpMessage)
		case "status":
			s.handleStatus(chatID)
		case "recent":
			s.handleRecent(chatID, update.Message.CommandArguments())
		case "watch":
			s.handleWatch(chatID, update.Message.CommandArguments())
		case "unwatch":
			s.handleUnwatch(chatID, update.Message.CommandArguments())
		case "watchlist":
			s.handleWatchlist(chatID)
		default:
			s.sendMessage(chatID, "Unknown command. Use /help to see available commands.")
		}
	}
}

const helpMessage = `🤖 <b>Divergence Scanner</b>

<b>📊 Alerts</b>
/recent [SYMBOL] - Latest divergences
/status - Scanner status

<b>👀 Watchlist</b>
/watch SYMBOL - Start scanning a pair
/unwatch SYMBOL - Stop scanning a pair
/watchlist - Scanned pairs

/help - This message`

func (s *TelegramService) handleStatus(chatID int64) {
	symbols, err := s.watchlist.GetWatchlist()
	if err != nil {
		s.sendMessage(chatID, "❌ Failed to load watchlist")
		return
	}

	recent, err := s.ledger.CountSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		log.Printf("⚠️ [Telegram] Failed to count divergences: %v", err)
	}

	s.sendMessage(chatID, formatStatus(s.interval, len(symbols), recent))
}

func (s *TelegramService) handleRecent(chatID int64, args string) {
	symbol := ""
	if args = strings.TrimSpace(args); args != "" {
		normalized, err := NormalizeSymbol(args)
		if err != nil {
			s.sendMessage(chatID, "❌ "+escapeHTML(err.Error()))
			return
		}
		symbol = normalized
	}

	annotations, err := s.ledger.RecentAnnotations(symbol, 10)
	if err != nil {
		s.sendMessage(chatID, "❌ Failed to fetch divergences")
		return
	}
	s.sendMessage(chatID, formatRecent(annotations))
}

func (s *TelegramService) handleWatch(chatID int64, args string) {
	if strings.TrimSpace(args) == "" {
		s.sendMessage(chatID, "💡 <b>Usage:</b> /watch BTCUSDT")
		return
	}
	if err := s.watchlist.AddSymbol(args); err != nil {
		s.sendMessage(chatID, "❌ "+escapeHTML(err.Error()))
		return
	}
	s.sendMessage(chatID, fmt.Sprintf("✅ Watching <b>%s</b> from the next poll", escapeHTML(strings.ToUpper(strings.TrimSpace(args)))))
}

func (s *TelegramService) handleUnwatch(chatID int64, args string) {
	if strings.TrimSpace(args) == "" {
		s.sendMessage(chatID, "💡 <b>Usage:</b> /unwatch BTCUSDT")
		return
	}
	if err := s.watchlist.RemoveSymbol(args); err != nil {
		s.sendMessage(chatID, "❌ "+escapeHTML(err.Error()))
		return
	}
	s.sendMessage(chatID, fmt.Sprintf("🗑️ Stopped watching <b>%s</b>", escapeHTML(strings.ToUpper(strings.TrimSpace(args)))))
}

func (s *TelegramService) handleWatchlist(chatID int64) {
	symbols, err := s.watchlist.GetWatchlist()
	if err != nil {
		s.sendMessage(chatID, "❌ Failed to load watchlist")
		return
	}
	s.sendMessage(chatID, formatWatchlist(symbols))
}

func (s *TelegramService) sendMessage(chatID int64, message string) {
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = "HTML"
	if _, err := s.bot.Send(msg); err != nil {
		log.Printf("⚠️ [Telegram] Failed to send message: %v", err)
	}
}

// SendMessage sends an HTML message to the configured chat
func (s *TelegramService) SendMessage(message string) error {
	msg := tgbotapi.NewMessage(s.chatID, message)
	msg.ParseMode = "HTML"

	_, err := s.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	return nil
}

func parseChatID(chatIDStr string) int64 {
	var chatID int64
	fmt.Sscanf(chatIDStr, "%d", &chatID)
	return chatID
}
