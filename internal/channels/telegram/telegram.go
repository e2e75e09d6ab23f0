// Package telegram implements the one chat transport this gateway drives:
// a thin wrapper over go-telegram-bot-api that translates updates into bus
// messages and renders outbound replies (text or voice) back to Telegram.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scalytics/telegramd/internal/bus"
)

// maxDownloadBytes bounds both the advertised file size (pre-check) and
// the actual number of bytes read from Telegram's file server
// (post-check).
const maxDownloadBytes = 10 * 1024 * 1024

// Channel drives one Telegram bot: it publishes inbound updates onto the
// bus and renders outbound replies synchronously through the Bot API.
type Channel struct {
	bot        *tgbotapi.BotAPI
	bus        *bus.MessageBus
	uploadsDir string
	log        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a Channel bound to token. uploadsDir is created if missing.
func New(token string, b *bus.MessageBus, uploadsDir string, log *slog.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("starting telegram bot: %w", err)
	}
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Channel{bot: bot, bus: b, uploadsDir: uploadsDir, log: log}, nil
}

// Name identifies this channel for the service shell.
func (c *Channel) Name() string { return "telegram" }

// Start begins long-polling for updates and publishing them to the bus.
// It returns once the update loop has been launched; the loop itself runs
// until ctx is cancelled or Stop is called.
func (c *Channel) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-loopCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				c.handleMessage(loopCtx, update.Message)
			}
		}
	}()
	return nil
}

// Stop ends the update loop.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.bot.StopReceivingUpdates()
	return nil
}

// SendText implements adapters.Transport.
func (c *Channel) SendText(_ context.Context, chatID int64, text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendVoice implements adapters.Transport.
func (c *Channel) SendVoice(_ context.Context, chatID int64, audio []byte) error {
	file := tgbotapi.FileBytes{Name: "voice.ogg", Bytes: audio}
	_, err := c.bot.Send(tgbotapi.NewVoice(chatID, file))
	return err
}

// SendPhoto implements adapters.Transport.
func (c *Channel) SendPhoto(_ context.Context, chatID int64, image []byte) error {
	file := tgbotapi.FileBytes{Name: "image.png", Bytes: image}
	_, err := c.bot.Send(tgbotapi.NewPhoto(chatID, file))
	return err
}

// SetTyping implements adapters.Transport.
func (c *Channel) SetTyping(_ context.Context, chatID int64) error {
	_, err := c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func (c *Channel) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID

	switch {
	case m.Voice != nil:
		path, err := c.downloadFile(m.Voice.FileID, m.Voice.FileSize, ".ogg")
		if err != nil {
			c.log.Warn("voice download failed", "chat_id", chatID, "error", err)
			return
		}
		c.bus.PublishInbound(&bus.InboundMessage{ChatID: chatID, Kind: bus.KindVoice, FilePath: path, Text: m.Caption})

	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		path, err := c.downloadFile(largest.FileID, largest.FileSize, ".jpg")
		if err != nil {
			c.log.Warn("photo download failed", "chat_id", chatID, "error", err)
			return
		}
		c.bus.PublishInbound(&bus.InboundMessage{ChatID: chatID, Kind: bus.KindPhoto, FilePath: path, Text: m.Caption})

	case m.Document != nil:
		ext := filepath.Ext(m.Document.FileName)
		path, err := c.downloadFile(m.Document.FileID, m.Document.FileSize, ext)
		if err != nil {
			c.log.Warn("document download failed", "chat_id", chatID, "error", err)
			return
		}
		c.bus.PublishInbound(&bus.InboundMessage{ChatID: chatID, Kind: bus.KindDocument, FilePath: path, FileName: m.Document.FileName, Text: m.Caption})

	default:
		c.bus.PublishInbound(&bus.InboundMessage{ChatID: chatID, Kind: bus.KindText, Text: m.Text})
	}
}

// downloadFile fetches a Telegram-hosted file into uploadsDir, naming it
// "<epoch_ms>-<file_id_prefix><ext>", enforcing maxDownloadBytes both from
// the advertised size and from the actual bytes read. Voice files arrive
// with a ".oga" container from Telegram; callers that want the ".ogg"
// extension pass it explicitly since the bytes are already Ogg/Opus.
func (c *Channel) downloadFile(fileID string, advertisedSize int, ext string) (string, error) {
	if advertisedSize > maxDownloadBytes {
		return "", fmt.Errorf("file %s advertises %d bytes, exceeds the %d byte ceiling", fileID, advertisedSize, maxDownloadBytes)
	}

	tgFile, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("resolving file %s: %w", fileID, err)
	}
	url := tgFile.Link(c.bot.Token)

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxDownloadBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", fileID, err)
	}
	if len(data) > maxDownloadBytes {
		return "", fmt.Errorf("file %s exceeded the %d byte ceiling during download", fileID, maxDownloadBytes)
	}

	name := uploadFileName(fileID, ext, time.Now())
	destPath := filepath.Join(c.uploadsDir, name)
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", fileID, err)
	}
	return destPath, nil
}

// uploadFileName builds the "<epoch_ms>-<file_id_prefix><ext>" name an
// attachment is saved under, truncating the file id to keep names short.
func uploadFileName(fileID, ext string, at time.Time) string {
	idPrefix := fileID
	if len(idPrefix) > 12 {
		idPrefix = idPrefix[:12]
	}
	return fmt.Sprintf("%d-%s%s", at.UnixMilli(), idPrefix, ext)
}
