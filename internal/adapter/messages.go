package adapter

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
	apperrors "tdgate/internal/errors"
	"tdgate/internal/models"
	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// ListMessages returns up to limit messages of a chat, oldest first.
// The cursor is trusted optimistically: a stale fromMessageID that
// yields nothing triggers one restart from the top of history.
func (a *Adapter) ListMessages(ctx context.Context, chatID int64, limit int, fromMessageID int64) ([]models.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.verifyChat(chatID); err != nil {
		return []models.Message{}, nil
	}

	cursor := fromMessageID
	for attempt := 1; attempt <= a.cfg.Timing.HistoryAttempts; attempt++ {
		raw := a.fetchHistory(chatID, limit, cursor)
		if len(raw) > 0 {
			return a.assembleHistory(ctx, raw), nil
		}
		if cursor == 0 {
			break
		}
		// A stale cursor looks like an empty chat. Restart from the top
		// before concluding there is nothing.
		a.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"cursor":  cursor,
		}).Debug("Empty history for cursor, restarting from top")
		cursor = 0
	}
	return []models.Message{}, nil
}

// verifyChat confirms the chat exists before history is requested. An
// explicit engine error means the chat is gone; a silent window is
// treated as transient and the caller proceeds.
func (a *Adapter) verifyChat(chatID int64) error {
	if _, ok := a.cachedChat(chatID); ok {
		return nil
	}

	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)
	a.send(engine.GetChat(chatID))

	var engineErr *engine.ErrorEvent
	a.pump.drain(sub, a.cfg.Timing.DetailWindow, func(ev engine.Event) bool {
		switch ev := ev.(type) {
		case *engine.ChatEvent:
			if ev.Chat.ID == chatID {
				return true
			}
		case *engine.ErrorEvent:
			engineErr = ev
			return true
		}
		return false
	})
	if engineErr != nil {
		a.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"code":    engineErr.Code,
		}).Warn("Chat lookup failed")
		return apperrors.NewEngineError("get_chat", engineErr.Code, engineErr.Message)
	}
	return nil
}

// fetchHistory collects one history page, deduplicating message ids
// across the possibly-partial batches the engine emits.
func (a *Adapter) fetchHistory(chatID int64, limit int, fromMessageID int64) []engine.Message {
	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)
	a.send(engine.GetChatHistory(chatID, limit, fromMessageID))

	seen := make(map[int64]struct{})
	var out []engine.Message
	a.pump.drain(sub, a.cfg.Timing.CollectWindow, func(ev engine.Event) bool {
		batch, ok := ev.(*engine.MessagesEvent)
		if !ok {
			return false
		}
		for _, m := range batch.Messages {
			if m.ChatID != chatID {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
		return len(out) >= limit
	})
	return out
}

// assembleHistory resolves voice artifacts for a history page and
// converts it to the outward shape, ascending by timestamp.
func (a *Adapter) assembleHistory(ctx context.Context, raw []engine.Message) []models.Message {
	var fileIDs []int64
	for i := range raw {
		if vn := voiceOf(&raw[i]); vn != nil {
			fileIDs = append(fileIDs, vn.Voice.ID)
		}
	}
	if len(fileIDs) > 0 {
		a.ResolveBatch(ctx, fileIDs, artifactVoice)
	}

	out := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		out = append(out, a.assembleMessage(m, false))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// SendMessage sends a text message and waits for its echo. The echo is
// matched on chat and body since the engine assigns ids asynchronously;
// ids already claimed by earlier sends are skipped so repeated identical
// texts each get their own echo.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string) models.SendResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)
	a.send(engine.SendTextMessage(chatID, text))

	var (
		echo      *engine.Message
		engineErr *engine.ErrorEvent
	)
	a.pump.drain(sub, a.cfg.Timing.SendWindow, func(ev engine.Event) bool {
		switch ev := ev.(type) {
		case *engine.MessageEvent:
			if a.matchTextEcho(&ev.Message, chatID, text) {
				echo = &ev.Message
				return true
			}
		case *engine.UpdateNewMessage:
			if a.matchTextEcho(&ev.Message, chatID, text) {
				echo = &ev.Message
				return true
			}
		case *engine.ErrorEvent:
			engineErr = ev
			return true
		}
		return false
	})

	if engineErr != nil {
		appErr := apperrors.NewEngineError("send_message", engineErr.Code, engineErr.Message)
		a.logger.WithError(appErr).WithField("chat_id", chatID).Error("Send failed")
		return models.SendResult{Status: "error", Error: appErr.Message}
	}
	if echo == nil {
		a.logger.WithField("chat_id", chatID).Warn("No send confirmation received")
		return models.SendResult{Status: "error", Error: "message send was not confirmed"}
	}

	a.sentIDs[echo.ID] = struct{}{}
	m := a.assembleMessage(*echo, false)
	return models.SendResult{Message: &m, Status: "sent"}
}

func (a *Adapter) matchTextEcho(m *engine.Message, chatID int64, text string) bool {
	if m.ChatID != chatID || !m.IsOutgoing {
		return false
	}
	if m.Content.Type != engine.ContentText || m.Content.Text == nil || m.Content.Text.Text != text {
		return false
	}
	_, claimed := a.sentIDs[m.ID]
	return !claimed
}

// SendVoiceMessage converts a WAV upload to the engine's voice format,
// derives its waveform, sends it, and waits for both the echo and the
// upload to finish. An unconfirmed upload returns a pending result
// rather than an error.
func (a *Adapter) SendVoiceMessage(ctx context.Context, chatID int64, wavPath string, duration int) models.SendResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	format, err := audio.DetectFileFormat(wavPath)
	if err != nil || format != audio.FormatWAV {
		return models.SendResult{Status: "error", Error: "voice upload must be a WAV file"}
	}

	ogaPath := filepath.Join(a.cfg.SessionPath, constants.VoiceDirName, outboundVoiceName())
	if err := a.cfg.Transcoder.Transcode(ctx, wavPath, audio.FormatWAV, ogaPath, audio.FormatOGG, "libopus"); err != nil {
		a.logger.WithError(err).Error("Voice conversion failed")
		return models.SendResult{Status: "error", Error: "failed to convert voice message"}
	}
	defer os.Remove(ogaPath)

	samples, err := a.cfg.Transcoder.ExtractWaveform(wavPath, audio.SampleCount)
	if err != nil {
		a.logger.WithError(err).Warn("Waveform extraction failed, using default")
		samples = audio.DefaultWaveform()
	}
	waveform := audio.EncodeWaveform(audio.Normalize(samples))

	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)
	a.send(engine.SendVoiceNote(chatID, ogaPath, duration, waveform))

	var (
		echo      *engine.Message
		uploaded  bool
		engineErr *engine.ErrorEvent
	)
	a.pump.drain(sub, a.cfg.Timing.VoiceSendWindow, func(ev engine.Event) bool {
		switch ev := ev.(type) {
		case *engine.MessageEvent:
			if a.matchVoiceEcho(&ev.Message, chatID) {
				echo = &ev.Message
			}
		case *engine.UpdateNewMessage:
			if a.matchVoiceEcho(&ev.Message, chatID) {
				echo = &ev.Message
			}
		case *engine.UpdateFile:
			if echo != nil && voiceOf(echo) != nil &&
				ev.File.ID == voiceOf(echo).Voice.ID &&
				ev.File.Local.IsDownloadingCompleted {
				uploaded = true
			}
		case *engine.ErrorEvent:
			engineErr = ev
			return true
		}
		return echo != nil && uploaded
	})

	if engineErr != nil {
		appErr := apperrors.NewEngineError("send_voice", engineErr.Code, engineErr.Message)
		a.logger.WithError(appErr).WithField("chat_id", chatID).Error("Voice send failed")
		return models.SendResult{Status: "error", Error: appErr.Message}
	}
	if echo == nil {
		return models.SendResult{Status: "error", Error: "voice message send was not confirmed"}
	}

	a.sentIDs[echo.ID] = struct{}{}
	m := a.assembleMessage(*echo, false)
	m.Duration = duration
	m.WaveformData = audio.Normalize(samples)

	if vn := voiceOf(echo); vn != nil {
		if url, err := a.Resolve(ctx, vn.Voice.ID, artifactVoice); err == nil {
			m.VoiceURL = url
			m.Content = ""
			m.IsVoice = true
			return models.SendResult{Message: &m, Status: "sent"}
		}
	}

	// Echo arrived but the artifact is not retrievable yet. Report the
	// send as pending instead of failing it.
	m.IsVoice = true
	m.VoiceURL = ""
	m.Content = "[Voice Message Pending]"
	return models.SendResult{Message: &m, Status: "pending", Pending: true}
}

func (a *Adapter) matchVoiceEcho(m *engine.Message, chatID int64) bool {
	if m.ChatID != chatID || !m.IsOutgoing || m.Content.Type != engine.ContentVoiceNote {
		return false
	}
	_, claimed := a.sentIDs[m.ID]
	return !claimed
}

// outboundVoiceName builds a unique staging name for a converted voice
// upload inside the session directory.
func outboundVoiceName() string {
	return "outbound-" + time.Now().UTC().Format("20060102T150405.000000000") + ".oga"
}
