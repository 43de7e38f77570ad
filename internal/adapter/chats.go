package adapter

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
	"tdgate/internal/models"
	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// chatEntry is the cached detail for one chat. It keeps just enough of
// the engine payload to build a list entry without a re-query.
type chatEntry struct {
	id          int64
	title       string
	unread      int
	last        *engine.Message
	photoFileID int64
	order       string
}

func newChatEntry(c engine.Chat) *chatEntry {
	e := &chatEntry{
		id:     c.ID,
		title:  c.Title,
		unread: c.UnreadCount,
		last:   c.LastMessage,
		order:  c.Order(),
	}
	if c.Photo != nil {
		e.photoFileID = c.Photo.Small.ID
	}
	return e
}

// observeChat is the pump's passive handler. Chat detail arriving for
// any reason lands in the cache so later pages need fewer re-queries.
func (a *Adapter) observeChat(ev engine.Event) {
	var c engine.Chat
	switch ev := ev.(type) {
	case *engine.UpdateNewChat:
		c = ev.Chat
	case *engine.ChatEvent:
		c = ev.Chat
	default:
		return
	}
	if c.ID == 0 {
		return
	}
	a.chatMu.Lock()
	a.chatCache[c.ID] = newChatEntry(c)
	a.chatMu.Unlock()
}

func (a *Adapter) cachedChat(id int64) (*chatEntry, bool) {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	e, ok := a.chatCache[id]
	return e, ok
}

// orderLess compares two decimal order keys numerically, without
// parsing: a shorter digit string is always the smaller integer, equal
// lengths compare lexicographically.
func orderLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// pageCursor returns the offset order/id pair for the next listing
// command: the largest order key already cached, or the open-ended
// sentinel when the cache is empty. Deeper pages re-request from just
// below the top chat so the additive cache always holds the full sorted
// prefix the offset slice is taken from.
func (a *Adapter) pageCursor() (order string, chatID int64) {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()

	for _, e := range a.chatCache {
		if e.order == "0" {
			continue
		}
		if order == "" || orderLess(order, e.order) {
			order = e.order
			chatID = e.id
		}
	}
	if order == "" {
		order = constants.MaxOrderKey
		chatID = 0
	}
	return order, chatID
}

// ListChats returns one page of the main chat list, most recent first.
// Offset zero restarts pagination from the top. Chats whose voice
// artifacts cannot be fetched still appear, with a placeholder body.
func (a *Adapter) ListChats(ctx context.Context, limit, offset int) ([]models.ChatSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offset == 0 {
		a.chatMu.Lock()
		a.chatCache = make(map[int64]*chatEntry)
		a.chatMu.Unlock()
	}

	cursorOrder, cursorChat := a.pageCursor()

	sub := a.pump.subscribe()
	a.send(engine.LoadChats(limit + offset))
	a.send(engine.GetChats(limit+offset, cursorOrder, cursorChat))

	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	a.pump.drain(sub, a.cfg.Timing.CollectWindow, func(ev engine.Event) bool {
		switch ev := ev.(type) {
		case *engine.ChatsEvent:
			for _, id := range ev.ChatIDs {
				add(id)
			}
		case *engine.UpdateChatAddedToList:
			add(ev.ChatID)
		case *engine.ErrorEvent:
			a.logger.WithFields(logrus.Fields{
				"code":    ev.Code,
				"message": ev.Message,
			}).Warn("Engine error during chat listing")
		}
		return false
	})
	a.pump.unsubscribe(sub)

	a.fetchMissingChats(ids)

	// The page slice runs over everything cached this fetch cycle, not
	// just the ids this call listed: earlier pages stay in the cache and
	// fill the slots below the offset.
	a.chatMu.Lock()
	entries := make([]*chatEntry, 0, len(a.chatCache))
	for _, e := range a.chatCache {
		entries = append(entries, e)
	}
	a.chatMu.Unlock()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return orderLess(entries[j].order, entries[i].order)
		}
		return entries[i].id > entries[j].id
	})

	if offset >= len(entries) {
		return []models.ChatSummary{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	page := entries[offset:end]

	a.resolvePageArtifacts(ctx, page)

	summaries := make([]models.ChatSummary, 0, len(page))
	for _, e := range page {
		summaries = append(summaries, a.summarize(e))
	}
	return summaries, nil
}

// fetchMissingChats re-queries detail for listed chats the passive
// handler has not yet cached. Caller must hold a.mu.
func (a *Adapter) fetchMissingChats(ids []int64) {
	var missing []int64
	for _, id := range ids {
		if _, ok := a.cachedChat(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	a.logger.WithField("count", len(missing)).Debug("Fetching uncached chat detail")

	for _, id := range missing {
		id := id
		sub := a.pump.subscribe()
		a.send(engine.GetChat(id))
		a.pump.drain(sub, a.cfg.Timing.DetailWindow, func(ev engine.Event) bool {
			// The passive handler caches the payload; we only wait for it.
			if chat, ok := ev.(*engine.ChatEvent); ok && chat.Chat.ID == id {
				return true
			}
			return false
		})
		a.pump.unsubscribe(sub)
	}
}

// resolvePageArtifacts downloads the voice notes and profile photos
// referenced by the page's entries, concurrently. Failures degrade to
// placeholders (voice) or an absent photo URL.
func (a *Adapter) resolvePageArtifacts(ctx context.Context, page []*chatEntry) {
	var voiceIDs, photoIDs []int64
	for _, e := range page {
		if vn := voiceOf(e.last); vn != nil {
			voiceIDs = append(voiceIDs, vn.Voice.ID)
		}
		if e.photoFileID != 0 {
			photoIDs = append(photoIDs, e.photoFileID)
		}
	}
	if len(voiceIDs) > 0 {
		a.ResolveBatch(ctx, voiceIDs, artifactVoice)
	}
	if len(photoIDs) > 0 {
		a.ResolveBatch(ctx, photoIDs, artifactPhoto)
	}
}

func voiceOf(m *engine.Message) *engine.VoiceNote {
	if m == nil || m.Content.Type != engine.ContentVoiceNote {
		return nil
	}
	return m.Content.VoiceNote
}

// summarize builds the outward chat list entry from a cached chat.
func (a *Adapter) summarize(e *chatEntry) models.ChatSummary {
	s := models.ChatSummary{
		ID:          e.id,
		Title:       e.title,
		UnreadCount: e.unread,
	}
	if e.last != nil {
		m := a.assembleMessage(*e.last, true)
		s.LastMessage = &m
	}
	if e.photoFileID != 0 {
		if res, ok := a.cachedFile(e.photoFileID); ok && res.url != "" {
			s.PhotoURL = res.url
		}
	}
	return s
}

// assembleMessage converts an engine message to the outward shape.
// Voice notes carry a gateway download URL when their artifact resolved;
// in placeholder mode an unresolved voice note degrades to a marker
// body instead of an empty URL.
func (a *Adapter) assembleMessage(m engine.Message, placeholder bool) models.Message {
	out := models.Message{
		ID:         m.ID,
		IsOutgoing: m.IsOutgoing,
		Date:       m.Date,
	}

	switch m.Content.Type {
	case engine.ContentText:
		if m.Content.Text != nil {
			out.Content = m.Content.Text.Text
		}
	case engine.ContentVoiceNote:
		vn := m.Content.VoiceNote
		out.IsVoice = true
		if vn != nil {
			out.Duration = vn.Duration
			out.WaveformData = audio.DecodeWaveform(vn.Waveform)
			if res, ok := a.cachedFile(vn.Voice.ID); ok && res.url != "" {
				out.VoiceURL = res.url
			}
		}
		if out.VoiceURL == "" {
			if placeholder {
				out.IsVoice = false
				out.Duration = 0
				out.WaveformData = nil
				out.Content = "[Voice Message Unavailable]"
			} else {
				out.Content = "[Voice Message Pending]"
			}
		}
	default:
		out.Content = "[Unsupported Message]"
	}
	return out
}
