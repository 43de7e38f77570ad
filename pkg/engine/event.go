package engine

import (
	"encoding/json"
	"fmt"
)

// Event discriminants this gateway reacts to. Anything else decodes to
// UnknownEvent and is passed through untouched.
const (
	TypeUpdateAuthorizationState = "updateAuthorizationState"
	TypeChats                    = "chats"
	TypeChat                     = "chat"
	TypeUpdateNewChat            = "updateNewChat"
	TypeUpdateChatAddedToList    = "updateChatAddedToList"
	TypeMessages                 = "messages"
	TypeMessage                  = "message"
	TypeUpdateNewMessage         = "updateNewMessage"
	TypeFile                     = "file"
	TypeUpdateFile               = "updateFile"
	TypeError                    = "error"
	TypeOk                       = "ok"
)

// Authorization state discriminants.
const (
	AuthWaitParameters     = "authorizationStateWaitTdlibParameters"
	AuthWaitPhoneNumber    = "authorizationStateWaitPhoneNumber"
	AuthWaitCode           = "authorizationStateWaitCode"
	AuthWaitPassword       = "authorizationStateWaitPassword"
	AuthWaitRegistration   = "authorizationStateWaitRegistration"
	AuthWaitEmailAddress   = "authorizationStateWaitEmailAddress"
	AuthWaitEmailCode      = "authorizationStateWaitEmailCode"
	AuthWaitPremium        = "authorizationStateWaitPremiumPurchase"
	AuthReady              = "authorizationStateReady"
	AuthClosed             = "authorizationStateClosed"
)

// Message content discriminants.
const (
	ContentText      = "messageText"
	ContentVoiceNote = "messageVoiceNote"
)

// Event is one asynchronous notification pulled from the engine channel.
// Concrete variants form a closed set; consumers switch on the concrete
// type rather than poking at raw JSON fields.
type Event interface {
	EventType() string
	ClientID() int64
}

// Meta carries the fields every event shares.
type Meta struct {
	Type   string `json:"@type"`
	Client int64  `json:"@client_id"`
}

func (m Meta) EventType() string { return m.Type }
func (m Meta) ClientID() int64   { return m.Client }

// UpdateAuthorizationState reports a transition of the engine's
// authorization state machine.
type UpdateAuthorizationState struct {
	Meta
	AuthorizationState AuthorizationState `json:"authorization_state"`
}

// AuthorizationState is the nested state object inside an authorization
// update.
type AuthorizationState struct {
	Type string `json:"@type"`
}

// ErrorEvent is an explicit protocol error from the engine.
type ErrorEvent struct {
	Meta
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OkEvent acknowledges a command with no other payload.
type OkEvent struct {
	Meta
}

// ChatsEvent lists chat ids for a page request.
type ChatsEvent struct {
	Meta
	TotalCount int     `json:"total_count"`
	ChatIDs    []int64 `json:"chat_ids"`
}

// ChatPosition ranks a chat inside a chat list. Order is a decimal string
// encoding of an integer and must be compared numerically.
type ChatPosition struct {
	Order string `json:"order"`
}

// Chat is the engine's chat detail payload.
type Chat struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	UnreadCount int            `json:"unread_count"`
	LastMessage *Message       `json:"last_message"`
	Positions   []ChatPosition `json:"positions"`
	Photo       *ChatPhoto     `json:"photo"`
}

// ChatPhoto references the downloadable chat photo files.
type ChatPhoto struct {
	Small File `json:"small"`
	Big   File `json:"big"`
}

// Order returns the chat's primary order key, "0" when unranked.
func (c Chat) Order() string {
	if len(c.Positions) == 0 || c.Positions[0].Order == "" {
		return "0"
	}
	return c.Positions[0].Order
}

// ChatEvent answers a single-chat detail query.
type ChatEvent struct {
	Meta
	Chat
}

// UpdateNewChat announces a chat the engine just learned about.
type UpdateNewChat struct {
	Meta
	Chat Chat `json:"chat"`
}

// UpdateChatAddedToList announces a chat joining a chat list.
type UpdateChatAddedToList struct {
	Meta
	ChatID int64 `json:"chat_id"`
}

// FormattedText is the engine's text payload.
type FormattedText struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

// VoiceNote is the engine's voice note payload. Waveform is the compact
// byte-encoded amplitude sequence, base64.
type VoiceNote struct {
	Duration int    `json:"duration"`
	Waveform string `json:"waveform"`
	Voice    File   `json:"voice"`
}

// MessageContent is the variant payload of a message.
type MessageContent struct {
	Type      string         `json:"@type"`
	Text      *FormattedText `json:"text,omitempty"`
	VoiceNote *VoiceNote     `json:"voice_note,omitempty"`
}

// Message is the engine's message payload.
type Message struct {
	ID         int64          `json:"id"`
	ChatID     int64          `json:"chat_id"`
	IsOutgoing bool           `json:"is_outgoing"`
	Date       int64          `json:"date"`
	Content    MessageContent `json:"content"`
}

// MessagesEvent answers a chat history query.
type MessagesEvent struct {
	Meta
	TotalCount int       `json:"total_count"`
	Messages   []Message `json:"messages"`
}

// MessageEvent echoes a just-sent message.
type MessageEvent struct {
	Meta
	Message
}

// UpdateNewMessage announces an incoming message.
type UpdateNewMessage struct {
	Meta
	Message Message `json:"message"`
}

// LocalFile describes the engine-local materialization state of a file.
type LocalFile struct {
	Path                   string `json:"path"`
	CanBeDownloaded        bool   `json:"can_be_downloaded"`
	IsDownloadingActive    bool   `json:"is_downloading_active"`
	IsDownloadingCompleted bool   `json:"is_downloading_completed"`
	DownloadedSize         int64  `json:"downloaded_size"`
}

// RemoteFile describes the remote side of a file.
type RemoteFile struct {
	URL string `json:"url"`
}

// File is the engine's file payload.
type File struct {
	ID           int64      `json:"id"`
	Size         int64      `json:"size"`
	ExpectedSize int64      `json:"expected_size"`
	Local        LocalFile  `json:"local"`
	Remote       RemoteFile `json:"remote"`
}

// FileEvent answers a file status query.
type FileEvent struct {
	Meta
	File
}

// UpdateFile reports download/upload progress for a file.
type UpdateFile struct {
	Meta
	File File `json:"file"`
}

// UnknownEvent preserves events outside the recognized families.
type UnknownEvent struct {
	Meta
	Raw json.RawMessage
}

// DecodeEvent turns one raw engine payload into its typed variant.
func DecodeEvent(data []byte) (Event, error) {
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("malformed engine event: %w", err)
	}

	var ev Event
	switch meta.Type {
	case TypeUpdateAuthorizationState:
		ev = &UpdateAuthorizationState{}
	case TypeChats:
		ev = &ChatsEvent{}
	case TypeChat:
		ev = &ChatEvent{}
	case TypeUpdateNewChat:
		ev = &UpdateNewChat{}
	case TypeUpdateChatAddedToList:
		ev = &UpdateChatAddedToList{}
	case TypeMessages:
		ev = &MessagesEvent{}
	case TypeMessage:
		ev = &MessageEvent{}
	case TypeUpdateNewMessage:
		ev = &UpdateNewMessage{}
	case TypeFile:
		ev = &FileEvent{}
	case TypeUpdateFile:
		ev = &UpdateFile{}
	case TypeError:
		ev = &ErrorEvent{}
	case TypeOk:
		ev = &OkEvent{}
	default:
		return &UnknownEvent{Meta: meta, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("malformed %s event: %w", meta.Type, err)
	}
	return ev, nil
}
