package models

// AuthStatus is the normalized authorization status reported to clients.
type AuthStatus string

const (
	StatusAuthenticated    AuthStatus = "authenticated"
	StatusParametersSet    AuthStatus = "parameters_set"
	StatusWaitPhone        AuthStatus = "wait_phone"
	StatusWaitCode         AuthStatus = "wait_code"
	StatusWaitPassword     AuthStatus = "wait_password"
	StatusWaitRegistration AuthStatus = "wait_registration"
	StatusWaitEmail        AuthStatus = "wait_email"
	StatusWaitEmailCode    AuthStatus = "wait_email_code"
	StatusWaitPremium      AuthStatus = "wait_premium"
	StatusClosed           AuthStatus = "closed"
	StatusNoSession        AuthStatus = "no_session"
	StatusUnknown          AuthStatus = "unknown"
)

// SessionState answers a session check.
type SessionState struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	AuthState       string `json:"authState"`
}

// AuthResult answers an authentication step.
type AuthResult struct {
	Status AuthStatus `json:"status"`
}

// Credentials is the partial credential set accepted by the
// authentication endpoint. Any nonempty subset drives the matching
// engine commands.
type Credentials struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Code        string `json:"code,omitempty"`
	Password    string `json:"password,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	EmailCode   string `json:"email_code,omitempty"`
}

// Empty reports whether no credential field is present.
func (c Credentials) Empty() bool {
	return c.PhoneNumber == "" && c.Code == "" && c.Password == "" &&
		c.FirstName == "" && c.LastName == "" && c.Email == "" && c.EmailCode == ""
}

// Message is the outward message shape.
type Message struct {
	ID           int64     `json:"id"`
	Content      string    `json:"content"`
	IsVoice      bool      `json:"isVoice"`
	VoiceURL     string    `json:"voiceUrl,omitempty"`
	Duration     int       `json:"duration,omitempty"`
	IsOutgoing   bool      `json:"isOutgoing"`
	Date         int64     `json:"date"`
	WaveformData []float64 `json:"waveformData,omitempty"`
}

// ChatSummary is the outward chat list entry. LastMessage is nil for
// chats with no visible history.
type ChatSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
}

// SendResult is the outcome of a send operation: either a message or a
// structured error, never a raw failure.
type SendResult struct {
	Message *Message `json:"message,omitempty"`
	Status  string   `json:"status,omitempty"`
	Error   string   `json:"error,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// SessionRecord is the persisted registry entry for a known session.
type SessionRecord struct {
	SessionKey string `json:"session_key"`
	AccountID  string `json:"account_id"`
	AuthState  string `json:"auth_state"`
	CreatedAt  int64  `json:"created_at"`
	LastSeenAt int64  `json:"last_seen_at"`
}
