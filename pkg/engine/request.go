package engine

// Request is a command pushed into the engine. Every request marshals to
// a JSON object whose "@type" field identifies the variant. Constructors
// below are the only way to build requests, so a request can never leave
// this package with a missing discriminant or a missing required field.
type Request interface {
	RequestType() string
}

type requestBase struct {
	Type string `json:"@type"`
}

func (r requestBase) RequestType() string { return r.Type }

type getAuthorizationState struct {
	requestBase
}

// GetAuthorizationState queries the current authorization state.
func GetAuthorizationState() Request {
	return getAuthorizationState{requestBase{"getAuthorizationState"}}
}

// Parameters carries the handshake parameters the engine demands before
// any other authorization step.
type Parameters struct {
	UseTestDC          bool   `json:"use_test_dc"`
	DatabaseDirectory  string `json:"database_directory"`
	UseMessageDatabase bool   `json:"use_message_database"`
	UseSecretChats     bool   `json:"use_secret_chats"`
	APIID              int32  `json:"api_id"`
	APIHash            string `json:"api_hash"`
	SystemLanguageCode string `json:"system_language_code"`
	DeviceModel        string `json:"device_model"`
	ApplicationVersion string `json:"application_version"`
}

type setParameters struct {
	requestBase
	Parameters
}

// SetParameters answers the needs-parameters handshake state.
func SetParameters(p Parameters) Request {
	return setParameters{requestBase{"setTdlibParameters"}, p}
}

type phoneNumberSettings struct {
	Type                 string `json:"@type"`
	AllowSMS             bool   `json:"allow_sms"`
	AllowFlashCall       bool   `json:"allow_flash_call"`
	IsCurrentPhoneNumber bool   `json:"is_current_phone_number"`
}

type setAuthenticationPhoneNumber struct {
	requestBase
	PhoneNumber string              `json:"phone_number"`
	Settings    phoneNumberSettings `json:"settings"`
}

// SetAuthenticationPhoneNumber begins phone-based authentication.
func SetAuthenticationPhoneNumber(phone string) Request {
	return setAuthenticationPhoneNumber{
		requestBase: requestBase{"setAuthenticationPhoneNumber"},
		PhoneNumber: phone,
		Settings: phoneNumberSettings{
			Type:                 "phoneNumberAuthenticationSettings",
			AllowSMS:             true,
			AllowFlashCall:       false,
			IsCurrentPhoneNumber: true,
		},
	}
}

type checkAuthenticationCode struct {
	requestBase
	Code string `json:"code"`
}

// CheckAuthenticationCode submits the SMS/app login code.
func CheckAuthenticationCode(code string) Request {
	return checkAuthenticationCode{requestBase{"checkAuthenticationCode"}, code}
}

type checkAuthenticationPassword struct {
	requestBase
	Password string `json:"password"`
}

// CheckAuthenticationPassword submits the two-step verification password.
func CheckAuthenticationPassword(password string) Request {
	return checkAuthenticationPassword{requestBase{"checkAuthenticationPassword"}, password}
}

type registerUser struct {
	requestBase
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterUser finishes registration for a previously unknown account.
func RegisterUser(firstName, lastName string) Request {
	return registerUser{requestBase{"registerUser"}, firstName, lastName}
}

type setAuthenticationEmailAddress struct {
	requestBase
	EmailAddress string `json:"email_address"`
}

// SetAuthenticationEmailAddress submits the login email address.
func SetAuthenticationEmailAddress(email string) Request {
	return setAuthenticationEmailAddress{requestBase{"setAuthenticationEmailAddress"}, email}
}

type emailAddressAuthenticationCode struct {
	Type string `json:"@type"`
	Code string `json:"code"`
}

type checkAuthenticationEmailCode struct {
	requestBase
	Code emailAddressAuthenticationCode `json:"code"`
}

// CheckAuthenticationEmailCode submits the code sent to the login email.
func CheckAuthenticationEmailCode(code string) Request {
	return checkAuthenticationEmailCode{
		requestBase: requestBase{"checkAuthenticationEmailCode"},
		Code:        emailAddressAuthenticationCode{"emailAddressAuthenticationCode", code},
	}
}

type closeRequest struct {
	requestBase
}

// Close asks the engine to shut the client down.
func Close() Request {
	return closeRequest{requestBase{"close"}}
}

type chatList struct {
	Type string `json:"@type"`
}

type loadChats struct {
	requestBase
	ChatList chatList `json:"chat_list"`
	Limit    int      `json:"limit"`
}

// LoadChats hints the engine to pull more chats into the main list.
func LoadChats(limit int) Request {
	return loadChats{requestBase{"loadChats"}, chatList{"chatListMain"}, limit}
}

type getChats struct {
	requestBase
	ChatList     chatList `json:"chat_list"`
	Limit        int      `json:"limit"`
	OffsetOrder  string   `json:"offset_order"`
	OffsetChatID int64    `json:"offset_chat_id"`
}

// GetChats requests a page of chat ids starting below the given order key.
func GetChats(limit int, offsetOrder string, offsetChatID int64) Request {
	return getChats{requestBase{"getChats"}, chatList{"chatListMain"}, limit, offsetOrder, offsetChatID}
}

type getChat struct {
	requestBase
	ChatID int64 `json:"chat_id"`
}

// GetChat requests full details for one chat.
func GetChat(chatID int64) Request {
	return getChat{requestBase{"getChat"}, chatID}
}

type getChatHistory struct {
	requestBase
	ChatID        int64 `json:"chat_id"`
	Limit         int   `json:"limit"`
	FromMessageID int64 `json:"from_message_id"`
	Offset        int   `json:"offset"`
	OnlyLocal     bool  `json:"only_local"`
}

// GetChatHistory requests messages older than fromMessageID (0 = newest).
func GetChatHistory(chatID int64, limit int, fromMessageID int64) Request {
	return getChatHistory{requestBase{"getChatHistory"}, chatID, limit, fromMessageID, 0, false}
}

type getFile struct {
	requestBase
	FileID int64 `json:"file_id"`
}

// GetFile queries the download state of a file.
func GetFile(fileID int64) Request {
	return getFile{requestBase{"getFile"}, fileID}
}

type downloadFile struct {
	requestBase
	FileID      int64 `json:"file_id"`
	Priority    int   `json:"priority"`
	Offset      int64 `json:"offset"`
	Limit       int64 `json:"limit"`
	Synchronous bool  `json:"synchronous"`
}

// DownloadFile asks the engine to materialize a file locally.
func DownloadFile(fileID int64) Request {
	return downloadFile{requestBase{"downloadFile"}, fileID, 1, 0, 0, true}
}

type formattedText struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type inputMessageText struct {
	Type string        `json:"@type"`
	Text formattedText `json:"text"`
}

type sendTextMessage struct {
	requestBase
	ChatID  int64            `json:"chat_id"`
	Content inputMessageText `json:"input_message_content"`
}

// SendTextMessage sends a plain text message to a chat.
func SendTextMessage(chatID int64, text string) Request {
	return sendTextMessage{
		requestBase: requestBase{"sendMessage"},
		ChatID:      chatID,
		Content: inputMessageText{
			Type: "inputMessageText",
			Text: formattedText{"formattedText", text},
		},
	}
}

type inputFileLocal struct {
	Type string `json:"@type"`
	Path string `json:"path"`
}

type inputMessageVoiceNote struct {
	Type      string         `json:"@type"`
	VoiceNote inputFileLocal `json:"voice_note"`
	Duration  int            `json:"duration"`
	Waveform  string         `json:"waveform"`
}

type sendVoiceNote struct {
	requestBase
	ChatID  int64                 `json:"chat_id"`
	Content inputMessageVoiceNote `json:"input_message_content"`
}

// SendVoiceNote sends a voice note from a local file path. The waveform
// is the engine's compact byte encoding, base64.
func SendVoiceNote(chatID int64, path string, duration int, waveform string) Request {
	return sendVoiceNote{
		requestBase: requestBase{"sendMessage"},
		ChatID:      chatID,
		Content: inputMessageVoiceNote{
			Type:      "inputMessageVoiceNote",
			VoiceNote: inputFileLocal{"inputFileLocal", path},
			Duration:  duration,
			Waveform:  waveform,
		},
	}
}

type setLogVerbosityLevel struct {
	requestBase
	NewVerbosityLevel int `json:"new_verbosity_level"`
}

// SetLogVerbosityLevel tunes the engine's own logging. Setup-only, used
// through Execute.
func SetLogVerbosityLevel(level int) Request {
	return setLogVerbosityLevel{requestBase{"setLogVerbosityLevel"}, level}
}
