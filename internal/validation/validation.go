package validation

import (
	"fmt"
	"unicode"

	"tdgate/internal/constants"
	"tdgate/internal/errors"
)

// ValidateAccountID validates a phone-style account identifier. An
// optional leading + is allowed; the rest must be digits within the
// international length bounds.
func ValidateAccountID(accountID string) error {
	if accountID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "account id cannot be empty")
	}

	digits := accountID
	if digits[0] == '+' {
		digits = digits[1:]
	}

	if len(digits) < constants.MinAccountIDDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("account id must be at least %d digits", constants.MinAccountIDDigits))
	}
	if len(digits) > constants.MaxAccountIDDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("account id too long (max %d digits)", constants.MaxAccountIDDigits))
	}

	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return errors.New(errors.ErrCodeInvalidInput, "account id must contain only digits")
		}
	}

	return nil
}

// ValidateChatID validates a chat identifier. Zero is never a valid
// chat; negative values are legitimate for group chats.
func ValidateChatID(chatID int64) error {
	if chatID == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "chat id cannot be zero")
	}
	return nil
}

// ValidateMessageText validates outgoing message text.
func ValidateMessageText(text string) error {
	if text == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message text cannot be empty")
	}
	if len(text) > constants.MaxMessageTextLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message text too long (max %d bytes)", constants.MaxMessageTextLength))
	}
	return nil
}

// ValidateVoiceDuration validates a caller-supplied voice note duration
// in seconds. Zero means unknown and is allowed.
func ValidateVoiceDuration(seconds int) error {
	if seconds < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "duration cannot be negative")
	}
	if seconds > 3600 {
		return errors.New(errors.ErrCodeInvalidInput, "duration too long (max 3600 seconds)")
	}
	return nil
}
