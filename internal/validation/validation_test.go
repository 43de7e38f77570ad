package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tdgate/internal/errors"
)

func TestValidateAccountID(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		wantErr   bool
	}{
		{"valid with plus", "+15550100", false},
		{"valid without plus", "15550100", false},
		{"minimum length", "1234567", false},
		{"empty", "", true},
		{"too short", "+123456", true},
		{"too long", "+" + strings.Repeat("1", 21), true},
		{"letters", "+1555abc0", true},
		{"spaces", "+1 555 0100", true},
		{"only plus", "+", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountID(tt.accountID)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChatID(t *testing.T) {
	assert.NoError(t, ValidateChatID(123))
	assert.NoError(t, ValidateChatID(-1001234567890))
	assert.Error(t, ValidateChatID(0))
}

func TestValidateMessageText(t *testing.T) {
	assert.NoError(t, ValidateMessageText("hello"))
	assert.Error(t, ValidateMessageText(""))
	assert.Error(t, ValidateMessageText(strings.Repeat("a", 4097)))
	assert.NoError(t, ValidateMessageText(strings.Repeat("a", 4096)))
}

func TestValidateVoiceDuration(t *testing.T) {
	assert.NoError(t, ValidateVoiceDuration(0))
	assert.NoError(t, ValidateVoiceDuration(30))
	assert.Error(t, ValidateVoiceDuration(-1))
	assert.Error(t, ValidateVoiceDuration(3601))
}
