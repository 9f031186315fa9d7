package middleware

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   \n\t"))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", 100001)))
	assert.Error(t, ValidateMessageContent("bad\xff"))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(uuid.New().String()))
	assert.Error(t, ValidateID("not-a-uuid"))
	assert.Error(t, ValidateID(""))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("invoice"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName(strings.Repeat("x", 257)))
}
