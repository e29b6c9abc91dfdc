package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeNetwork, "connection reset")
	assert.Equal(t, "network error: connection reset", err.Error())

	err = WithCode(ErrorTypeAuth, 401, "token rejected")
	assert.Equal(t, "auth error (code 401): token rejected", err.Error())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeParsing, TypeOf(New(ErrorTypeParsing, "bad json")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain error")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))

	wrapped := fmt.Errorf("tick failed: %w", New(ErrorTypeAuth, "expired"))
	assert.Equal(t, ErrorTypeAuth, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeAuth))
}

func TestIsTickScoped(t *testing.T) {
	assert.True(t, IsTickScoped(ErrorTypeNetwork))
	assert.True(t, IsTickScoped(ErrorTypeParsing))
	assert.False(t, IsTickScoped(ErrorTypeAuth))
	assert.False(t, IsTickScoped(ErrorTypeConfig))
}

func TestTypeFromStatusCode(t *testing.T) {
	assert.Equal(t, ErrorTypeNetwork, TypeFromStatusCode(0))
	assert.Equal(t, ErrorTypeAuth, TypeFromStatusCode(401))
	assert.Equal(t, ErrorTypeAuth, TypeFromStatusCode(403))
	assert.Equal(t, ErrorTypeNetwork, TypeFromStatusCode(502))
	assert.Equal(t, ErrorTypeUnknown, TypeFromStatusCode(404))
	assert.Equal(t, ErrorTypeUnknown, TypeFromStatusCode(200))
}
