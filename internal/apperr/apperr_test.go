package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"validation", Validation("tax_id", "bad"), CodeValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("ementa")), CodeNotFound},
		{"access denied", AccessDenied("confidential"), CodeAccessDenied},
		{"plain error", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(CodeDuplicate, "number already exists", ErrDuplicate)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, Is(err, CodeDuplicate))
	assert.False(t, Is(nil, CodeDuplicate))
}

func TestFieldsOf(t *testing.T) {
	err := fmt.Errorf("save: %w", Invalid(map[string]string{"title": "required", "type": "invalid"}))
	assert.Equal(t, map[string]string{"title": "required", "type": "invalid"}, FieldsOf(err))
	assert.Nil(t, FieldsOf(errors.New("x")))
	assert.Equal(t, "required", Invalid(map[string]string{"title": "required"}).Message)
}

func TestErrorTextDoesNotRepeatCause(t *testing.T) {
	cause := errors.New("CPF must have 11 digits")
	err := FieldError("cpf", cause)
	assert.Equal(t, "validation: CPF must have 11 digits", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, map[string]string{"cpf": "CPF must have 11 digits"}, err.Fields)

	wrapped := Wrap(CodeInternal, "failed to save", cause)
	assert.Equal(t, "internal: failed to save: CPF must have 11 digits", wrapped.Error())
}
