package taxid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"formatted cpf", "123.456.789-01", "12345678901", false},
		{"bare cpf", "12345678901", "12345678901", false},
		{"formatted cnpj", "12.345.678/0001-95", "12345678000195", false},
		{"too short", "1234", "", true},
		{"twelve digits", "123456789012", "", true},
		{"empty", "", "", true},
		{"letters only", "abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "123.456.789-01", Format("12345678901"))
	assert.Equal(t, "12.345.678/0001-95", Format("12345678000195"))
	assert.Equal(t, "123.456.789-01", Format("123.456.789-01"))
	assert.Equal(t, "1234", Format("1234"))
}

func TestKinds(t *testing.T) {
	assert.True(t, IsCPF("123.456.789-01"))
	assert.False(t, IsCPF("12345678000195"))
	assert.True(t, IsCNPJ("12.345.678/0001-95"))
}
