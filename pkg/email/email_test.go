package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jane.doe@bank.example", Normalize("  Jane.Doe@Bank.EXAMPLE "))
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"officer@bank.example", true},
		{"", false},
		{"not-an-address", false},
		{"Jane <jane@bank.example>", false},
		{strings.Repeat("a", MaxLen) + "@x.io", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValid(tt.address))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", DisplayName("jane.doe@bank.example"))
	assert.Equal(t, "Compliance User", DisplayName("compliance@bank.example"))
	assert.Equal(t, "A Officer", DisplayName("a_b-officer@bank.example"))
}
