package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short untouched", in: "Software Engineer", max: 200, want: "Software Engineer"},
		{name: "exact length untouched", in: "abcde", max: 5, want: "abcde"},
		{name: "ascii cut", in: "abcdef", max: 5, want: "abcd…"},
		{name: "multi-byte title stays valid", in: "Ingénieur Logiciel — Débutant", max: 12, want: "Ingénieur L…"},
		{name: "cjk cut on rune boundary", in: "ソフトウェアエンジニア", max: 5, want: "ソフトウ…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.False(t, strings.ContainsRune(got, utf8.RuneError))
		})
	}
}
