package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tr := New(language.Make("zh-CN"))

	tests := []struct {
		header string
		want   string
	}{
		{"", "zh-CN"},
		{"en-US,en;q=0.9", "en"},
		{"zh-CN,zh;q=0.9", "zh-CN"},
		{"zh-TW", "zh-TW"},
		{"fr-FR", "zh-CN"},
		{"de;q=0.9, en;q=0.5", "en"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Match(tt.header).String(), "header %q", tt.header)
	}
}

func TestFallbackResolvesToSupportedLanguage(t *testing.T) {
	assert.Equal(t, "en", New(language.Make("en-GB")).Fallback().String())
	assert.Equal(t, "en", New(language.Make("ja")).Fallback().String())
	assert.Equal(t, "zh-CN", New(language.Make("zh-CN")).Fallback().String())
}

func TestLocalize(t *testing.T) {
	tr := New(language.Make("zh-CN"))

	assert.Equal(t, "当前操作过于频繁，请稍后再试！", tr.Localize("", KeyTooManyRequests))
	assert.Equal(t, "Too many requests, please try again later.", tr.Localize("en", KeyTooManyRequests))
	assert.Equal(t, "Too many files, at most 5 allowed.", tr.Localize("en", KeyTooManyFiles, 5))
}

func TestEveryLanguageHasEveryKey(t *testing.T) {
	reference := messages[0].entries

	for _, m := range messages[1:] {
		for key := range reference {
			assert.Contains(t, m.entries, key, "%s missing %s", m.tag, key)
		}
	}
}
