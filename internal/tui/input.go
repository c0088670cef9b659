package tui

import (
	"strings"
	"unicode/utf8"
)

// maxInputLen is the maximum number of runes allowed in chat and form inputs.
const maxInputLen = 2000

// editRune processes a keystroke for inline text editing.
// Handles backspace (rune-aware) and single printable characters.
// Returns the text unchanged for non-printable keys (enter, esc, etc.).
// Input is clamped to maxInputLen runes.
func editRune(text string, key string) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	case "space":
		key = " "
	}
	if utf8.RuneCountInString(key) == 1 {
		if utf8.RuneCountInString(text) >= maxInputLen {
			return text
		}
		return text + key
	}
	return text
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// renderInput renders a single-line text input with a block cursor when focused.
func renderInput(label, value, placeholder string, focused, masked bool) string {
	shown := value
	if masked {
		shown = strings.Repeat("•", utf8.RuneCountInString(value))
	}
	cursor := " "
	labelStyle := metaStyle
	if focused {
		cursor = accentStyle.Render("█")
		labelStyle = selectedStyle
	}
	prefix := "  "
	if focused {
		prefix = inputPromptStyle.Render("> ")
	}
	if shown == "" && !focused {
		return prefix + labelStyle.Render(label) + "  " + inputPlaceholderStyle.Render(placeholder)
	}
	return prefix + labelStyle.Render(label) + "  " + normalStyle.Render(shown) + cursor
}
