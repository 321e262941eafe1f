package utils

// Token estimates are used only for warnings and for trimming execution
// transcripts before they are sent back to the model.

// CountTokens estimates the number of tokens in text, assuming ~4 characters per token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within limit tokens.
// The kept head is followed by a marker line when anything was dropped.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	const marker = "\n... (output truncated)\n"
	keep := charLimit - len(marker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + marker
}
