package utils

// CountTokens estimates prompt size at roughly four characters per token.
// Any non-empty text counts as at least one token.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if n := len([]rune(text)) / 4; n > 0 {
		return n
	}
	return 1
}
