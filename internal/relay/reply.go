package relay

// TruncateReply cuts s to maxChars code points and appends ellipsis.
// Strings within the limit are returned unchanged. Counting runes keeps
// multi-byte characters whole.
func TruncateReply(s string, maxChars int, ellipsis string) (string, bool) {
	if maxChars <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	return string(runes[:maxChars]) + ellipsis, true
}
