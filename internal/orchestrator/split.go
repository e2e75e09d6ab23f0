package orchestrator

import "strings"

// splitMessage breaks text into chunks no larger than MaxMessageLength,
// preferring to split on a newline, falling back to a space, and forcing a
// split at the window boundary when neither delimiter appears late enough
// in the window to avoid pathologically short chunks.
func splitMessage(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= MaxMessageLength {
			chunks = append(chunks, text)
			break
		}

		window := text[:MaxMessageLength]
		splitAt := -1

		if idx := strings.LastIndexByte(window, '\n'); idx >= 0 && idx >= MaxMessageLength*30/100 {
			splitAt = idx
		} else if idx := strings.LastIndexByte(window, ' '); idx >= 0 && idx >= MaxMessageLength*30/100 {
			splitAt = idx
		}

		if splitAt < 0 {
			splitAt = MaxMessageLength
			chunks = append(chunks, text[:splitAt])
			text = text[splitAt:]
			continue
		}

		chunks = append(chunks, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " \t\n")
	}
	return chunks
}
