package translate

import "strings"

// Chunk zerlegt text in Stücke von höchstens max Bytes. Getrennt wird
// bevorzugt am letzten Leerzeichen innerhalb des Limits; nur wenn gar kein
// Leerzeichen im Fenster liegt, wird hart geschnitten. Die Ränder der Stücke
// werden getrimmt. Leerer Input ergibt eine leere Liste.
func Chunk(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	var chunks []string
	for text != "" {
		if len(text) <= max {
			chunks = append(chunks, strings.TrimSpace(text))
			break
		}
		idx := strings.LastIndex(text[:max], " ") + 1
		if idx == 0 {
			idx = max
		}
		chunks = append(chunks, strings.TrimSpace(text[:idx]))
		text = text[idx:]
	}
	return chunks
}
