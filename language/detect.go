// Package language kapselt die Spracherkennung für Abstract-Abschnitte.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector klassifiziert kurze Textspannen nach Sprache. Die Erkennung ist
// rein beratend: Jeder interne Fehler ergibt einen leeren Code, nie einen
// Fehlerwert.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector baut einen Detector über alle unterstützten Sprachen.
func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
	}
}

// Detect gibt den ISO-639-1-Code (klein geschrieben) zurück, oder "" wenn
// der Text zu kurz oder zu mehrdeutig ist.
func (d *Detector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
