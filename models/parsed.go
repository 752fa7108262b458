package models

// SearchQuery beschreibt eine PubMed-Suche mit inklusivem Datumsbereich.
// Die Daten kommen im Format YYYY/MM/DD oder YYYY.
type SearchQuery struct {
	Term    string `json:"term"`
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// MeshTerm bindet Descriptor-Name und UI-Code eines MeSH-Eintrags zusammen.
// Beide Felder werden in einem Durchlauf extrahiert, damit die Zuordnung auch
// bei fehlenden Werten nicht verrutscht.
type MeshTerm struct {
	Name string `json:"name"`
	UI   string `json:"ui"`
}

// ParsedArticle ist das Ergebnis des Parsens eines einzelnen efetch-Dokuments.
// Fehlende optionale Felder werden als leerer String geführt, nie als Fehler.
// Nach dem Parsen wird die Struktur nicht mehr verändert.
type ParsedArticle struct {
	PMID string

	// DatePublish ist "{Jahr}-{Monat oder Saison}" und darf partiell sein
	// (z.B. "2020-" ohne Monat).
	DatePublish string
	// DateArticle und DatePubMed sind vollständige Kalenderdaten (YYYY-MM-DD)
	// oder leer, wenn die Konvertierung fehlschlägt.
	DateArticle string
	DatePubMed  string

	Title string
	// Abstract enthält die englischsprachigen Abschnitte, per Newline
	// verbunden; gelabelte Abschnitte tragen den Separator-Platzhalter.
	Abstract string

	Authors      string
	JournalTitle string
	DOI          string
	Language     string
	Status       string

	Keywords  []string
	MeshTerms []MeshTerm
}
