package pubmed

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"pubmed-digest/models"
	"pubmed-digest/translate"
)

// sep trennt Autoren, Keywords und MeSH-Namen in den zusammengefügten Feldern.
const sep = ", "

// LanguageDetector ist die vom Parser benötigte Erkennungsschnittstelle.
type LanguageDetector interface {
	Detect(text string) string
}

// Parser extrahiert strukturierte Felder aus einem einzelnen PubmedArticle-
// Element. Fehlende optionale Felder werden durch leere Strings ersetzt;
// der Parser liefert nie einen Fehler pro Dokument.
type Parser struct {
	Detector LanguageDetector
	Logger   *zap.Logger
}

// NewParser erstellt einen neuen Dokument-Parser.
func NewParser(detector LanguageDetector, logger *zap.Logger) *Parser {
	return &Parser{Detector: detector, Logger: logger}
}

// Parse wandelt ein rohes Artikel-Dokument in ein ParsedArticle um.
func (p *Parser) Parse(article *etree.Element) models.ParsedArticle {
	pmid := textFromNode(article, "MedlineCitation/PMID", "")

	// Publikationsdatum: Jahr plus Saison, sonst Jahr plus Monat. Auch bei
	// fehlendem Teil entsteht ein partieller String, kein Fehler.
	year := textFromNode(article, "MedlineCitation/Article/Journal/JournalIssue/PubDate/Year", "")
	month := textFromNode(article, "MedlineCitation/Article/Journal/JournalIssue/PubDate/Season", "")
	if month == "" {
		month = textFromNode(article, "MedlineCitation/Article/Journal/JournalIssue/PubDate/Month", "")
	}
	datePublish := year + "-" + month

	dateArticle := toCalendarDate(
		textFromNode(article, "MedlineCitation/Article/ArticleDate/Year", ""),
		textFromNode(article, "MedlineCitation/Article/ArticleDate/Month", ""),
		textFromNode(article, "MedlineCitation/Article/ArticleDate/Day", ""),
	)
	if dateArticle == "" && article.FindElement("MedlineCitation/Article/ArticleDate") != nil {
		p.Logger.Warn("ArticleDate nicht konvertierbar", zap.String("pmid", pmid))
	}

	// PubMed-History-Datum ist reine Best-Effort-Metadatenpflege, daher ohne
	// Logging bei Ausfall.
	datePubMed := toCalendarDate(
		textFromNode(article, "PubmedData/History/PubMedPubDate[@PubStatus='pubmed']/Year", ""),
		textFromNode(article, "PubmedData/History/PubMedPubDate[@PubStatus='pubmed']/Month", ""),
		textFromNode(article, "PubmedData/History/PubMedPubDate[@PubStatus='pubmed']/Day", ""),
	)

	var title string
	if titleEl := article.FindElement("MedlineCitation/Article/ArticleTitle"); titleEl != nil {
		title = strings.TrimSpace(html.UnescapeString(allText(titleEl)))
	}

	var authors []string
	for _, author := range article.FindElements("MedlineCitation/Article/AuthorList/*") {
		if collective := author.FindElement("CollectiveName"); collective != nil {
			authors = append(authors, collective.Text())
			continue
		}
		fore := textFromNode(author, "ForeName", "")
		last := textFromNode(author, "LastName", "")
		authors = append(authors, fore+" "+last)
	}

	var keywords []string
	for _, kw := range article.FindElements("MedlineCitation/KeywordList/*") {
		// Fehlender Text wird als leerer String geführt, nicht übersprungen.
		keywords = append(keywords, kw.Text())
	}

	// Name und UI-Code je MeSH-Eintrag in einem Durchlauf, damit die
	// Zuordnung bei fehlenden Werten nicht auseinanderläuft.
	var meshTerms []models.MeshTerm
	for _, mesh := range article.FindElements("MedlineCitation/MeshHeadingList/*") {
		meshTerms = append(meshTerms, models.MeshTerm{
			Name: textFromNode(mesh, "DescriptorName", ""),
			UI:   attrFromNode(mesh, "DescriptorName", "UI", ""),
		})
	}

	return models.ParsedArticle{
		PMID:         pmid,
		DatePublish:  datePublish,
		DateArticle:  dateArticle,
		DatePubMed:   datePubMed,
		Title:        title,
		Abstract:     p.abstractSections(article),
		Authors:      strings.Join(authors, sep),
		JournalTitle: textFromNode(article, "MedlineCitation/Article/Journal/Title", ""),
		DOI:          textFromNode(article, "MedlineCitation/Article/ELocationID[@EIdType='doi']", ""),
		Language:     textFromNode(article, "MedlineCitation/Article/Language", ""),
		Status:       textFromNode(article, "PubmedData/PublicationStatus", ""),
		Keywords:     keywords,
		MeshTerms:    meshTerms,
	}
}

// abstractSections sammelt die englischsprachigen Abstract-Abschnitte und
// verbindet sie per Newline. Abschnitte mit Label oder NlmCategory bekommen
// den Separator-Platzhalter vorangestellt (Label hat Vorrang).
func (p *Parser) abstractSections(article *etree.Element) string {
	var parts []string
	for _, section := range article.FindElements(".//AbstractText") {
		label := section.SelectAttrValue("Label", "")
		category := section.SelectAttrValue("NlmCategory", "")
		text := strings.TrimSpace(html.UnescapeString(allText(section)))

		if strings.TrimSpace(section.Text()) != "" {
			if p.Detector.Detect(text) != "en" {
				continue
			}
			switch {
			case label != "":
				parts = append(parts, fmt.Sprintf("%s  %s  %s", label, translate.ColonToken, text))
			case category != "":
				parts = append(parts, fmt.Sprintf("%s  %s  %s", category, translate.ColonToken, text))
			default:
				parts = append(parts, text)
			}
			continue
		}

		// Abschnitt ohne direkten Text, aber mit strukturiertem Inhalt:
		// sichtbaren Text der Kinder einsammeln, ohne Label-Präfix.
		if text == "" || p.Detector.Detect(text) != "en" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// toCalendarDate baut aus drei Integer-Strings ein gültiges Kalenderdatum
// (YYYY-MM-DD). Jeder Parse- oder Konstruktionsfehler ergibt einen leeren
// String.
func toCalendarDate(year, month, day string) string {
	y, err := strconv.Atoi(year)
	if err != nil {
		return ""
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return ""
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalisiert Überläufe (z.B. 31. Februar); das gilt hier als
	// ungültiges Datum.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return ""
	}
	return t.Format("2006-01-02")
}

// textFromNode gibt den Text des Elements unter path zurück, oder fill.
func textFromNode(el *etree.Element, path, fill string) string {
	node := el.FindElement(path)
	if node == nil || node.Text() == "" {
		return fill
	}
	return node.Text()
}

// attrFromNode gibt das Attribut attrib des Elements unter path zurück, oder fill.
func attrFromNode(el *etree.Element, path, attrib, fill string) string {
	node := el.FindElement(path)
	if node == nil {
		return fill
	}
	if v := node.SelectAttrValue(attrib, ""); v != "" {
		return v
	}
	return fill
}

// allText konkateniert alle Textknoten unterhalb von el, Markup wird
// verworfen.
func allText(el *etree.Element) string {
	var sb strings.Builder
	for _, child := range el.Child {
		switch node := child.(type) {
		case *etree.CharData:
			sb.WriteString(node.Data)
		case *etree.Element:
			sb.WriteString(allText(node))
		}
	}
	return sb.String()
}
