package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article repräsentiert einen übersetzten, persistierten Artikel-Datensatz.
// Der Bestand wird vor jeder neuen Suche komplett ersetzt, nicht inkrementell
// aktualisiert.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PMID        string `json:"pmid" gorm:"column:pmid;uniqueIndex;not null;default:''"`
	DatePublish string `json:"date_publish"`
	Title       string `json:"title" gorm:"type:text"`
	Authors     string `json:"authors,omitempty" gorm:"type:text"`
	Abstract    string `json:"abstract,omitempty" gorm:"type:text"`

	JournalID uint    `json:"journal_id" gorm:"index"`
	Journal   Journal `json:"journal"`

	// DOI als vollständiger Link (https://doi.org/...), leer wenn unbekannt.
	DOI string `json:"doi,omitempty" gorm:"column:doi"`

	Keywords  datatypes.JSON `json:"keywords,omitempty" gorm:"type:jsonb"`
	MeshTerms datatypes.JSON `json:"mesh_terms,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}
