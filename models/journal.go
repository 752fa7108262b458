package models

// Journal repräsentiert eine Fachzeitschrift im kanonischen Register.
// Der Impact Factor bleibt 0, bis er über den Bulk-Endpoint gesetzt wird.
type Journal struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"uniqueIndex;not null"`
	ImpactFactor float64 `json:"impact_factor" gorm:"default:0"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Journal) TableName() string {
	return "journals"
}
