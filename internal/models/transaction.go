package models

import "time"

// Transaction is a single registered real-estate sale.
type Transaction struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	TransactionNumber string    `json:"transaction_number" gorm:"uniqueIndex;not null"`
	Area              string    `json:"area" gorm:"index"`
	PropertyType      string    `json:"property_type"`
	Bedrooms          string    `json:"bedrooms"`
	Price             float64   `json:"price"`
	Date              time.Time `json:"date" gorm:"index"`
	OffPlan           bool      `json:"off_plan"`
	RegistrationType  string    `json:"registration_type"`
	Size              *float64  `json:"size"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	CreatedAt         time.Time `json:"created_at"`
}

// PricePerSqm returns the price per square meter, or false when the
// transaction carries no usable size.
func (t *Transaction) PricePerSqm() (float64, bool) {
	if t.Size == nil || *t.Size <= 0 {
		return 0, false
	}
	return t.Price / *t.Size, true
}

// HasCoordinates reports whether both latitude and longitude are set.
func (t *Transaction) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}
