package models

import "time"

// Assignment is a catalogue entry students submit code against.
type Assignment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Instructions string    `gorm:"type:text" json:"instructions"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
