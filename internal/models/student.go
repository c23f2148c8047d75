package models

import "time"

// Student blocks.
const (
	BlockFour = 4
	BlockSix  = 6
)

// Student is a roster entry. StudentCode is the school-issued identifier.
type Student struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StudentCode    string    `gorm:"size:64;uniqueIndex;not null" json:"student_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Block          int       `gorm:"not null;default:4" json:"block"`
	GithubUsername *string   `gorm:"size:255;uniqueIndex" json:"github_username"`
	IsApproved     bool      `gorm:"not null;default:false" json:"is_approved"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ValidBlock reports whether block is one of the supported class blocks.
func ValidBlock(block int) bool {
	return block == BlockFour || block == BlockSix
}
