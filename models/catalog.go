// models/catalog.go
package models

import "time"

const TitleTable = "lib_titles"
const CopyTable = "lib_title_copies"

type Title struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string      `gorm:"size:255;not null" json:"displayName"`
	Copies      []TitleCopy `gorm:"foreignKey:TitleID;constraint:OnDelete:CASCADE" json:"copies,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// TitleCopy is one physical copy; Code is unique within its title only.
type TitleCopy struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	TitleID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_title_copy_code" json:"titleId"`
	Code      string    `gorm:"size:120;not null;uniqueIndex:idx_title_copy_code" json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Title) TableName() string     { return TitleTable }
func (TitleCopy) TableName() string { return CopyTable }
