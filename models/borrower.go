package models

import "time"

type Student struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	Grade     string    `gorm:"size:32" json:"grade,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StaffMember struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null;index" json:"name"`
	Department string    `gorm:"size:120" json:"department,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Student) TableName() string     { return "lib_students" }
func (StaffMember) TableName() string { return "lib_staff" }
