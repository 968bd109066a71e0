// models/loan.go
package models

import "time"

const StudentLoanTable = "lib_student_loans"
const StaffLoanTable = "lib_staff_loans"

// StudentLoan always carries an explicit status.
type StudentLoan struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	TitleID    string     `gorm:"type:uuid;index;not null" json:"titleId"`
	CopyCode   string     `gorm:"size:120;not null" json:"copyCode"`
	StudentID  string     `gorm:"type:uuid;index;not null" json:"studentId"`
	OpenedAt   time.Time  `gorm:"index;not null" json:"openedAt"`
	DueAt      time.Time  `gorm:"index;not null" json:"dueAt"`
	Status     string     `gorm:"size:16;index;not null;default:'open'" json:"status"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
	RenewedAt  *time.Time `json:"renewedAt,omitempty"`

	Finished bool   `gorm:"not null;default:false" json:"finished"`
	Rating   int    `gorm:"not null;default:0" json:"rating,omitempty"`
	Comment  string `gorm:"size:500" json:"comment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StaffLoan rows written before the status column existed have Status and
// DueAt NULL; such a row is open until it gets a ReturnedAt.
type StaffLoan struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	TitleID    string     `gorm:"type:uuid;index;not null" json:"titleId"`
	CopyCode   string     `gorm:"size:120;not null" json:"copyCode"`
	StaffID    string     `gorm:"type:uuid;index;not null" json:"staffId"`
	OpenedAt   time.Time  `gorm:"index;not null" json:"openedAt"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	Status     *string    `gorm:"size:16;index" json:"status,omitempty"`
	ReturnedAt *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	RenewedAt  *time.Time `json:"renewedAt,omitempty"`

	Finished bool   `gorm:"not null;default:false" json:"finished"`
	Rating   int    `gorm:"not null;default:0" json:"rating,omitempty"`
	Comment  string `gorm:"size:500" json:"comment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StudentLoan) TableName() string { return StudentLoanTable }
func (StaffLoan) TableName() string   { return StaffLoanTable }
