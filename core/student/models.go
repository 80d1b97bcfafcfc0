package student

import "time"

type Student struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string    `json:"name" gorm:"not null"`
	RollNo        string    `json:"rollNo" gorm:"uniqueIndex;not null"`
	Grade         string    `json:"grade" gorm:"not null"`
	ContactNumber string    `json:"contactNumber,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Student) TableName() string { return "students" }

// NewStudent contains information needed to register a new Student.
// Student records are immutable once created.
type NewStudent struct {
	Name          string `json:"name" validate:"required"`
	RollNo        string `json:"rollNo" validate:"required"`
	Grade         string `json:"grade" validate:"required"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}
