package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/edusuite/usafiri/core/student"
	"github.com/edusuite/usafiri/storage/database"
)

type studentRepository struct {
	db *gorm.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *gorm.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	std.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&std).Error; err != nil {
		if database.IsDuplicate(err) {
			return student.Student{}, student.ErrRollNoExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	var std student.Student
	if err := repo.db.WithContext(ctx).First(&std, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return std, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context) ([]student.Student, error) {
	var students []student.Student
	if err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&students).Error; err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}
