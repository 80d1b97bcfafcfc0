package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
)

var (
	ErrNotFound     = errors.New("student not found")
	ErrRollNoExists = errors.New("a student with this roll number already exists")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// QueryStudents returns all students, newest first.
		QueryStudents(ctx context.Context) ([]Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		Name:          core.CleanString(ns.Name),
		RollNo:        core.CleanString(ns.RollNo),
		Grade:         core.CleanString(ns.Grade),
		ContactNumber: ns.ContactNumber,
		Address:       ns.Address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	std, err := svc.repo.CreateStudent(ctx, std)
	if err != nil {
		if errors.Cause(err) == ErrRollNoExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "rollNo", Error: err.Error()})
		}
		return Student{}, err
	}
	return std, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx)
}
