package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
	"github.com/edusuite/usafiri/storage/database"
)

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := repo.db.WithContext(ctx).Model(&user.User{}).Where("email = ?", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&usr).Error; err != nil {
		if database.IsDuplicate(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := repo.db.WithContext(ctx)
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where("id = ?", filter.ID)
	} else if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	} else {
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := q.First(&usr).Error; err != nil {
		if database.IsNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, int64, error) {
	q := repo.db.WithContext(ctx).Model(&user.User{})

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", val, val)
		}
		if filter.Role != "" {
			q = q.Where("role = ?", filter.Role)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.IsVerified != nil {
			q = q.Where("is_verified = ?", *filter.IsVerified)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	if len(ordering) > 0 {
		for _, ord := range ordering {
			q = q.Order(ord.String())
		}
	} else {
		q = q.Order("created_at DESC")
	}
	if filter != nil && filter.Limit > 0 {
		q = q.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
	}

	var users []user.User
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return users, total, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, id string, values map[string]interface{}) (user.User, error) {
	res := repo.db.WithContext(ctx).Model(&user.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		if database.IsDuplicate(res.Error) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(res.Error, "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: id})
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	res := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&user.User{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting users")
	}
	return int(res.RowsAffected), nil
}
