package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Alp4ka/storypager/pager"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken   = errors.New("email is already taken")
	ErrUserNotFound = errors.New("user not found")
)

// StoryQuery selects one page of stories.
type StoryQuery struct {
	Pager *pager.Pager
	// LocationOnly keeps stories having both coordinates.
	LocationOnly bool
}

// Repo is the persistence used by the handlers.
type Repo interface {
	CreateUser(ctx context.Context, user *User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	CreateStory(ctx context.Context, story *Story) error
	ListStories(ctx context.Context, query StoryQuery) (pager.Result[Story], error)
}

// GormRepo implements Repo on gorm.
type GormRepo struct {
	db *gorm.DB
}

var _ Repo = (*GormRepo)(nil)

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// Migrate creates or updates the server tables.
func (r *GormRepo) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&User{}, &Story{}); err != nil {
		return fmt.Errorf("cannot migrate server tables: %w", err)
	}

	return nil
}

func (r *GormRepo) CreateUser(ctx context.Context, user *User) error {
	var taken int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", user.Email).Count(&taken).Error
	if err != nil {
		return fmt.Errorf("cannot check email: %w", err)
	}
	if taken > 0 {
		return ErrEmailTaken
	}

	err = r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	} else if err != nil {
		return fmt.Errorf("cannot create user: %w", err)
	}

	return nil
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.takeUser(ctx, "email = ?", email)
}

func (r *GormRepo) UserByID(ctx context.Context, id string) (User, error) {
	return r.takeUser(ctx, "id = ?", id)
}

func (r *GormRepo) takeUser(ctx context.Context, cond string, arg any) (User, error) {
	var user User

	err := r.db.WithContext(ctx).Where(cond, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	} else if err != nil {
		return User{}, fmt.Errorf("cannot load user: %w", err)
	}

	return user, nil
}

func (r *GormRepo) CreateStory(ctx context.Context, story *Story) error {
	if err := r.db.WithContext(ctx).Create(story).Error; err != nil {
		return fmt.Errorf("cannot create story: %w", err)
	}

	return nil
}

// ListStories runs the paginated story query.
func (r *GormRepo) ListStories(ctx context.Context, query StoryQuery) (pager.Result[Story], error) {
	db := r.db.Model(&Story{})
	if query.LocationOnly {
		db = db.Where("lat IS NOT NULL AND lon IS NOT NULL")
	}

	return pager.Find[Story](ctx, db, query.Pager)
}
