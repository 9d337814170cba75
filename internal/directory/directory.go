// Package directory resolves user ids to display profiles.
package directory

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("directory",
	fx.Provide(NewDirectory),
)

// User is the read model of the shared users table.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	FirstName string       `gorm:"type:text;not null;default:''"`
	LastName  string       `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

type Profile struct {
	ID        snowflake.ID `json:"id"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Email     string       `json:"email"`
}

type Directory interface {
	// Lookup returns profiles for the known ids. Unknown ids are left out.
	Lookup(ctx context.Context, ids []snowflake.ID) ([]Profile, error)
}

type gormDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) Lookup(ctx context.Context, ids []snowflake.ID) ([]Profile, error) {
	unique := make([]snowflake.ID, 0, len(ids))
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []Profile{}, nil
	}

	var users []User
	if err := d.db.WithContext(ctx).
		Where("id IN ?", unique).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, Profile{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	return profiles, nil
}
