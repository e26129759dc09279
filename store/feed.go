package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Alp4ka/storypager"
	"github.com/Alp4ka/storypager/pager"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type feedEntry struct {
	Position    int    `gorm:"primaryKey;autoIncrement:false"`
	StoryID     string `gorm:"size:64;not null"`
	Name        string
	Description string
	PhotoURL    string
	PostedAt    time.Time
	Lat         *float64
	Lon         *float64
}

func (feedEntry) TableName() string {
	return "feed_entries"
}

func entryFromItem(item storypager.Item, position int) feedEntry {
	return feedEntry{
		Position:    position,
		StoryID:     item.ID,
		Name:        item.Name,
		Description: item.Description,
		PhotoURL:    item.PhotoURL,
		PostedAt:    item.CreatedAt,
		Lat:         item.Lat,
		Lon:         item.Lon,
	}
}

func (e feedEntry) toItem() storypager.Item {
	return storypager.Item{
		ID:          e.StoryID,
		Name:        e.Name,
		Description: e.Description,
		PhotoURL:    e.PhotoURL,
		CreatedAt:   e.PostedAt,
		Lat:         e.Lat,
		Lon:         e.Lon,
	}
}

// FeedCache keeps the newest loaded stories for offline listing.
type FeedCache struct {
	db *gorm.DB
}

func NewFeedCache(db *gorm.DB) *FeedCache {
	return &FeedCache{db: db}
}

// Replace swaps the cached feed for items, keeping their order.
func (c *FeedCache) Replace(ctx context.Context, items []storypager.Item) error {
	entries := lo.Map(items, func(item storypager.Item, i int) feedEntry {
		return entryFromItem(item, i+1)
	})

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&feedEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		return tx.Create(&entries).Error
	})
	if err != nil {
		return fmt.Errorf("cannot replace feed cache: %w", err)
	}

	return nil
}

// List returns up to limit cached stories in feed order. limit is normalized
// with pager.NormalizePageSize.
func (c *FeedCache) List(ctx context.Context, limit int) ([]storypager.Item, error) {
	p := pager.NewPager().
		WithPageSize(limit).
		WithSubstitutedSort(pager.OrderBy{Column: "position", Direction: pager.DirectionASC})

	res, err := pager.Find[feedEntry](ctx, c.db.Model(&feedEntry{}), p)
	if err != nil {
		return nil, fmt.Errorf("cannot list feed cache: %w", err)
	}

	return lo.Map(res.Items, func(e feedEntry, _ int) storypager.Item {
		return e.toItem()
	}), nil
}
