package middleware

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/verveo/todo-generator/internal/models"
)

const (
	// DefaultUserCacheSize bounds the number of cached users
	DefaultUserCacheSize = 1024
	// DefaultUserCacheTTL is how long a loaded user is trusted without a database read
	DefaultUserCacheTTL = time.Minute
)

// UserCache keeps recently authenticated users in memory. A nil cache is a no-op.
type UserCache struct {
	lru *expirable.LRU[int64, *models.User]
}

// NewUserCache creates a user cache.
func NewUserCache(size int, ttl time.Duration) *UserCache {
	if size <= 0 {
		size = DefaultUserCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultUserCacheTTL
	}
	return &UserCache{lru: expirable.NewLRU[int64, *models.User](size, nil, ttl)}
}

// Get returns the cached user for id.
func (c *UserCache) Get(id int64) (*models.User, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(id)
}

// Add caches user under its id.
func (c *UserCache) Add(user *models.User) {
	if c == nil || user == nil {
		return
	}
	c.lru.Add(user.ID, user)
}

// Remove evicts id.
func (c *UserCache) Remove(id int64) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}

// Len reports the number of cached users.
func (c *UserCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
