package store

import (
	"sync"

	"teamsched/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

type monthKey struct {
	UserID string
	Month  models.Month
}

// monthCache holds rendered-month inputs. Every invalidation bumps gen so a
// load that started before a write cannot store its stale result afterwards.
type monthCache struct {
	mu    sync.Mutex
	gen   uint64
	users *lru.Cache[monthKey, *models.MonthData]
	team  *lru.Cache[models.Month, *models.TeamMonthData]
}

func newMonthCache(size int) (*monthCache, error) {
	users, err := lru.New[monthKey, *models.MonthData](size)
	if err != nil {
		return nil, err
	}
	team, err := lru.New[models.Month, *models.TeamMonthData](size)
	if err != nil {
		return nil, err
	}
	return &monthCache{users: users, team: team}, nil
}

func (c *monthCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *monthCache) user(key monthKey) (*models.MonthData, bool) {
	return c.users.Get(key)
}

func (c *monthCache) storeUser(key monthKey, data *models.MonthData, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.users.Add(key, data)
	}
}

func (c *monthCache) teamMonth(month models.Month) (*models.TeamMonthData, bool) {
	return c.team.Get(month)
}

func (c *monthCache) storeTeam(month models.Month, data *models.TeamMonthData, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.team.Add(month, data)
	}
}

func (c *monthCache) invalidate(userIDs map[string]bool, team bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if len(userIDs) > 0 {
		for _, key := range c.users.Keys() {
			if userIDs[key.UserID] {
				c.users.Remove(key)
			}
		}
	}
	if team {
		c.team.Purge()
	}
}

// invalidation collects cache writes made inside a transaction until commit.
type invalidation struct {
	users map[string]bool
	team  bool
}

func (i *invalidation) add(userID string, team bool) {
	if i.users == nil {
		i.users = make(map[string]bool)
	}
	if userID != "" {
		i.users[userID] = true
	}
	i.team = i.team || team
}
