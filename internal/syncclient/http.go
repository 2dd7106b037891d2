package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Resources are the reads a client repeats on every refresh signal.
var Resources = map[string]string{
	"me":      "/members/me",
	"chores":  "/chores",
	"rewards": "/rewards",
	"events":  "/dashboard/events",
	"alerts":  "/dashboard/alerts",
	"league":  "/dashboard/league-table",
}

// Cache holds the latest body of each resource.
type Cache struct {
	mu      sync.RWMutex
	data    map[string]json.RawMessage
	updated time.Time
}

func NewCache() *Cache {
	return &Cache{data: make(map[string]json.RawMessage)}
}

func (c *Cache) set(name string, body json.RawMessage) {
	c.mu.Lock()
	c.data[name] = body
	c.updated = time.Now()
	c.mu.Unlock()
}

// Get returns the cached body for name, or nil.
func (c *Cache) Get(name string) json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[name]
}

func (c *Cache) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// HTTPFetches builds one Fetch per resource that GETs baseURL+path and
// stores the body in cache.
func HTTPFetches(baseURL string, header http.Header, hc *http.Client, cache *Cache) []Fetch {
	if hc == nil {
		hc = http.DefaultClient
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	fetches := make([]Fetch, 0, len(Resources))
	for name, path := range Resources {
		fetches = append(fetches, Fetch{
			Name: name,
			Fn: func(ctx context.Context) error {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
				if err != nil {
					return err
				}
				for k, v := range header {
					req.Header[k] = v
				}
				resp, err := hc.Do(req)
				if err != nil {
					return err
				}
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				if resp.StatusCode != http.StatusOK {
					return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
				}
				cache.set(name, json.RawMessage(body))
				return nil
			},
		})
	}
	return fetches
}
