package chatsync

// MediaURLCache maps blob storage paths to signed read URLs. Filling is lazy
// and not deduplicated beyond the populated check; signing is idempotent and
// cheap, so concurrent misses for the same path are acceptable.
type MediaURLCache struct {
	urls map[string]string
}

func NewMediaURLCache() *MediaURLCache {
	return &MediaURLCache{urls: make(map[string]string)}
}

func (c *MediaURLCache) Get(path string) (string, bool) {
	u, ok := c.urls[path]
	return u, ok
}

func (c *MediaURLCache) Put(path, url string) {
	if path == "" || url == "" {
		return
	}
	c.urls[path] = url
}

func (c *MediaURLCache) Evict(path string) {
	delete(c.urls, path)
}

// ReplaceAll swaps in a freshly signed batch, dropping all prior entries.
func (c *MediaURLCache) ReplaceAll(urls map[string]string) {
	c.urls = make(map[string]string, len(urls))
	for p, u := range urls {
		c.Put(p, u)
	}
}

func (c *MediaURLCache) Len() int {
	return len(c.urls)
}
