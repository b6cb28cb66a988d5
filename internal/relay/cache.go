package relay

import "sync"

// lru caches fetched payloads bounded by total byte size.
type lru struct {
	mu   sync.Mutex
	max  int64
	size int64
	m    map[string]*entry
	head *entry
	tail *entry
}

type entry struct {
	key        string
	data       []byte
	mime       string
	prev, next *entry
}

func newLRU(max int64) *lru {
	if max <= 0 {
		return nil
	}
	return &lru{max: max, m: map[string]*entry{}}
}

func (c *lru) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *lru) pushFront(e *entry) {
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lru) get(key string) ([]byte, string, bool) {
	if c == nil {
		return nil, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, "", false
	}
	c.unlink(e)
	c.pushFront(e)
	return append([]byte(nil), e.data...), e.mime, true
}

func (c *lru) put(key string, data []byte, mime string) {
	if c == nil || int64(len(data)) > c.max {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.m[key]; ok {
		c.size -= int64(len(e.data))
		c.unlink(e)
		delete(c.m, key)
	}
	e := &entry{key: key, data: append([]byte(nil), data...), mime: mime}
	c.pushFront(e)
	c.m[key] = e
	c.size += int64(len(data))
	for c.size > c.max && c.tail != nil {
		old := c.tail
		c.unlink(old)
		delete(c.m, old.key)
		c.size -= int64(len(old.data))
	}
}

func (c *lru) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
