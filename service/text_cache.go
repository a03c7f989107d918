package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/buraksezer/olric"
	log "github.com/sirupsen/logrus"
)

type DocumentText struct {
	Pages       []string          `json:"pages"`
	FailedPages []view.FailedPage `json:"failed_pages,omitempty"`
}

// TextCache keeps extracted document text by content hash. Failures are logged and treated as a miss.
type TextCache interface {
	Get(ctx context.Context, hash string) (*DocumentText, bool)
	Put(ctx context.Context, hash string, text DocumentText)
}

const DocumentTextDMapName = "document-text"

func NewOlricTextCache(op client.OlricProvider, ttl time.Duration) TextCache {
	return &olricTextCacheImpl{op: op, ttl: ttl}
}

type olricTextCacheImpl struct {
	op   client.OlricProvider
	ttl  time.Duration
	once sync.Once
	dm   *olric.DMap
}

func (c *olricTextCacheImpl) dmap() *olric.DMap {
	c.once.Do(func() {
		dm, err := c.op.Get().NewDMap(DocumentTextDMapName)
		if err != nil {
			log.Errorf("Failed to create DMap %s: %s", DocumentTextDMapName, err.Error())
			return
		}
		c.dm = dm
	})
	return c.dm
}

func (c *olricTextCacheImpl) Get(ctx context.Context, hash string) (*DocumentText, bool) {
	dm := c.dmap()
	if dm == nil {
		return nil, false
	}
	value, err := dm.Get(hash)
	if err != nil {
		if !errors.Is(err, olric.ErrKeyNotFound) {
			log.Warnf("Failed to read document text cache: %s", err)
		}
		return nil, false
	}
	str, ok := value.(string)
	if !ok {
		return nil, false
	}
	var text DocumentText
	if err = json.Unmarshal([]byte(str), &text); err != nil {
		log.Warnf("Failed to decode cached document text: %s", err)
		return nil, false
	}
	return &text, true
}

func (c *olricTextCacheImpl) Put(ctx context.Context, hash string, text DocumentText) {
	dm := c.dmap()
	if dm == nil {
		return
	}
	data, err := json.Marshal(text)
	if err != nil {
		return
	}
	if err = dm.PutEx(hash, string(data), c.ttl); err != nil {
		log.Warnf("Failed to store document text in cache: %s", err)
	}
}

// NoTextCache is used when caching is not available.
type NoTextCache struct{}

func (NoTextCache) Get(ctx context.Context, hash string) (*DocumentText, bool) {
	return nil, false
}

func (NoTextCache) Put(ctx context.Context, hash string, text DocumentText) {}
