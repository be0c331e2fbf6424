package explorer

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

// blockCache memoizes fetched blocks by height and by hash. A nil cache is
// valid and never hits.
type blockCache struct {
	blocks *lru.Cache[string, *model.Block]
}

func newBlockCache(size int) (*blockCache, error) {
	if size <= 0 {
		return nil, nil
	}
	blocks, err := lru.New[string, *model.Block](size)
	if err != nil {
		return nil, err
	}
	return &blockCache{blocks: blocks}, nil
}

func heightKey(height uint64) string {
	return "h:" + strconv.FormatUint(height, 10)
}

func hashKey(hash string) string {
	return "x:" + hash
}

func queryKey(q model.BlockQuery) string {
	if q.ByHash() {
		return hashKey(q.Hash)
	}
	return heightKey(q.Height)
}

func (c *blockCache) get(q model.BlockQuery) (*model.Block, bool) {
	if c == nil {
		return nil, false
	}
	return c.blocks.Get(queryKey(q))
}

func (c *blockCache) add(block *model.Block) {
	if c == nil || block == nil {
		return
	}
	c.blocks.Add(heightKey(block.Height), block)
	if block.Hash != "" {
		c.blocks.Add(hashKey(block.Hash), block)
	}
}

func (c *blockCache) len() int {
	if c == nil {
		return 0
	}
	return c.blocks.Len()
}
