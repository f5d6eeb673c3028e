// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"fmt"
	"sync"

	"github.com/Fantom-foundation/stf/go/stf"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxBlockHashDepth is the number of most recent ancestors whose hashes are
// accessible to executed code.
const MaxBlockHashDepth = 256

// History provides access to the headers of past blocks.
type History interface {
	// Header returns the header with the given hash, if known.
	Header(hash stf.Hash) (Header, bool)
	// ParentOf returns the parent of the given header, if known.
	ParentOf(header Header) (Header, bool)
	// AncestorAtDepth returns the ancestor of the given header that is depth
	// generations older. Depth 0 is the header itself.
	AncestorAtDepth(header Header, depth int) (Header, bool)
	// ForBlock provides the block hashes visible to the transactions of a
	// block with the given header.
	ForBlock(header Header) stf.ChainHistory
}

type ancestorKey struct {
	parent stf.Hash
	number int64
}

// MemoryHistory is a History keeping all headers in memory. Resolved block
// hashes are cached. It is safe for concurrent use.
type MemoryHistory struct {
	mutex   sync.Mutex
	headers map[stf.Hash]Header
	cache   *lru.Cache[ancestorKey, stf.Hash]
}

const defaultHistoryCacheSize = 1 << 14

// NewMemoryHistory creates an empty history. If cacheSize is 0, a default
// size is used.
func NewMemoryHistory(cacheSize int) (*MemoryHistory, error) {
	if cacheSize == 0 {
		cacheSize = defaultHistoryCacheSize
	}
	cache, err := lru.New[ancestorKey, stf.Hash](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create block hash cache: %w", err)
	}
	return &MemoryHistory{
		headers: map[stf.Hash]Header{},
		cache:   cache,
	}, nil
}

// Add registers a header and returns its hash.
func (h *MemoryHistory) Add(header Header) stf.Hash {
	hash := header.Hash()
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.headers[hash] = header
	return hash
}

func (h *MemoryHistory) Header(hash stf.Hash) (Header, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	header, found := h.headers[hash]
	return header, found
}

func (h *MemoryHistory) ParentOf(header Header) (Header, bool) {
	if header.Number == 0 {
		return Header{}, false
	}
	return h.Header(header.ParentHash)
}

func (h *MemoryHistory) AncestorAtDepth(header Header, depth int) (Header, bool) {
	if depth < 0 || int64(depth) > header.Number {
		return Header{}, false
	}
	current := header
	for i := 0; i < depth; i++ {
		parent, found := h.ParentOf(current)
		if !found {
			return Header{}, false
		}
		current = parent
	}
	return current, true
}

func (h *MemoryHistory) ForBlock(header Header) stf.ChainHistory {
	return &blockHashes{history: h, head: header}
}

// blockHashes resolves the hashes of the ancestors of the head block.
type blockHashes struct {
	history *MemoryHistory
	head    Header
}

func (b *blockHashes) GetBlockHash(number int64) stf.Hash {
	if number < 0 || number >= b.head.Number || number < b.head.Number-MaxBlockHashDepth {
		return stf.Hash{}
	}

	key := ancestorKey{parent: b.head.ParentHash, number: number}
	if hash, found := b.history.cache.Get(key); found {
		return hash
	}

	parent, found := b.history.Header(b.head.ParentHash)
	if !found {
		log.Warnf("unknown parent %v of block %d", b.head.ParentHash, b.head.Number)
		return stf.Hash{}
	}
	ancestor, found := b.history.AncestorAtDepth(parent, int(parent.Number-number))
	if !found {
		return stf.Hash{}
	}
	hash := ancestor.Hash()
	b.history.cache.Add(key, hash)
	return hash
}
