package instance

import (
	"errors"
	"fmt"
)

// DefaultPageSize is the linear memory page size.
const DefaultPageSize = 65536

// Memory is a page-granular linear memory. Bytes added by Grow are zero.
type Memory interface {
	// Data returns the live image. The slice is invalidated by Grow.
	Data() []byte
	Pages() uint32
	PageSize() uint64
	Grow(delta uint32) error
}

// ErrMemoryLimit is returned when growth would exceed the maximum page count.
var ErrMemoryLimit = errors.New("instance: memory page limit exceeded")

// MemoryInstance is an in-memory Memory.
type MemoryInstance struct {
	data     []byte
	pageSize uint64
	pages    uint32
	maxPages uint32
}

// NewMemory allocates pages zeroed pages. maxPages of zero means unbounded.
func NewMemory(pageSize uint64, pages, maxPages uint32) (*MemoryInstance, error) {
	if pageSize == 0 {
		return nil, fmt.Errorf("instance: page size must be positive")
	}
	if maxPages > 0 && pages > maxPages {
		return nil, fmt.Errorf("%w: %d > %d", ErrMemoryLimit, pages, maxPages)
	}
	return &MemoryInstance{
		data:     make([]byte, uint64(pages)*pageSize),
		pageSize: pageSize,
		pages:    pages,
		maxPages: maxPages,
	}, nil
}

func (m *MemoryInstance) Data() []byte     { return m.data }
func (m *MemoryInstance) Pages() uint32    { return m.pages }
func (m *MemoryInstance) PageSize() uint64 { return m.pageSize }

func (m *MemoryInstance) Grow(delta uint32) error {
	if delta == 0 {
		return nil
	}
	next := uint64(m.pages) + uint64(delta)
	if next > uint64(^uint32(0)) || (m.maxPages > 0 && next > uint64(m.maxPages)) {
		return fmt.Errorf("%w: %d + %d", ErrMemoryLimit, m.pages, delta)
	}
	grown := make([]byte, next*m.pageSize)
	copy(grown, m.data)
	m.data = grown
	m.pages = uint32(next)
	return nil
}

// PagesFor returns the number of whole pages needed to hold n bytes.
func PagesFor(n, pageSize uint64) uint64 {
	return (n + pageSize - 1) / pageSize
}

// EnsureSize grows mem until it holds at least n bytes.
func EnsureSize(mem Memory, n uint64) error {
	need := PagesFor(n, mem.PageSize())
	have := uint64(mem.Pages())
	if need <= have {
		return nil
	}
	if need-have > uint64(^uint32(0)) {
		return fmt.Errorf("%w: need %d pages", ErrMemoryLimit, need)
	}
	return mem.Grow(uint32(need - have))
}
