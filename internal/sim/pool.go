package sim

import (
	"sync"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// SnapshotPool recycles body snapshot buffers for streaming runs.
type SnapshotPool struct {
	pool sync.Pool
	size int
}

func NewSnapshotPool(bodies int) *SnapshotPool {
	return &SnapshotPool{
		size: bodies,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]dynamo.Snapshot, 0, bodies)
			},
		},
	}
}

func (p *SnapshotPool) Get() []dynamo.Snapshot {
	return p.pool.Get().([]dynamo.Snapshot)[:0]
}

func (p *SnapshotPool) Put(s []dynamo.Snapshot) {
	if cap(s) >= p.size {
		clear(s)
		p.pool.Put(s[:0])
	}
}

// Capture snapshots bodies into a pooled buffer.
func (p *SnapshotPool) Capture(bodies []*dynamo.Body) []dynamo.Snapshot {
	dst := p.Get()
	for _, b := range bodies {
		dst = append(dst, b.Snapshot())
	}
	return dst
}
