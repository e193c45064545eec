package tracker

import "time"

// idGenerator hands out millisecond timestamps, bumped past the previous id
// when two tasks are created within the same millisecond.
type idGenerator struct {
	now  func() time.Time
	last int64
}

func (g *idGenerator) next() int64 {
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// observe makes sure future ids are greater than id.
func (g *idGenerator) observe(id int64) {
	if id > g.last {
		g.last = id
	}
}
