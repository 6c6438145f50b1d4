package entity

import (
	"math/bits"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/types"
)

// maxLayoutSize bounds both the byte buffer and each side pool of an
// instance.
const maxLayoutSize = 1 << 32

// slot locates one property of an instance. For fixed-size types offset
// is a byte offset into the buffer; for strings and relations it is the
// index of the first element in the matching side pool.
type slot struct {
	offset int
	count  int
	shape  []int
}

// layout is computed once from metadata and dimension values and never
// changes for the lifetime of the instance.
type layout struct {
	slots []slot
	size  int
	nstrs int
	nrels int
}

func newLayout(m *Metadata, dims []int) (*layout, error) {
	lookup := func(name string) (int, bool) {
		i, ok := m.dimIndex[name]
		if !ok || i >= len(dims) {
			return 0, false
		}
		return dims[i], true
	}

	l := &layout{slots: make([]slot, len(m.props))}
	for i, p := range m.props {
		shape, err := m.resolveShape(i, lookup)
		if err != nil {
			return nil, err
		}
		count, ok := 1, true
		for _, n := range shape {
			if count, ok = mulBounded(count, n); !ok {
				return nil, tooLarge(p.Name, shape)
			}
		}

		s := slot{count: count, shape: shape}
		switch p.Type.Kind {
		case types.KindString:
			s.offset = l.nstrs
			if l.nstrs, ok = addBounded(l.nstrs, count); !ok {
				return nil, tooLarge(p.Name, shape)
			}
		case types.KindRelation:
			s.offset = l.nrels
			if l.nrels, ok = addBounded(l.nrels, count); !ok {
				return nil, tooLarge(p.Name, shape)
			}
		default:
			s.offset = alignUp(l.size, p.Type.Align())
			nbytes, ok := mulBounded(count, p.Type.ElemSize())
			if ok {
				l.size, ok = addBounded(s.offset, nbytes)
			}
			if !ok {
				return nil, tooLarge(p.Name, shape)
			}
		}
		l.slots[i] = s
	}
	return l, nil
}

func tooLarge(prop string, shape []int) error {
	return fault.New(fault.InvalidInput, "property shape exceeds the maximum instance size", prop).
		WithDetail("shape %v", shape)
}

// mulBounded returns a*b for non-negative operands, or false when the
// product exceeds maxLayoutSize.
func mulBounded(a, b int) (int, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > maxLayoutSize {
		return 0, false
	}
	return int(lo), true
}

func addBounded(a, b int) (int, bool) {
	sum := uint64(a) + uint64(b)
	if sum > maxLayoutSize {
		return 0, false
	}
	return int(sum), true
}

func alignUp(off, align int) int {
	if align <= 1 {
		return off
	}
	return (off + align - 1) / align * align
}
