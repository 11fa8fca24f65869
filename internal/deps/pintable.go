package deps

// hashSizes are the capacities the runtime's pinned-array hash table may be
// created with, each a prime near a power of two.
var hashSizes = []int{
	3, 3, 7, 11, 19, 43, 67, 139, 263, 523, 1031, 2063, 4099, 8219, 16411,
	32779, 65539, 131111, 262147, 524347, 1048583, 2097211, 4194319, 8388619,
	16777259, 33554467, 67108879, 134217779, 268435459, 536870923, 1073741827,
}

const initialHashIdx = 4

// PinTable sizes the table of primitive arrays pinned by one native method.
// The table stays at most half full with one entry per pinning site.
type PinTable struct {
	sites int
	idx   int
}

// NewPinTable returns the sizing state for a method with no sites yet.
func NewPinTable() PinTable {
	return PinTable{idx: initialHashIdx}
}

// Add records one more pinning site.
func (p *PinTable) Add() {
	p.sites++
	if p.sites*2 > hashSizes[p.idx] && p.idx < len(hashSizes)-1 {
		p.idx++
	}
}

// Sites returns the number of recorded sites.
func (p PinTable) Sites() int { return p.sites }

// Index returns the position of the chosen size in the size table.
func (p PinTable) Index() int { return p.idx }

// Size returns the number of hash slots to allocate.
func (p PinTable) Size() int { return hashSizes[p.idx] }

// HighWater returns the fill level at which the runtime grows the table.
func (p PinTable) HighWater() int { return int(float64(p.Size()) * 0.75) }
