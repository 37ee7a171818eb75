package graph

// IDSet is a sparse set of small non-negative object identifiers, stored as
// a growable bitmap. Membership, add and remove are O(1); there is no
// ordering.
type IDSet struct {
	bits  []byte
	items int
}

// Add inserts id and reports whether it was newly added. Adding a present id
// is a no-op returning false.
func (s *IDSet) Add(id uint32) bool {
	pos := id >> 3
	mask := byte(1) << (id & 0x7)

	if int(pos) >= len(s.bits) {
		grown := make([]byte, int(pos)+16)
		copy(grown, s.bits)
		s.bits = grown
	}

	if s.bits[pos]&mask != 0 {
		return false
	}
	s.bits[pos] |= mask
	s.items++
	return true
}

// Remove deletes id and reports whether it was present.
func (s *IDSet) Remove(id uint32) bool {
	pos := id >> 3
	mask := byte(1) << (id & 0x7)

	if int(pos) >= len(s.bits) || s.bits[pos]&mask == 0 {
		return false
	}
	s.bits[pos] &^= mask
	s.items--
	return true
}

// Contains reports whether id is in the set.
func (s *IDSet) Contains(id uint32) bool {
	pos := id >> 3
	return int(pos) < len(s.bits) && s.bits[pos]&(1<<(id&0x7)) != 0
}

// Len returns the number of ids in the set.
func (s *IDSet) Len() int {
	return s.items
}
