package backend

import (
	"encoding/binary"
	"math/bits"
	"net/netip"
)

// Trie is a path-compressed binary prefix tree answering longest-prefix
// containment: does any stored prefix cover the queried address? It stores
// presence only, so overlapping entries collapse.
//
// IPv4 prefixes are stored in the v4-mapped region of the 128-bit key space
// (::ffff:0:0/96), which lets a single tree serve both families without the
// two ever colliding.
type Trie struct {
	root *trieNode
	n    int
}

type trieNode struct {
	key   [16]byte // prefix bits from the root, left aligned, masked
	len   int      // significant bits in key
	term  bool     // a stored prefix ends here
	child [2]*trieNode
}

// NewTrie returns an empty trie.
func NewTrie() *Trie { return &Trie{} }

func (t *Trie) Kind() Kind { return KindTrie }

// Len returns the number of distinct prefixes inserted.
func (t *Trie) Len() int { return t.n }

// Insert adds a prefix. Duplicate inserts are idempotent.
func (t *Trie) Insert(p netip.Prefix) {
	key, plen := prefixKey(p)
	t.root = t.insert(t.root, key, plen)
}

func (t *Trie) insert(n *trieNode, key [16]byte, plen int) *trieNode {
	if n == nil {
		t.n++
		return &trieNode{key: maskKey(key, plen), len: plen, term: true}
	}

	cl := commonLen(n.key, n.len, key, plen)
	if cl == n.len {
		if cl == plen {
			if !n.term {
				n.term = true
				t.n++
			}
			return n
		}
		b := bitAt(key, cl)
		n.child[b] = t.insert(n.child[b], key, plen)
		return n
	}

	// Divergence inside n's compressed path: split at the common length.
	split := &trieNode{key: maskKey(key, cl), len: cl}
	split.child[bitAt(n.key, cl)] = n
	if cl == plen {
		split.term = true
		t.n++
	} else {
		b := bitAt(key, cl)
		split.child[b] = &trieNode{key: maskKey(key, plen), len: plen, term: true}
		t.n++
	}
	return split
}

// ContainsAddr reports whether any stored prefix covers addr.
func (t *Trie) ContainsAddr(addr netip.Addr) bool {
	key := addr.As16()
	for n := t.root; n != nil; {
		if !matchesPrefix(key, n.key, n.len) {
			return false
		}
		if n.term {
			return true
		}
		if n.len == 128 {
			return false
		}
		n = n.child[bitAt(key, n.len)]
	}
	return false
}

// ContainsNum treats n as an IPv4 address in host byte order, converts it to
// network byte order, and performs the containment query.
func (t *Trie) ContainsNum(n uint32) bool {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return t.ContainsAddr(netip.AddrFrom4(b))
}

// ParseTrie builds a trie from line-oriented text: one CIDR or bare address
// per line. Malformed lines are skipped.
func ParseTrie(data []byte) (*Trie, ParseStats) {
	t := NewTrie()
	var st ParseStats
	forEachLine(data, func(line string) {
		p, err := parsePrefixLine(line)
		if err != nil {
			st.Skipped++
			return
		}
		t.Insert(p)
		st.Records++
	})
	return t, st
}

func parsePrefixLine(line string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(line); err == nil {
		return p, nil
	}
	addr, err := netip.ParseAddr(line)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// prefixKey returns the 128-bit key and bit length for a prefix, mapping
// IPv4 into the v4-mapped region.
func prefixKey(p netip.Prefix) ([16]byte, int) {
	p = p.Masked()
	key := p.Addr().As16()
	plen := p.Bits()
	if p.Addr().Is4() {
		plen += 96
	}
	return key, plen
}

func bitAt(k [16]byte, i int) int {
	return int(k[i/8]>>(7-uint(i%8))) & 1
}

func maskKey(k [16]byte, plen int) [16]byte {
	full := plen / 8
	rem := plen % 8
	if rem != 0 {
		k[full] &= 0xff << (8 - uint(rem))
		full++
	}
	for i := full; i < 16; i++ {
		k[i] = 0
	}
	return k
}

// commonLen returns the length of the common prefix of two keys, capped at
// the shorter of the two lengths.
func commonLen(a [16]byte, alen int, b [16]byte, blen int) int {
	max := alen
	if blen < max {
		max = blen
	}
	n := 0
	for i := 0; i < 16 && n < max; i++ {
		x := a[i] ^ b[i]
		if x == 0 {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(x)
		break
	}
	if n > max {
		n = max
	}
	return n
}

// matchesPrefix reports whether key agrees with prefix for its first plen bits.
func matchesPrefix(key, prefix [16]byte, plen int) bool {
	return commonLen(key, plen, prefix, plen) == plen
}
