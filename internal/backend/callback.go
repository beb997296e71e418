package backend

// Callback holds one finalized fetch body verbatim. It performs no parsing;
// the maps package hands the bytes to a consumer-registered handler, which
// owns all further structure.
type Callback struct {
	data []byte
}

// NewCallback wraps a finalized buffer. The buffer is not copied; ownership
// transfers to the new instance.
func NewCallback(data []byte) *Callback {
	return &Callback{data: data}
}

func (c *Callback) Kind() Kind { return KindCallback }

// Len returns the raw byte count.
func (c *Callback) Len() int { return len(c.data) }

// Bytes returns the held buffer. Callers must not retain it past the
// descriptor's next commit without copying.
func (c *Callback) Bytes() []byte { return c.data }
