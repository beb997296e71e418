package maps

import (
	"bytes"

	"github.com/google/uuid"

	"refmap/internal/keysig"
)

// Accumulator collects chunked content for one in-flight fetch cycle. It
// never outlives its cycle: Finalize and Abort both drop it.
type Accumulator struct {
	buf bytes.Buffer
}

func (a *Accumulator) Append(chunk []byte) {
	a.buf.Write(chunk)
}

func (a *Accumulator) Len() int { return a.buf.Len() }

// take returns the accumulated bytes, transferring ownership to the caller.
func (a *Accumulator) take() []byte {
	b := a.buf.Bytes()
	a.buf = bytes.Buffer{}
	return b
}

// Cycle is the state of one fetch attempt, owned by the external fetch
// driver. The first Deliver of a cycle allocates the accumulator; exactly
// one Finalize (or Abort) ends the cycle.
type Cycle struct {
	id  string
	acc *Accumulator
	sig keysig.Signature
}

// NewCycle starts a fresh fetch cycle for the descriptor.
func (d *Descriptor) NewCycle() *Cycle {
	return &Cycle{id: uuid.NewString()}
}

// AttachSignature supplies the detached signature the driver fetched
// alongside the content. Must be called before Finalize; ignored for maps
// without a trusted key.
func (c *Cycle) AttachSignature(sig keysig.Signature) {
	c.sig = sig
}

// ID returns the cycle's log-correlation ID.
func (c *Cycle) ID() string { return c.id }
