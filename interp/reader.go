package interp

import (
	"encoding/binary"
	"math"
)

// reader decodes one instruction at a time from a raw code buffer (§6:
// "opcode-byte + operands"). Grounded in the pack's ion package convention
// of decoding fixed-width fields straight off a byte slice via
// encoding/binary rather than a buffered io.Reader — there is no streaming
// source here, just a []byte the module loader already materialized.
type reader struct {
	code []byte
	pc   uint32
}

func newReader(code []byte, pc uint32) *reader {
	return &reader{code: code, pc: pc}
}

func (r *reader) done() bool { return int(r.pc) >= len(r.code) }

// op reads the next opcode byte.
func (r *reader) op() Op {
	b := r.code[r.pc]
	r.pc++
	return Op(b)
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.code[r.pc:])
	r.pc += 4
	return v
}

func (r *reader) i64() int64 {
	v := binary.LittleEndian.Uint64(r.code[r.pc:])
	r.pc += 8
	return int64(v)
}

func (r *reader) f64() float64 {
	v := binary.LittleEndian.Uint64(r.code[r.pc:])
	r.pc += 8
	return math.Float64frombits(v)
}

// local reads a 2-byte local-slot index (§6: "local-index (2 bytes)").
func (r *reader) local() uint16 {
	v := binary.LittleEndian.Uint16(r.code[r.pc:])
	r.pc += 2
	return v
}
