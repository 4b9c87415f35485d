package noisesocket

import "encoding/binary"

// Reinitialization tags, exactly the ASCII octets fixed by spec §4.3/§6.
// Each is 16 bytes, no terminator.
const (
	tagInit1 = "NoiseSocketInit1" // initial protocol, no switch/retry
	tagInit2 = "NoiseSocketInit2" // responder switched protocol
	tagInit3 = "NoiseSocketInit3" // responder requested a retry
)

// prologueAccumulator records, in order, the raw octet sequence that must
// be fed to Noise as the prologue once the handshake state is finally
// instantiated (§4.3). It is a side observer during the handshake phase:
// every write/read/ignore of negotiation data or a noise message appends
// to it, and freeze snapshots it at the moment the handshake state is
// built. Appends continue after a freeze (see append).
//
// Per §9's "duplicated packet body" design note, messages are copied
// (not borrowed) here so the accumulator's contents are independent of
// whatever buffer the caller reused for the wire write.
type prologueAccumulator struct {
	messages [][]byte
	frozen   bool
}

func newPrologueAccumulator() *prologueAccumulator {
	return &prologueAccumulator{}
}

// append records a copy of msg. The ledger never stops growing: it is a
// running log of every negotiation_data and noise_message byte string
// this session has locally observed (sent or received), in order. What
// varies across Accept/Switch/Retry is not whether a byte string gets
// logged, but WHEN freeze() is called relative to a given append — the
// call sites in handshake.go are responsible for freezing before logging
// the very message a new handshake state is about to consume, so that
// message is correctly excluded from its own prologue while remaining
// available to a later reinitialization's prologue (§4.3's table).
func (p *prologueAccumulator) append(msg []byte) {
	if p == nil {
		return
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	p.messages = append(p.messages, cp)
}

// freeze returns the prologue bytes built from tag, every message logged
// so far (each length-prefixed with be16), and the application prologue
// appended last, per the §4.3 formula:
//
//	prologue_bytes = TAG || foreach m: be16(len(m)) || m || application_prologue
//
// The result is a snapshot: later appends do not retroactively change
// bytes already returned by an earlier freeze.
func (p *prologueAccumulator) freeze(tag string, applicationPrologue []byte) []byte {
	out := make([]byte, 0, len(tag)+len(applicationPrologue)+32)
	out = append(out, tag...)
	if p != nil {
		for _, m := range p.messages {
			var lenBuf [2]byte
			binary.BigEndian.PutUint16(lenBuf[:], uint16(len(m)))
			out = append(out, lenBuf[:]...)
			out = append(out, m...)
		}
		p.frozen = true
	}
	out = append(out, applicationPrologue...)
	return out
}

// isFrozen reports whether freeze has been called at least once since
// construction or the last reopen, for callers that want to distinguish
// "no handshake state has ever been built yet" from "one has".
func (p *prologueAccumulator) isFrozen() bool {
	return p == nil || p.frozen
}

// reopen clears the isFrozen bookkeeping left by a discarded handshake
// state. It does not touch the logged messages — those keep counting
// toward the next freeze, per §4.3's table of exactly which messages each
// reinitialization case accumulates.
func (p *prologueAccumulator) reopen() {
	if p != nil {
		p.frozen = false
	}
}
