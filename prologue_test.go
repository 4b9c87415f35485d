package noisesocket

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrologueAccumulatorFreeze(t *testing.T) {
	acc := newPrologueAccumulator()
	acc.append([]byte("neg"))
	acc.append([]byte("noise"))

	got := acc.freeze(tagInit1, []byte("app"))

	want := []byte(tagInit1)
	want = append(want, be16(3)...)
	want = append(want, "neg"...)
	want = append(want, be16(5)...)
	want = append(want, "noise"...)
	want = append(want, "app"...)

	assert.Equal(t, want, got)
	assert.True(t, acc.isFrozen())
}

// TestPrologueAccumulatorLedgerSurvivesFreeze verifies the ledger keeps
// growing across a freeze: a later reinitialization's prologue must still
// see messages logged before the earlier handshake state was built,
// exactly the property Switch/Retry rely on (§4.3's accumulated-messages
// table).
func TestPrologueAccumulatorLedgerSurvivesFreeze(t *testing.T) {
	acc := newPrologueAccumulator()
	acc.append([]byte("one"))
	first := acc.freeze(tagInit1, nil)
	assert.Equal(t, append([]byte(tagInit1), append(be16(3), "one"...)...), first)

	acc.reopen()
	assert.False(t, acc.isFrozen())
	acc.append([]byte("two"))

	got := acc.freeze(tagInit2, nil)
	want := []byte(tagInit2)
	want = append(want, be16(3)...)
	want = append(want, "one"...)
	want = append(want, be16(3)...)
	want = append(want, "two"...)
	assert.Equal(t, want, got)
}

func be16(n uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], n)
	return b[:]
}
