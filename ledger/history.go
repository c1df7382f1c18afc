package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/io"
)

// history maps ordered (rater, ratee) pairs to the time of the latest rating.
type history struct {
	ratings partition
}

// HistoryKey returns key of the (rater, ratee) record without the partition
// prefix. Both parts are length-prefixed so that different pairs never
// collide.
func HistoryKey(rater, ratee Identity) []byte {
	w := io.NewBufBinWriter()
	w.WriteVarBytes([]byte(rater))
	w.WriteVarBytes([]byte(ratee))
	return w.Bytes()
}

// ParseHistoryKey is the inverse of HistoryKey.
func ParseHistoryKey(k []byte) (Identity, Identity, error) {
	r := io.NewBinReaderFromBuf(k)
	rater := r.ReadVarBytes()
	ratee := r.ReadVarBytes()
	if r.Err != nil {
		return "", "", r.Err
	}
	return Identity(rater), Identity(ratee), nil
}

// last returns time of the latest rating of ratee by rater and flag whether
// there was any.
func (h history) last(rater, ratee Identity) (uint64, bool, error) {
	v, ok, err := h.ratings.get(HistoryKey(rater, ratee))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("invalid history record of [%s]->[%s]: %d bytes", rater, ratee, len(v))
	}
	return binary.LittleEndian.Uint64(v), true, nil
}

func (h history) record(rater, ratee Identity, at uint64) {
	v := make([]byte, 8)
	binary.LittleEndian.PutUint64(v, at)
	h.ratings.set(HistoryKey(rater, ratee), v)
}
