package ledger_test

import (
	"encoding/json"
	"testing"

	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/stretchr/testify/require"
)

func TestUserState_JSON(t *testing.T) {
	b, err := json.Marshal(ledger.DefaultUserState())
	require.NoError(t, err)
	require.JSONEq(t, `{"rating":2,"given":0,"received":1}`, string(b))

	b, err = json.Marshal(ledger.UserState{Rating: 3.7977424, Votes: ledger.Votes{Given: 10, Received: 11}})
	require.NoError(t, err)
	require.Equal(t, `{"rating":3.7977424,"given":10,"received":11}`, string(b))
}

func TestTimestamps_JSON(t *testing.T) {
	b, err := json.Marshal(ledger.Timestamps{})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))

	ts := uint64(1700000000000000000)
	b, err = json.Marshal(ledger.Timestamps{TheyRatedAt: &ts})
	require.NoError(t, err)
	require.Equal(t, `{"they_rated_at":1700000000000000000}`, string(b))
}

func TestHistoryKey(t *testing.T) {
	k1 := ledger.HistoryKey("ab", "c")
	k2 := ledger.HistoryKey("a", "bc")
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, ledger.HistoryKey("a", "b"), ledger.HistoryKey("b", "a"))

	rater, ratee, err := ledger.ParseHistoryKey(k2)
	require.NoError(t, err)
	require.EqualValues(t, "a", rater)
	require.EqualValues(t, "bc", ratee)

	_, _, err = ledger.ParseHistoryKey([]byte{5, 'a'})
	require.Error(t, err)
}

func TestDecodeUserState(t *testing.T) {
	_, err := ledger.DecodeUserState([]byte{1, 2, 3})
	require.Error(t, err)
}
