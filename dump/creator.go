package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
)

// Creator dumps states of the rating ledger. Output file format:
//
//	'<label>-<time>-users.json': JSON array of decoded user records
//	'<label>-<time>-storage.csv': CSV of the ledger storage
//
// Storage CSV are 'partition,key,value' where partition stands for the
// ledger partition name (users, history, policy) and binary key (without
// partition prefix) and value are base64-encoded.
//
// Use IterateDumps to access existing dumps.
type Creator struct {
	dumpStreams

	users []dumpUser

	storageItemsCSV *csv.Writer
}

// NewCreator returns Creator which dumps the ledger into given directory. The
// dump is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists or if the ID label
// is empty or contains '-'.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := id.checkLabel()
	if err != nil {
		return nil, err
	}

	err = initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.storageItemsCSV = csv.NewWriter(res.dumpStreams.storageItems)

	return &res, nil
}

// Write saves given ledger storage item into the dump. Key must include the
// partition prefix. User records are additionally decoded into the JSON file,
// history records are checked to be well-formed.
// After all items are written, they should be flushed via Flush method.
func (x *Creator) Write(key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("empty storage key")
	}

	name, ok := partitionNames[key[0]]
	if !ok {
		return fmt.Errorf("unknown storage partition 0x%02x", key[0])
	}

	switch key[0] {
	case ledgerconst.UsersPrefix:
		st, err := ledger.DecodeUserState(value)
		if err != nil {
			return fmt.Errorf("decode user record '%s': %w", key[1:], err)
		}

		x.users = append(x.users, dumpUser{
			Identity: ledger.Identity(key[1:]),
			State:    st,
		})
	case ledgerconst.HistoryPrefix:
		_, _, err := ledger.ParseHistoryKey(key[1:])
		if err != nil {
			return fmt.Errorf("decode history record key: %w", err)
		}
		if len(value) != 8 {
			return fmt.Errorf("invalid history record length %d", len(value))
		}
	}

	err := x.storageItemsCSV.Write([]string{
		name,
		_encoding.EncodeToString(key[1:]),
		_encoding.EncodeToString(value),
	})
	if err != nil {
		return fmt.Errorf("write storage item as CSV data: %w", err)
	}

	return nil
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.users)
	jEnc.SetIndent("", " ")

	users := x.users
	if users == nil {
		users = []dumpUser{}
	}

	err := jEnc.Encode(users)
	if err != nil {
		return fmt.Errorf("encode users to JSON: %w", err)
	}

	x.storageItemsCSV.Flush()

	err = x.storageItemsCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() {
	x.close()
}
