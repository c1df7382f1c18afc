package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/nosedive/ledger"
)

// IterateDumps iterates over all ledger dumps collected by the Creator model
// in the specified directory, and passes ID and Reader of each dump into f.
// IterateDumps breaks on any f's error and returns it.
func IterateDumps(dir string, f func(ID, *Reader) error) error {
	var id ID
	var r Reader
	var streams dumpStreams

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}

		if e != nil {
			return e
		}

		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()

		if !strings.HasSuffix(name, usersFileSuffix) {
			return nil
		}

		err := id.DecodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", name, err)
		}

		err = initDumpStreams(&streams, dir, id, true)
		if err != nil {
			return fmt.Errorf("init dump streams ('%s'): %w", name, err)
		}

		err = r.fromDumpStreams(streams.users, streams.storageItems)

		streams.close()

		if err != nil {
			return fmt.Errorf("init dump reader ('%s'): %w", name, err)
		}

		return f(id, &r)
	})
}

type kv struct{ k, v []byte }

// Reader reads ledger state collected in the superior dump.
type Reader struct {
	users []dumpUser
	items []kv
}

func (x *Reader) fromDumpStreams(rUsers, rStorageItems io.Reader) error {
	x.users = x.users[:0]
	x.items = x.items[:0]

	err := json.NewDecoder(rUsers).Decode(&x.users)
	if err != nil {
		return fmt.Errorf("decode users from JSON: %w", err)
	}

	var rec []string
	var key []byte
	var _kv kv

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 3
	_csv.ReuseRecord = true

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		prefix, ok := partitionByName(rec[0])
		if !ok {
			return fmt.Errorf("unknown storage partition '%s'", rec[0])
		}

		key, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		_kv.k = append([]byte{prefix}, key...)

		_kv.v, err = _encoding.DecodeString(rec[2])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.items = append(x.items, _kv)
	}
}

// IterateUsers iterates over all user records from the superior dump and
// passes them into f.
func (x *Reader) IterateUsers(f func(ledger.Identity, ledger.UserState)) {
	for i := range x.users {
		f(x.users[i].Identity, x.users[i].State)
	}
}

// IterateStorage iterates over all storage items from the superior dump and
// passes them into f. Keys include partition prefix.
func (x *Reader) IterateStorage(f func(key, value []byte)) {
	for i := range x.items {
		f(x.items[i].k, x.items[i].v)
	}
}
