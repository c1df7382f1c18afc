package dump

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
)

// ID is a unique identifier of the dump prepared according to the model
// described in the current package.
type ID struct {
	// Label of the dump source (e.g. prod, staging). Must not contain '-'.
	Label string
	// Unix time in seconds at which the state was pulled.
	Time int64
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatInt(x.Time, 10)
}

// checkLabel checks that the label can be decoded back from the dump file
// name.
func (x ID) checkLabel() error {
	switch {
	case x.Label == "":
		return errors.New("empty dump label")
	case strings.Contains(x.Label, sep):
		return fmt.Errorf("dump label '%s' contains forbidden '%s'", x.Label, sep)
	}
	return nil
}

// DecodeString decodes ID fields from the hyphen-separated string. Trailing
// hyphen-separated parts are ignored.
func (x *ID) DecodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 2 {
		return fmt.Errorf("expected '%s'-separated string with at least 2 items", sep)
	}

	n, err := strconv.ParseInt(ss[1], 10, 64)
	if err != nil {
		return fmt.Errorf("decode time from '%s': %w", ss[1], err)
	}

	x.Label = ss[0]
	x.Time = n

	return nil
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// names of the ledger storage partitions in the CSV dump.
var partitionNames = map[byte]string{
	ledgerconst.UsersPrefix:   "users",
	ledgerconst.HistoryPrefix: "history",
	ledgerconst.PolicyKey:     "policy",
}

func partitionByName(name string) (byte, bool) {
	for p, n := range partitionNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// dumpUser is a JSON-encoded user record.
type dumpUser struct {
	Identity ledger.Identity  `json:"identity"`
	State    ledger.UserState `json:"state"`
}

// dumpStreams groups data streams for users and storage items.
type dumpStreams struct {
	users, storageItems io.ReadWriteCloser
}

// close closes all streams.
func (x *dumpStreams) close() {
	_ = x.storageItems.Close()
	_ = x.users.Close()
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with decoded users
	usersFileSuffix = "users.json"
	// suffix of file with raw storage items
	storageFileSuffix = "storage.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathStorage := filepath.Join(dir, strings.Join([]string{id.String(), storageFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathStorage); err != nil {
			return err
		}
	}

	pathUsers := filepath.Join(dir, strings.Join([]string{id.String(), usersFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathUsers); err != nil {
			return err
		}
	}

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.storageItems, err = os.OpenFile(pathStorage, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with storage items: %w", err)
	}

	d.users, err = os.OpenFile(pathUsers, flag, perm)
	if err != nil {
		_ = d.storageItems.Close()
		return fmt.Errorf("open file with users: %w", err)
	}

	return nil
}
