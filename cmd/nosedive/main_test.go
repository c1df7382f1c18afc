package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestMain(m *testing.M) {
	// exit errors are returned from App.Run instead of terminating the process
	cli.OsExiter = func(int) {}
	cli.ErrWriter = io.Discard
	os.Exit(m.Run())
}

type testCLI struct {
	cfgPath string
	dir     string
}

func newTestCLI(t *testing.T) *testCLI {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")

	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
admin: admin
storage:
  Type: boltdb
  BoltDBOptions:
    FilePath: %s
logger:
  level: error
`, filepath.Join(dir, "ledger.bolt"))), 0600))

	return &testCLI{cfgPath: cfgPath, dir: dir}
}

func (c *testCLI) run(args ...string) (string, error) {
	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"nosedive", "--config", c.cfgPath}, args...))
	return strings.TrimSpace(out.String()), err
}

func TestCLI(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run("register", "--caller", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice registered", out)

	_, err = c.run("register", "--caller", "alice")
	require.ErrorContains(t, err, "already been registered")

	_, err = c.run("register")
	require.ErrorContains(t, err, "missing caller")

	_, err = c.run("register", "--caller", "bob")
	require.NoError(t, err)

	out, err = c.run("rate", "--caller", "bob", "alice", "4.5")
	require.NoError(t, err)
	require.JSONEq(t, `{"rating":2.625,"given":0,"received":2}`, out)

	_, err = c.run("rate", "--caller", "bob", "alice", "4.5")
	require.ErrorContains(t, err, "try again later")

	_, err = c.run("rate", "--caller", "bob", "alice", "many")
	require.ErrorContains(t, err, "invalid rating argument")

	out, err = c.run("status", "bob")
	require.NoError(t, err)
	require.JSONEq(t, `{"rating":2,"given":1,"received":1}`, out)

	out, err = c.run("timestamps", "--caller", "alice", "bob")
	require.NoError(t, err)
	require.Contains(t, out, "they_rated_at")
	require.NotContains(t, out, "you_rated_at")

	_, err = c.run("set-interval", "--caller", "bob", "--disable")
	require.ErrorContains(t, err, "administrator")

	out, err = c.run("set-interval", "--caller", "admin", "--cooldown", "0")
	require.NoError(t, err)
	require.JSONEq(t, `{"cooldown_seconds":0,"rejection_message":"you have rated this account recently, try again later"}`, out)

	_, err = c.run("rate", "--caller", "bob", "alice", "4.5")
	require.NoError(t, err)

	_, err = c.run("set-interval", "--caller", "admin", "--disable", "--cooldown", "5")
	require.Error(t, err)

	_, err = c.run("set-interval", "--caller", "admin", "--disable")
	require.NoError(t, err)

	out, err = c.run("policy")
	require.NoError(t, err)
	require.Equal(t, "null", out)
}

func TestCLI_Wallet(t *testing.T) {
	c := newTestCLI(t)

	walletPath := filepath.Join(c.dir, "wallet.json")
	w, err := wallet.NewWallet(walletPath)
	require.NoError(t, err)

	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	w.AddAccount(acc)
	require.NoError(t, w.Save())
	w.Close()

	out, err := c.run("register", "--wallet", walletPath)
	require.NoError(t, err)
	require.Equal(t, acc.Address+" registered", out)

	out, err = c.run("status", acc.Address)
	require.NoError(t, err)
	require.JSONEq(t, `{"rating":2,"given":0,"received":1}`, out)

	_, err = c.run("register", "--wallet", walletPath, "--caller", "alice")
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestCLI_DumpRestore(t *testing.T) {
	src := newTestCLI(t)

	for _, id := range []string{"alice", "bob"} {
		_, err := src.run("register", "--caller", id)
		require.NoError(t, err)
	}
	_, err := src.run("rate", "--caller", "alice", "bob", "5")
	require.NoError(t, err)

	dumpDir := filepath.Join(src.dir, "dumps")

	_, err = src.run("dump", "--dir", dumpDir)
	require.ErrorContains(t, err, "missing --label")

	_, err = src.run("dump", "--dir", dumpDir, "--label", "my-test")
	require.ErrorContains(t, err, "forbidden")

	id, err := src.run("dump", "--dir", dumpDir, "--label", "test")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "test-"))

	dst := newTestCLI(t)

	_, err = dst.run("restore", "--dir", dumpDir, "--id", "test-1")
	require.ErrorContains(t, err, "not found")

	out, err := dst.run("restore", "--dir", dumpDir, "--id", id)
	require.NoError(t, err)
	require.Contains(t, out, "alice 2 (given 1, received 1)")
	require.Contains(t, out, "bob 2.75 (given 0, received 2)")

	out, err = dst.run("status", "bob")
	require.NoError(t, err)
	require.JSONEq(t, `{"rating":2.75,"given":0,"received":2}`, out)

	_, err = dst.run("restore", "--dir", dumpDir, "--id", id)
	require.Error(t, err)
}

func TestCLI_Config(t *testing.T) {
	app := newApp()
	app.Writer = new(bytes.Buffer)
	app.ErrWriter = new(bytes.Buffer)

	require.ErrorContains(t, app.Run([]string{"nosedive", "policy"}), "missing --config")
}
