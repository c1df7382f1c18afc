package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nspcc-dev/nosedive/dump"
	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
	"github.com/nspcc-dev/nosedive/server"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var registerCommand = cli.Command{
	Name:  "register",
	Usage: "Register the caller with the default rating",
	Flags: callerFlags,
	Action: withCaller(func(ctx *cli.Context, e *env, caller ledger.Identity) error {
		if err := e.svc.Register(caller); err != nil {
			return err
		}
		_, err := fmt.Fprintf(ctx.App.Writer, "%s registered\n", caller)
		return err
	}),
}

var rateCommand = cli.Command{
	Name:      "rate",
	Usage:     "Rate the identity on behalf of the caller",
	ArgsUsage: "<identity> <rating>",
	Flags:     callerFlags,
	Action: withCaller(func(ctx *cli.Context, e *env, caller ledger.Identity) error {
		id, err := identityArg(ctx)
		if err != nil {
			return err
		}

		rating, err := strconv.ParseFloat(ctx.Args().Get(1), 32)
		if err != nil {
			return fmt.Errorf("invalid rating argument: %w", err)
		}

		if err = e.svc.Rate(caller, id, float32(rating)); err != nil {
			return err
		}

		st, err := e.svc.Status(id)
		if err != nil {
			return err
		}
		return printJSON(ctx, st)
	}),
}

var statusCommand = cli.Command{
	Name:      "status",
	Usage:     "Print rating and vote counters of the identity",
	ArgsUsage: "<identity>",
	Action: withEnv(func(ctx *cli.Context, e *env) error {
		id, err := identityArg(ctx)
		if err != nil {
			return err
		}

		st, err := e.svc.Status(id)
		if err != nil {
			return err
		}
		return printJSON(ctx, st)
	}),
}

var timestampsCommand = cli.Command{
	Name:      "timestamps",
	Usage:     "Print times of the latest ratings between the caller and the identity",
	ArgsUsage: "<identity>",
	Flags:     callerFlags,
	Action: withCaller(func(ctx *cli.Context, e *env, caller ledger.Identity) error {
		id, err := identityArg(ctx)
		if err != nil {
			return err
		}

		ts, err := e.svc.RatingTimestamps(caller, id)
		if err != nil {
			return err
		}
		return printJSON(ctx, ts)
	}),
}

var setIntervalCommand = cli.Command{
	Name:  "set-interval",
	Usage: "Replace the throttle policy (administrator only)",
	Flags: append([]cli.Flag{
		cli.BoolFlag{
			Name:  "disable",
			Usage: "Disable throttling",
		},
		cli.Uint64Flag{
			Name:  "cooldown",
			Usage: "Minimal interval in seconds between ratings of the same identity",
			Value: ledgerconst.DefaultCooldownSeconds,
		},
		cli.StringFlag{
			Name:  "message",
			Usage: "Message of the throttled rating error",
			Value: ledgerconst.DefaultRejectionMessage,
		},
	}, callerFlags...),
	Action: withCaller(func(ctx *cli.Context, e *env, caller ledger.Identity) error {
		var patch ledger.SetVotingInterval

		if ctx.Bool("disable") {
			if ctx.IsSet("cooldown") || ctx.IsSet("message") {
				return errors.New("--disable conflicts with --cooldown and --message")
			}
		} else {
			patch.Interval = &ledger.ThrottlePolicy{
				CooldownSeconds:  ctx.Uint64("cooldown"),
				RejectionMessage: ctx.String("message"),
			}
		}

		if err := e.svc.PatchState(caller, []ledger.Patch{patch}); err != nil {
			return err
		}

		p, err := e.svc.Policy()
		if err != nil {
			return err
		}
		return printJSON(ctx, p)
	}),
}

var policyCommand = cli.Command{
	Name:  "policy",
	Usage: "Print the throttle policy in effect",
	Action: withEnv(func(ctx *cli.Context, e *env) error {
		p, err := e.svc.Policy()
		if err != nil {
			return err
		}
		return printJSON(ctx, p)
	}),
}

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "Serve ledger operations over HTTP",
	Action: withEnv(func(_ *cli.Context, e *env) error {
		srv, err := server.New(server.Prm{
			Logger:       e.log,
			Ledger:       e.svc,
			CallerHeader: e.cfg.Server.CallerHeader,
			Gatherer:     e.reg,
		})
		if err != nil {
			return fmt.Errorf("init HTTP server: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return srv.Run(ctx, e.cfg.Server.Listen)
	}),
}

var dumpCommand = cli.Command{
	Name:  "dump",
	Usage: "Dump the ledger state into the directory",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "dir",
			Usage: "Directory to write dump files to",
			Value: "testdata",
		},
		cli.StringFlag{
			Name:  "label",
			Usage: "Label of the dumped environment (e.g. 'testnet')",
		},
	},
	Action: withEnv(func(ctx *cli.Context, e *env) error {
		label := ctx.String("label")
		if label == "" {
			return errors.New("missing --label")
		}

		dir := ctx.String("dir")
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create dump dir: %w", err)
		}

		id := dump.ID{Label: label, Time: time.Now().Unix()}

		c, err := dump.NewCreator(dir, id)
		if err != nil {
			return fmt.Errorf("init dump creator: %w", err)
		}
		defer c.Close()

		if err = e.svc.Dump(c); err != nil {
			return err
		}
		if err = c.Flush(); err != nil {
			return fmt.Errorf("flush dump: %w", err)
		}

		e.log.Info("ledger dumped", zap.String("dir", dir), zap.Stringer("id", id))
		_, err = fmt.Fprintln(ctx.App.Writer, id)
		return err
	}),
}

var restoreCommand = cli.Command{
	Name:  "restore",
	Usage: "Load the dump into the empty ledger",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "dir",
			Usage: "Directory with dump files",
			Value: "testdata",
		},
		cli.StringFlag{
			Name:  "id",
			Usage: "Dump ID printed by the dump command (e.g. 'testnet-1700000000')",
		},
	},
	Action: withEnv(func(ctx *cli.Context, e *env) error {
		want := ctx.String("id")
		if want == "" {
			return errors.New("missing --id")
		}

		var found bool

		err := dump.IterateDumps(ctx.String("dir"), func(id dump.ID, r *dump.Reader) error {
			if id.String() != want {
				return nil
			}
			found = true

			if err := e.svc.Restore(r); err != nil {
				return err
			}

			r.IterateUsers(func(user ledger.Identity, st ledger.UserState) {
				fmt.Fprintf(ctx.App.Writer, "%s %v (given %d, received %d)\n", user, st.Rating, st.Given, st.Received)
			})
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("dump %s not found", want)
		}

		e.log.Info("ledger restored", zap.String("id", want))
		return nil
	}),
}
