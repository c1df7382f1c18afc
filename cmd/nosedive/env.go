package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/nosedive/config"
	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var callerFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "caller",
		Usage: "Identity of the caller",
	},
	cli.StringFlag{
		Name:  "wallet, w",
		Usage: "Path to the NEP-6 wallet: address of its first account is the caller identity",
	},
}

// env is a ledger service opened from the configuration file.
type env struct {
	cfg config.Config
	log *zap.Logger
	reg *prometheus.Registry
	svc *service.Service
}

func openEnv(ctx *cli.Context) (*env, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		return nil, errors.New("missing --config")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := cfg.Logger.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	st, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Type, err)
	}

	reg := prometheus.NewRegistry()

	svc, err := service.New(service.Prm{
		Logger:     log,
		Store:      st,
		Admin:      ledger.Identity(cfg.Admin),
		Registerer: reg,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	return &env{
		cfg: cfg,
		log: log,
		reg: reg,
		svc: svc,
	}, nil
}

func (e *env) close() {
	if err := e.svc.Close(); err != nil {
		e.log.Error("failed to close storage", zap.Error(err))
	}
	_ = e.log.Sync()
}

// callerIdentity resolves the caller from --caller or --wallet.
func callerIdentity(ctx *cli.Context) (ledger.Identity, error) {
	caller, walletPath := ctx.String("caller"), ctx.String("wallet")

	switch {
	case caller != "" && walletPath != "":
		return "", errors.New("--caller and --wallet are mutually exclusive")
	case caller != "":
		return ledger.Identity(caller), nil
	case walletPath == "":
		return "", errors.New("missing caller: set --caller or --wallet")
	}

	w, err := wallet.NewWalletFromFile(walletPath)
	if err != nil {
		return "", fmt.Errorf("read wallet: %w", err)
	}
	defer w.Close()

	if len(w.Accounts) == 0 {
		return "", fmt.Errorf("wallet %s has no accounts", walletPath)
	}

	return ledger.Identity(w.Accounts[0].Address), nil
}

// withEnv runs f over the opened environment and converts its error to
// cli.ExitError.
func withEnv(f func(*cli.Context, *env) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		e, err := openEnv(ctx)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer e.close()

		if err = f(ctx, e); err != nil {
			return cli.NewExitError(err, 1)
		}
		return nil
	}
}

// withCaller is like withEnv but also resolves the caller identity.
func withCaller(f func(*cli.Context, *env, ledger.Identity) error) cli.ActionFunc {
	return withEnv(func(ctx *cli.Context, e *env) error {
		caller, err := callerIdentity(ctx)
		if err != nil {
			return err
		}
		return f(ctx, e, caller)
	})
}

func printJSON(ctx *cli.Context, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(b))
	return err
}

func identityArg(ctx *cli.Context) (ledger.Identity, error) {
	id := ctx.Args().First()
	if id == "" {
		return "", errors.New("missing identity argument")
	}
	return ledger.Identity(id), nil
}
