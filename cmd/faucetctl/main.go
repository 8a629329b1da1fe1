package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/zama-ai/faucet-contract/pkg/client"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/version"
)

var (
	addr        = flag.String("addr", "http://localhost:8080", "faucet API base URL")
	from        = flag.String("from", "", "caller address")
	timeout     = flag.Duration("timeout", 10*time.Second, "per request timeout")
	retries     = flag.Int("retries", 3, "retries for reads; writes are retried only when the connection fails")
	showVersion = flag.Bool("version", false, "print version information")
)

const usage = `usage: faucetctl [flags] <command> [args]

commands:
  info                 show faucet owner, balance and limit
  withdraw AMOUNT      withdraw AMOUNT to -from
  withdraw-all         sweep the faucet to -from (owner only)
  destroy              destroy the faucet (owner only)
  deposit AMOUNT       send AMOUNT from -from to the faucet
  balance ADDRESS      show the balance of ADDRESS
  receipt HASH         show a transaction receipt
  refill               trigger a refill check

flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		versionJSON, _ := json.Marshal(version.GetVersion())
		fmt.Println(string(versionJSON))
		return
	}

	if err := logger.InitLogger(logger.WithLevel(zapcore.WarnLevel), logger.WithConsoleEncoding()); err != nil {
		panic(fmt.Errorf("failed to init logger: %v", err))
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := client.NewClient(*addr, *timeout, client.WithRetries(*retries, time.Second))
	out, err := run(context.Background(), c, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		var revertErr *client.RevertError
		if errors.As(err, &revertErr) && revertErr.Receipt != nil {
			fmt.Fprintf(os.Stderr, "reverted in tx %s: %v\n", revertErr.Receipt.TxHash, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) (any, error) {
	switch cmd {
	case "info":
		return c.Info(ctx)
	case "withdraw":
		if err := needArgs(args, 1); err != nil {
			return nil, err
		}
		if err := needFrom(); err != nil {
			return nil, err
		}
		return c.Withdraw(ctx, *from, args[0])
	case "withdraw-all":
		if err := needFrom(); err != nil {
			return nil, err
		}
		return c.WithdrawAll(ctx, *from)
	case "destroy":
		if err := needFrom(); err != nil {
			return nil, err
		}
		return c.Destroy(ctx, *from)
	case "deposit":
		if err := needArgs(args, 1); err != nil {
			return nil, err
		}
		if err := needFrom(); err != nil {
			return nil, err
		}
		return c.Deposit(ctx, *from, args[0])
	case "balance":
		if err := needArgs(args, 1); err != nil {
			return nil, err
		}
		return c.Account(ctx, args[0])
	case "receipt":
		if err := needArgs(args, 1); err != nil {
			return nil, err
		}
		return c.Receipt(ctx, args[0])
	case "refill":
		return c.Refill(ctx)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func needArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func needFrom() error {
	if *from == "" {
		return errors.New("-from is required")
	}
	return nil
}
