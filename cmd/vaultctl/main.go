package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vault/config"
	"vault/handlers"
	"vault/sender"
	"vault/types"
	"vault/vault"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// 测试里替换成指向 httptest 的客户端
var newClient = func(cfg config.ClientConfig) *sender.Client {
	return sender.NewClient(cfg)
}

const usage = `vaultctl: command line client for a vault node.

Usage:
  vaultctl [flags] <command> [args]

Commands:
  keygen                write a new keypair to --key
  address               print the key's address and its vault addresses
  airdrop <amount>      request lamports from the node faucet
  init                  create the vault
  deposit <amount>      move lamports into the vault
  withdraw <amount>     move lamports out of the vault
  close                 close an empty vault and reclaim rent
  state [owner]         show a vault (default: the key's own)
  receipt <id>          show a stored receipt
  status                show node status

Amounts accept integer lamports or a "sol" suffix, e.g. 1.5sol.

Flags:
`

type cli struct {
	cfg     config.ClientConfig
	program types.Address
	owner   string
	nonce   uint64
	out     io.Writer
}

func run(args []string, out io.Writer) error {
	var (
		c          = cli{out: out}
		configPath string
		node       string
		keyFile    string
		programID  string
		timeout    time.Duration
	)

	flagSet := pflag.NewFlagSet("vaultctl", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&node, "node", "", "node URL, overrides client.node_url")
	flagSet.StringVarP(&keyFile, "key", "k", "", "keypair file, overrides client.key_file")
	flagSet.StringVar(&programID, "program", "", "vault program address, overrides runtime.program_id")
	flagSet.DurationVar(&timeout, "timeout", 0, "request timeout")
	flagSet.StringVar(&c.owner, "owner", "", "operate on another owner's vault")
	flagSet.Uint64Var(&c.nonce, "nonce", 0, "instruction nonce (default: current unix nanos)")
	flagSet.Usage = func() {
		fmt.Fprint(out, usage)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg.Client
	if node != "" {
		c.cfg.NodeURL = node
	}
	if keyFile != "" {
		c.cfg.KeyFile = keyFile
	}
	if timeout > 0 {
		c.cfg.Timeout = timeout
	}
	if programID == "" {
		programID = cfg.Runtime.ProgramID
	}
	if c.program, err = types.ParseAddress(programID); err != nil {
		return fmt.Errorf("program: %w", err)
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "keygen":
		return c.keygen()
	case "address":
		return c.address()
	case "airdrop":
		return c.airdrop(cmdArgs)
	case "init":
		return c.submit(vault.KindInitialize, "")
	case "deposit", "withdraw":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: vaultctl %s <amount>", cmd)
		}
		kind := vault.KindDeposit
		if cmd == "withdraw" {
			kind = vault.KindWithdraw
		}
		return c.submit(kind, cmdArgs[0])
	case "close":
		return c.submit(vault.KindClose, "")
	case "state":
		return c.state(cmdArgs)
	case "receipt":
		if len(cmdArgs) != 1 {
			return errors.New("usage: vaultctl receipt <id>")
		}
		return c.withClient(func(ctx context.Context, cl *sender.Client) error {
			rc, err := cl.Receipt(ctx, cmdArgs[0])
			if err != nil {
				return err
			}
			return c.printReceipt(rc)
		})
	case "status":
		return c.withClient(func(ctx context.Context, cl *sender.Client) error {
			st, err := cl.Status(ctx)
			if err != nil {
				return err
			}
			return c.printJSON(st)
		})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) keygen() error {
	if _, err := os.Stat(c.cfg.KeyFile); err == nil {
		return fmt.Errorf("%s already exists", c.cfg.KeyFile)
	}
	kp, err := types.GenerateKeypair()
	if err != nil {
		return err
	}
	hexKey, err := kp.Hex()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.cfg.KeyFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(c.cfg.KeyFile, []byte(hexKey+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %s\naddress: %s\n", c.cfg.KeyFile, kp.Address())
	return nil
}

func (c *cli) loadKey() (*types.Keypair, error) {
	raw, err := os.ReadFile(c.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key: %w (run vaultctl keygen first)", err)
	}
	return types.KeypairFromHex(string(raw))
}

func (c *cli) targetOwner(kp *types.Keypair) (types.Address, error) {
	if c.owner == "" {
		return kp.Address(), nil
	}
	return types.ParseAddress(c.owner)
}

func (c *cli) address() error {
	kp, err := c.loadKey()
	if err != nil {
		return err
	}
	ctl := vault.NewController(types.NewDeriver(c.program, 16))
	addrs, err := ctl.Derive(kp.Address())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "owner:  %s\nstate:  %s (bump %d)\nescrow: %s (bump %d)\n",
		kp.Address(), addrs.State, addrs.StateBump, addrs.Escrow, addrs.EscrowBump)
	return nil
}

func (c *cli) airdrop(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vaultctl airdrop <amount>")
	}
	kp, err := c.loadKey()
	if err != nil {
		return err
	}
	return c.withClient(func(ctx context.Context, cl *sender.Client) error {
		rc, err := cl.Airdrop(ctx, kp.Address(), args[0])
		if err != nil {
			return err
		}
		return c.printReceipt(rc)
	})
}

func (c *cli) submit(kind, amountArg string) error {
	kp, err := c.loadKey()
	if err != nil {
		return err
	}
	var amount uint64
	if amountArg != "" {
		if amount, err = types.ParseAmount(amountArg); err != nil {
			return err
		}
	}
	ix := &types.Instruction{Program: c.program, Kind: kind, Amount: amount, Nonce: c.nonce}
	if ix.Nonce == 0 {
		ix.Nonce = uint64(time.Now().UnixNano())
	}
	if c.owner != "" {
		if ix.Owner, err = c.targetOwner(kp); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	if err := ix.Sign(kp); err != nil {
		return err
	}

	return c.withClient(func(ctx context.Context, cl *sender.Client) error {
		rc, err := cl.Submit(ctx, ix)
		if err != nil {
			return err
		}
		return c.printReceipt(rc)
	})
}

func (c *cli) state(args []string) error {
	var owner types.Address
	switch {
	case len(args) == 1:
		var err error
		if owner, err = types.ParseAddress(args[0]); err != nil {
			return err
		}
	default:
		kp, err := c.loadKey()
		if err != nil {
			return err
		}
		if owner, err = c.targetOwner(kp); err != nil {
			return err
		}
	}
	return c.withClient(func(ctx context.Context, cl *sender.Client) error {
		st, err := cl.VaultState(ctx, owner)
		if err != nil {
			return err
		}
		return c.printJSON(st)
	})
}

func (c *cli) withClient(fn func(ctx context.Context, cl *sender.Client) error) error {
	cl := newClient(c.cfg)
	defer cl.Close()
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, cl)
}

// printReceipt 失败回执以错误返回，进程退出码非 0
func (c *cli) printReceipt(rc *handlers.ReceiptResponse) error {
	if err := c.printJSON(rc); err != nil {
		return err
	}
	if rc.Receipt == nil || rc.Succeeded() {
		return nil
	}
	if code, ok := vault.ErrorCodeFromCode(rc.ErrorCode); ok {
		return fmt.Errorf("%s: %s", code.Name(), code.Message())
	}
	if rc.ErrorName != "" {
		return fmt.Errorf("%s: %s", rc.ErrorName, strings.TrimSpace(rc.Error))
	}
	return errors.New(strings.TrimSpace(rc.Error))
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
