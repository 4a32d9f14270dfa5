package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"nftforge/internal/domain"
	"nftforge/internal/imagegen"
	"nftforge/internal/infra"
	"nftforge/internal/ledger"
	"nftforge/internal/mint"
	"nftforge/internal/storage"
)

const usage = `usage: mintctl <command> [flags]

commands:
  info                         contract address, owner, cost, paused, total supply
  owner-of   -token <id>       owner of a token
  token-uri  -token <id>       metadata reference of a token
  pause | unpause | withdraw   owner-only contract calls
  update-cost -wei <amount>    owner-only price change
  mint -name <n> -description <d>
                               generate, store and mint one token
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).Level(zerolog.WarnLevel).With().Str("cmd", "mintctl").Str("op", cmd).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, closeLedger, err := ledger.Dial(ctx, cfg, &logger)
	if err != nil {
		exitWithError(err)
	}
	defer closeLedger()

	switch cmd {
	case "info":
		err = runInfo(ctx, client)
	case "owner-of", "token-uri":
		err = runTokenQuery(ctx, client, cmd, args)
	case "pause":
		err = printTx(client.Pause(ctx))
	case "unpause":
		err = printTx(client.Unpause(ctx))
	case "withdraw":
		err = printTx(client.Withdraw(ctx))
	case "update-cost":
		err = runUpdateCost(ctx, client, args)
	case "mint":
		err = runMint(ctx, cfg, &logger, client, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		exitWithError(err)
	}
}

func runInfo(ctx context.Context, client *ledger.Client) error {
	contract, err := client.Contract(ctx)
	if err != nil {
		return err
	}
	owner, err := client.Owner(ctx)
	if err != nil {
		return err
	}
	cost, err := client.Cost(ctx)
	if err != nil {
		return err
	}
	paused, err := client.Paused(ctx)
	if err != nil {
		return err
	}
	supply, err := client.TotalSupply(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("network:      %s (chain %s)\n", contract.Network, contract.ChainID)
	fmt.Printf("contract:     %s\n", contract.Address.Hex())
	fmt.Printf("owner:        %s\n", owner.Hex())
	fmt.Printf("cost (wei):   %s\n", cost)
	fmt.Printf("paused:       %t\n", paused)
	fmt.Printf("total supply: %s\n", supply)
	return nil
}

func runTokenQuery(ctx context.Context, client *ledger.Client, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	tokenFlag := fs.String("token", "", "token id")
	_ = fs.Parse(args)

	tokenID, ok := new(big.Int).SetString(strings.TrimSpace(*tokenFlag), 10)
	if !ok {
		return errors.New("-token must be a decimal token id")
	}
	if cmd == "owner-of" {
		owner, err := client.OwnerOf(ctx, tokenID)
		if err != nil {
			return err
		}
		fmt.Println(owner.Hex())
		return nil
	}
	uri, err := client.TokenURI(ctx, tokenID)
	if err != nil {
		return err
	}
	fmt.Println(uri)
	return nil
}

func runUpdateCost(ctx context.Context, client *ledger.Client, args []string) error {
	fs := flag.NewFlagSet("update-cost", flag.ExitOnError)
	weiFlag := fs.String("wei", "", "new mint price in wei")
	_ = fs.Parse(args)

	cost, ok := new(big.Int).SetString(strings.TrimSpace(*weiFlag), 10)
	if !ok {
		return errors.New("-wei must be a decimal amount")
	}
	return printTx(client.UpdateCost(ctx, cost))
}

func runMint(ctx context.Context, cfg *infra.Config, logger *infra.Logger, client *ledger.Client, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	nameFlag := fs.String("name", "", "token name")
	descFlag := fs.String("description", "", "image description sent to the model")
	rerollFlag := fs.Int("rerolls", 0, "number of extra generations before minting the last one")
	_ = fs.Parse(args)

	req := domain.MintRequest{Name: *nameFlag, Description: *descFlag}
	if err := req.Validate(); err != nil {
		return err
	}

	generator, err := imagegen.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	store, _, err := storage.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	wf, err := mint.New(mint.Options{
		ID:        uuid.NewString(),
		Generator: generator,
		Store:     store,
		Minter:    client,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer wf.Close()

	events, cancel := wf.Subscribe()
	defer cancel()
	if err := wf.Submit(req); err != nil {
		return err
	}

	rerolls := *rerollFlag
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("workflow closed")
			}
			fmt.Printf("%s  %s\n", ev.UpdatedAt.Format(time.TimeOnly), ev.State.Stage)
			switch ev.State.Stage {
			case domain.StageImageReady:
				if rerolls > 0 {
					rerolls--
					if err := wf.Regenerate(); err != nil {
						return err
					}
					continue
				}
				if err := wf.ConfirmMint(); err != nil {
					return err
				}
			case domain.StageMinting:
				if ev.Artifact != nil {
					fmt.Printf("          stored %s\n", ev.Artifact.RetrievalURL)
					if ev.Artifact.MetadataWarning != "" {
						fmt.Printf("          warning: %s\n", ev.Artifact.MetadataWarning)
					}
				}
			case domain.StageSucceeded:
				fmt.Printf("token uri:   %s\n", ev.Receipt.TokenURI)
				fmt.Printf("transaction: %s\n", ev.Receipt.TransactionHash)
				if ev.Receipt.TokenID != nil {
					fmt.Printf("token id:    %s\n", ev.Receipt.TokenID)
				}
				return nil
			case domain.StageFailed:
				return errors.New(ev.State.Reason)
			}
		}
	}
}

func printTx(hash string, err error) error {
	if err != nil {
		return errors.New(mint.Reason(err))
	}
	fmt.Println(hash)
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
