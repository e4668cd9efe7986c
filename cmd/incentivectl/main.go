// incentivectl is a command line client for the incentives REST API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/kcnet/incentives/client"
	"github.com/kcnet/incentives/shared"
)

var version = "dev"

var (
	apiFlag = cli.StringFlag{
		Name:   "api",
		Value:  "localhost:8080",
		EnvVar: "INCENTIVES_API",
		Usage:  "address of the incentives REST API",
	}
	retriesFlag = cli.IntFlag{
		Name:  "retries",
		Value: 4,
		Usage: "retries for unavailable servers",
	}
	nodeFlag = cli.Uint64Flag{
		Name:  "node",
		Usage: "identity id of the node",
	}
	callerFlag = cli.StringFlag{
		Name:  "caller",
		Usage: "address the request is made on behalf of",
	}
	amountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "token amount in wei",
	}
	epochFlag = cli.Uint64Flag{
		Name:  "epoch",
		Usage: "epoch number",
	}
)

func newClient(ctx *cli.Context) (*client.HTTPClient, error) {
	return client.New(ctx.GlobalString(apiFlag.Name), client.WithRetries(ctx.GlobalInt(retriesFlag.Name)))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCaller(ctx *cli.Context) (common.Address, error) {
	s := ctx.String(callerFlag.Name)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("-%s: %q is not an address", callerFlag.Name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(ctx *cli.Context) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(ctx.String(amountFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", amountFlag.Name, err)
	}
	return amount, nil
}

func node(ctx *cli.Context) shared.NodeID {
	return shared.NodeID(ctx.Uint64(nodeFlag.Name))
}

func statusAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	status, err := cl.ProofPeriod(context.Background())
	if err != nil {
		return err
	}
	return printJSON(status)
}

// proveAction opens a challenge for the node and answers it with the chunk
// served by the devnet.
func proveAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	caller, err := parseCaller(ctx)
	if err != nil {
		return err
	}
	bg := context.Background()
	challenge, err := cl.CreateChallenge(bg, node(ctx), caller)
	if err != nil {
		return err
	}
	fmt.Printf("challenged for chunk %d of collection %d\n", challenge.ChunkID, challenge.KnowledgeCollectionID)

	chunk, err := cl.ChunkProof(bg, challenge.KnowledgeCollectionID, challenge.ChunkID)
	if err != nil {
		return err
	}
	added, err := cl.SubmitProof(bg, node(ctx), caller, chunk.Chunk, chunk.Proof)
	if err != nil {
		return err
	}
	fmt.Printf("proof accepted, score added: %s\n", added.Attributes["scoreAdded"])
	return nil
}

func stakeAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	caller, err := parseCaller(ctx)
	if err != nil {
		return err
	}
	amount, err := parseAmount(ctx)
	if err != nil {
		return err
	}
	state, err := cl.Stake(context.Background(), node(ctx), caller, amount)
	if err != nil {
		return err
	}
	return printJSON(state)
}

func claimAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	caller, err := parseCaller(ctx)
	if err != nil {
		return err
	}
	epochs := make([]uint64, 0, len(ctx.Args()))
	for _, arg := range ctx.Args() {
		epoch, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("epoch %q: %w", arg, err)
		}
		epochs = append(epochs, epoch)
	}
	if len(epochs) == 0 {
		return errors.New("no epochs to claim")
	}
	claimed, err := cl.ClaimRewards(context.Background(), node(ctx), caller, epochs...)
	if err != nil {
		return err
	}
	return printJSON(claimed)
}

func delegatorAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	caller, err := parseCaller(ctx)
	if err != nil {
		return err
	}
	state, err := cl.Delegator(context.Background(), node(ctx), caller)
	if err != nil {
		return err
	}
	return printJSON(state)
}

func settleAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	rewards, err := cl.SettleOperatorFee(context.Background(), node(ctx), ctx.Uint64(epochFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(rewards)
}

func produceAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	count := uint64(1)
	if arg := ctx.Args().First(); arg != "" {
		if count, err = strconv.ParseUint(arg, 10, 64); err != nil {
			return fmt.Errorf("block count: %w", err)
		}
	}
	chain, err := cl.ProduceBlocks(context.Background(), count)
	if err != nil {
		return err
	}
	return printJSON(chain)
}

func rootAction(ctx *cli.Context) error {
	cl, err := newClient(ctx)
	if err != nil {
		return err
	}
	root, err := cl.EpochRoot(context.Background(), ctx.Uint64(epochFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(root.Hex())
	return nil
}

func main() {
	app := cli.App{
		Version: version,
		Name:    "incentivectl",
		Usage:   "client for the knowledge network incentives server",
		Flags:   []cli.Flag{apiFlag, retriesFlag},
		Commands: []cli.Command{
			{
				Name:   "status",
				Usage:  "show the active proof period",
				Action: statusAction,
			},
			{
				Name:   "prove",
				Usage:  "open a challenge for a node and answer it from the devnet",
				Flags:  []cli.Flag{nodeFlag, callerFlag},
				Action: proveAction,
			},
			{
				Name:   "stake",
				Usage:  "delegate stake to a node",
				Flags:  []cli.Flag{nodeFlag, callerFlag, amountFlag},
				Action: stakeAction,
			},
			{
				Name:      "claim",
				Usage:     "claim delegator rewards for finalized epochs",
				ArgsUsage: "<epoch>...",
				Flags:     []cli.Flag{nodeFlag, callerFlag},
				Action:    claimAction,
			},
			{
				Name:   "delegator",
				Usage:  "show a delegator's position on a node",
				Flags:  []cli.Flag{nodeFlag, callerFlag},
				Action: delegatorAction,
			},
			{
				Name:   "settle",
				Usage:  "settle a node's operator fee for an epoch",
				Flags:  []cli.Flag{nodeFlag, epochFlag},
				Action: settleAction,
			},
			{
				Name:      "produce",
				Usage:     "produce devnet blocks",
				ArgsUsage: "[count]",
				Action:    produceAction,
			},
			{
				Name:   "root",
				Usage:  "print the delta journal root of an epoch",
				Flags:  []cli.Flag{epochFlag},
				Action: rootAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
