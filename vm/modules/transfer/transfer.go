// Package transfer implements the coin-transfer and roll buy/sell entry
// points: native handlers that move balances and touch the ledger
// directly, the way a deployed contract's constructor would.
package transfer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/vm"
)

// rollsKey is the datastore key under which an address's purchased roll
// count is tracked. Roll pricing and the staking economy beyond this are
// out of scope; this fixed price only exists so roll_buy/roll_sell have
// an observable, deterministic effect to execute and test.
var rollsKey = models.HashData([]byte("rolls_count"))

// rollPrice is the fixed cost of a single roll, in coins.
var rollPrice = models.AmountFromRaw(100 * models.AmountDecimalFactor)

func init() {
	vm.Register(string(models.OpTransfer), handleTransfer)
	vm.Register(string(models.OpRollBuy), handleRollBuy)
	vm.Register(string(models.OpRollSell), handleRollSell)
}

func handleTransfer(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p models.TransferPayload
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("transfer: decode payload: %w", err)
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("transfer: no active call frame")
	}
	to, err := models.ParseAddress(p.To)
	if err != nil {
		return fmt.Errorf("transfer: invalid recipient: %w", err)
	}
	from := top.Address
	if err := ctx.TransferParallelCoins(&from, &to, p.Amount, true); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	ctx.GenerateEvent(fmt.Sprintf("transfer %s -> %s: %s", from, to, p.Amount))
	return nil
}

func handleRollBuy(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p models.RollPayload
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("roll_buy: decode payload: %w", err)
	}
	if p.Count == 0 {
		return errors.New("roll_buy: count must be positive")
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("roll_buy: no active call frame")
	}
	cost, ok := rollPrice.CheckedMulUint64(p.Count)
	if !ok {
		return errors.New("roll_buy: cost overflow")
	}
	addr := top.Address
	if err := ctx.TransferParallelCoins(&addr, nil, cost, true); err != nil {
		return fmt.Errorf("roll_buy: %w", err)
	}
	if err := adjustRollCount(ctx, addr, int64(p.Count)); err != nil {
		return fmt.Errorf("roll_buy: %w", err)
	}
	ctx.GenerateEvent(fmt.Sprintf("roll_buy %s: %d rolls for %s", addr, p.Count, cost))
	return nil
}

func handleRollSell(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p models.RollPayload
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("roll_sell: decode payload: %w", err)
	}
	if p.Count == 0 {
		return errors.New("roll_sell: count must be positive")
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("roll_sell: no active call frame")
	}
	addr := top.Address
	current, err := currentRollCount(ctx, addr)
	if err != nil {
		return fmt.Errorf("roll_sell: %w", err)
	}
	if p.Count > current {
		return fmt.Errorf("roll_sell: address %s holds %d rolls, cannot sell %d", addr, current, p.Count)
	}
	proceeds, ok := rollPrice.CheckedMulUint64(p.Count)
	if !ok {
		return errors.New("roll_sell: proceeds overflow")
	}
	if err := ctx.TransferParallelCoins(nil, &addr, proceeds, false); err != nil {
		return fmt.Errorf("roll_sell: %w", err)
	}
	if err := adjustRollCount(ctx, addr, -int64(p.Count)); err != nil {
		return fmt.Errorf("roll_sell: %w", err)
	}
	ctx.GenerateEvent(fmt.Sprintf("roll_sell %s: %d rolls for %s", addr, p.Count, proceeds))
	return nil
}

func currentRollCount(ctx *execution.Context, addr models.Address) (uint64, error) {
	raw, ok := ctx.Ledger.GetDataEntry(addr, rollsKey)
	if !ok || len(raw) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func adjustRollCount(ctx *execution.Context, addr models.Address, delta int64) error {
	current, err := currentRollCount(ctx, addr)
	if err != nil {
		return err
	}
	next := int64(current) + delta
	if next < 0 {
		return errors.New("roll count cannot go negative")
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(next))
	ctx.Ledger.SetDataEntry(addr, rollsKey, buf[:])
	return nil
}
