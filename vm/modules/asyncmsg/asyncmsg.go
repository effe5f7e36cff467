// Package asyncmsg implements the send_message entry point: a contract
// call that schedules a future, asynchronous invocation on some target
// address, the native stand-in for a WASM host function that would push
// onto the async pool on the contract's behalf.
package asyncmsg

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/vm"
)

// SendMessageParam describes the message to schedule.
type SendMessageParam struct {
	Target        string        `json:"target"`
	EntryPoint    string        `json:"entry_point"`
	Param         []byte        `json:"param"`
	Coins         models.Amount `json:"coins"`
	MaxGas        uint64        `json:"max_gas"`
	Priority      uint8         `json:"priority"`
	ValidityStart models.Slot   `json:"validity_start"`
	ValidityEnd   models.Slot   `json:"validity_end"`
	EmissionIndex uint64        `json:"emission_index"`
}

func init() {
	vm.Register("send_message", handleSendMessage)
}

func handleSendMessage(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p SendMessageParam
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("send_message: decode param: %w", err)
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("send_message: no active call frame")
	}
	target, err := models.ParseAddress(p.Target)
	if err != nil {
		return fmt.Errorf("send_message: invalid target: %w", err)
	}
	if ctx.ReadOnly {
		return errors.New("send_message: cannot schedule messages from a read-only call")
	}

	sender := top.Address
	if !p.Coins.IsZero() {
		if err := ctx.TransferParallelCoins(&sender, nil, p.Coins, true); err != nil {
			return fmt.Errorf("send_message: escrow coins: %w", err)
		}
	}

	msg := &asyncpool.Message{
		ID: asyncpool.MessageId{
			Priority:      p.Priority,
			EmissionSlot:  ctx.Slot,
			EmissionIndex: p.EmissionIndex,
		},
		Sender:        sender,
		Target:        target,
		EntryPoint:    p.EntryPoint,
		Param:         p.Param,
		Coins:         p.Coins,
		MaxGas:        p.MaxGas,
		ValidityStart: p.ValidityStart,
		ValidityEnd:   p.ValidityEnd,
	}
	if err := ctx.PushNewMessage(msg); err != nil {
		return fmt.Errorf("send_message: %w", err)
	}
	ctx.GenerateEvent(fmt.Sprintf("scheduled message to %s.%s", target, p.EntryPoint))
	return nil
}
