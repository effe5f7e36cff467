// Package datastore implements the "constructor" entry point (bytecode
// deployment for OpExecuteSC) and generic datastore_set/datastore_delete
// entry points a deployed contract's OpCallSC invocations can target, the
// minimal key-value surface a real WASM VM's host functions would expose.
package datastore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/vm"
)

// SetParam is the call_sc param for datastore_set.
type SetParam struct {
	Key   models.Hash `json:"key"`
	Value []byte      `json:"value"`
}

// DeleteParam is the call_sc param for datastore_delete.
type DeleteParam struct {
	Key models.Hash `json:"key"`
}

func init() {
	vm.Register("constructor", handleConstructor)
	vm.Register("datastore_set", handleSet)
	vm.Register("datastore_delete", handleDelete)
}

// handleConstructor deploys bytecode to the call frame's own address,
// the effect of an OpExecuteSC operation: the address was freshly
// derived by the driver before this handler ever runs.
func handleConstructor(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	top, ok := ctx.Top()
	if !ok {
		return errors.New("constructor: no active call frame")
	}
	if len(bytecode) == 0 {
		return errors.New("constructor: empty bytecode")
	}
	ctx.Ledger.SetBytecode(top.Address, bytecode)
	ctx.GenerateEvent(fmt.Sprintf("deployed %d bytes of bytecode to %s", len(bytecode), top.Address))
	return nil
}

func handleSet(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p SetParam
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("datastore_set: decode param: %w", err)
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("datastore_set: no active call frame")
	}
	if !ctx.CanWrite(top.Address) {
		return fmt.Errorf("datastore_set: no write access to %s", top.Address)
	}
	ctx.Ledger.SetDataEntry(top.Address, p.Key, p.Value)
	return nil
}

func handleDelete(ctx *execution.Context, bytecode []byte, param []byte, gas uint64) error {
	var p DeleteParam
	if err := json.Unmarshal(param, &p); err != nil {
		return fmt.Errorf("datastore_delete: decode param: %w", err)
	}
	top, ok := ctx.Top()
	if !ok {
		return errors.New("datastore_delete: no active call frame")
	}
	if !ctx.CanWrite(top.Address) {
		return fmt.Errorf("datastore_delete: no write access to %s", top.Address)
	}
	ctx.Ledger.DeleteDataEntry(top.Address, p.Key)
	return nil
}
