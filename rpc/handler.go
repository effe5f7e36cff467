package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tolchain/corechain/consensus"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/pool"
)

// Handler holds all dependencies needed to serve RPC methods: a read view
// onto the block graph, the committed final state, the operation pool,
// and enough of the execution stack to run a read-only call.
type Handler struct {
	graph  *consensus.Graph
	final  *finalstate.FinalState
	pool   *pool.Controller
	driver *execution.Driver
	runner execution.Runner
}

// NewHandler creates an RPC Handler.
func NewHandler(graph *consensus.Graph, final *finalstate.FinalState, ctrl *pool.Controller, driver *execution.Driver, runner execution.Runner) *Handler {
	return &Handler{graph: graph, final: final, pool: ctrl, driver: driver, runner: runner}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getStatus":
		return h.getStatus(req)

	case "getBlock":
		return h.getBlock(req)

	case "getBlockStatus":
		return h.getBlockStatus(req)

	case "getBalance":
		return h.getBalance(req)

	case "getDatastoreEntry":
		return h.getDatastoreEntry(req)

	case "getBytecode":
		return h.getBytecode(req)

	case "submitOperation":
		return h.submitOperation(req)

	case "getOperationPoolSize":
		return okResponse(req.ID, h.pool.Len())

	case "executeReadOnlyCall":
		return h.executeReadOnlyCall(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getStatus(req Request) Response {
	return okResponse(req.ID, map[string]any{
		"current_slot":        h.graph.CurrentSlot().String(),
		"active_blocks":       len(h.graph.ActiveBlocks()),
		"final_blocks":        len(h.graph.FinalBlocks()),
		"operation_pool_size": h.pool.Len(),
		"final_state_cursor":  h.final.Cursor().String(),
	})
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	id, err := models.HashFromHex(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "id: "+err.Error())
	}
	block, ok := h.graph.GetBlock(id)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "block not found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBlockStatus(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	id, err := models.HashFromHex(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "id: "+err.Error())
	}
	status, ok := h.graph.Status(id)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "block not found")
	}
	return okResponse(req.ID, map[string]any{"status": status})
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr, err := models.ParseAddress(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "address: "+err.Error())
	}
	entry, ok := h.final.GetEntry(addr)
	if !ok {
		return okResponse(req.ID, map[string]any{"address": params.Address, "balance": models.Amount{}})
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": entry.ParallelBalance})
}

func (h *Handler) getDatastoreEntry(req Request) Response {
	var params struct {
		Address string `json:"address"`
		Key     string `json:"key"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr, err := models.ParseAddress(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "address: "+err.Error())
	}
	key, err := models.HashFromHex(params.Key)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "key: "+err.Error())
	}
	entry, ok := h.final.GetEntry(addr)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "address not found")
	}
	value, ok := entry.Datastore.Get(key)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "key not found")
	}
	return okResponse(req.ID, map[string]any{"value": value})
}

func (h *Handler) getBytecode(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr, err := models.ParseAddress(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "address: "+err.Error())
	}
	entry, ok := h.final.GetEntry(addr)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "address not found")
	}
	return okResponse(req.ID, map[string]any{"bytecode": entry.Bytecode})
}

func (h *Handler) submitOperation(req Request) Response {
	var op models.Operation
	if err := json.Unmarshal(req.Params, &op); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.pool.AddOperation(op); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"operation_id": op.ID.String()})
}

func (h *Handler) executeReadOnlyCall(req Request) Response {
	var params struct {
		Address    string `json:"address"`
		EntryPoint string `json:"entry_point"`
		Param      []byte `json:"param"`
		MaxGas     uint64 `json:"max_gas"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr, err := models.ParseAddress(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "address: "+err.Error())
	}
	ctx := execution.NewReadOnlyContext(h.graph.CurrentSlot(), h.final, h.final.Pool())
	out, runErr := h.driver.RunReadOnlyCall(ctx, addr, params.EntryPoint, params.Param, params.MaxGas, h.runner)
	result := map[string]any{
		"events": out.Events,
	}
	if runErr != nil {
		result["error"] = runErr.Error()
	}
	return okResponse(req.ID, result)
}
