package rpc

import (
	"encoding/json"
	"testing"

	"github.com/tolchain/corechain/consensus"
	"github.com/tolchain/corechain/crypto"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/internal/testutil"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/pool"
	"github.com/tolchain/corechain/vm"

	_ "github.com/tolchain/corechain/vm/modules/transfer"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	genesis := models.HashData([]byte("genesis-0"))
	graph, err := consensus.NewGraph(consensus.Config{ThreadCount: 1}, []models.BlockId{genesis})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	final := finalstate.New(testutil.NewMemDB(), nil, 1024, 0)
	ctrl := pool.NewController(1, nil)
	driver := execution.NewDriver(nil)
	return NewHandler(graph, final, ctrl, driver, vm.Default())
}

func dispatch(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func TestGetStatus(t *testing.T) {
	h := newTestHandler(t)
	resp := dispatch(t, h, "getStatus", struct{}{})
	if resp.Error != nil {
		t.Fatalf("getStatus: %v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	h := newTestHandler(t)
	resp := dispatch(t, h, "doesNotExist", struct{}{})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp)
	}
}

func TestGetBalanceUnknownAddressReturnsZero(t *testing.T) {
	h := newTestHandler(t)
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	addr := models.NewUserAddress(pub)
	resp := dispatch(t, h, "getBalance", map[string]string{"address": addr.String()})
	if resp.Error != nil {
		t.Fatalf("getBalance: %v", resp.Error)
	}
}

func TestSubmitOperationAndPoolSize(t *testing.T) {
	h := newTestHandler(t)
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	payload, _ := json.Marshal(models.TransferPayload{To: models.NewUserAddress(pub).String(), Amount: models.AmountFromRaw(1)})
	op := models.Operation{
		ID:           models.HashData([]byte("op-1")),
		Type:         models.OpTransfer,
		Sender:       pub,
		ExpirePeriod: 100,
		Payload:      payload,
	}
	resp := dispatch(t, h, "submitOperation", op)
	if resp.Error != nil {
		t.Fatalf("submitOperation: %v", resp.Error)
	}

	resp = dispatch(t, h, "getOperationPoolSize", struct{}{})
	if resp.Error != nil {
		t.Fatalf("getOperationPoolSize: %v", resp.Error)
	}
	if resp.Result.(int) != 1 {
		t.Fatalf("expected pool size 1, got %v", resp.Result)
	}
}
