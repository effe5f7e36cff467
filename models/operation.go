package models

import (
	"bytes"
	"encoding/json"
)

// OperationType identifies the kind of effect an operation has when
// executed against the speculative ledger.
type OperationType string

const (
	OpTransfer       OperationType = "transfer"
	OpExecuteSC      OperationType = "execute_sc"
	OpCallSC         OperationType = "call_sc"
	OpRollBuy        OperationType = "roll_buy"
	OpRollSell       OperationType = "roll_sell"
)

// Operation is the atomic unit of work carried by a block: a signed,
// fee-paying instruction from an account.
type Operation struct {
	ID        Hash            `json:"id"`
	Type      OperationType   `json:"type"`
	Sender    []byte          `json:"sender"` // ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       Amount          `json:"fee"`
	MaxGas    uint64          `json:"max_gas"`
	ExpirePeriod uint64       `json:"expire_period"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"signature"`
}

// TransferPayload moves coins from the sender to a recipient address.
type TransferPayload struct {
	To     string `json:"to"` // Address.String()
	Amount Amount `json:"amount"`
}

// ExecuteSCPayload deploys and runs bytecode in a freshly created address.
type ExecuteSCPayload struct {
	Bytecode  []byte `json:"bytecode"`
	MaxCoins  Amount `json:"max_coins"`
}

// CallSCPayload invokes an entry point on an existing address.
type CallSCPayload struct {
	TargetAddr string `json:"target_addr"`
	EntryPoint string `json:"entry_point"`
	Param      []byte `json:"param"`
	MaxCoins   Amount `json:"max_coins"`
}

// RollPayload buys or sells a number of rolls at the sender's address.
type RollPayload struct {
	Count uint64 `json:"count"`
}

// EncodeOperationForSigning produces the canonical byte encoding an
// operation's signature covers: every field except ID and Signature
// itself, which are derived from and appended to it respectively.
func EncodeOperationForSigning(op Operation) []byte {
	var buf bytes.Buffer
	writeBytes(&buf, []byte(op.Type))
	writeBytes(&buf, op.Sender)
	writeVarint(&buf, op.Nonce)
	writeVarint(&buf, op.Fee.Raw())
	writeVarint(&buf, op.MaxGas)
	writeVarint(&buf, op.ExpirePeriod)
	writeBytes(&buf, op.Payload)
	return buf.Bytes()
}

// ComputeOperationsRoot builds a deterministic root hash over an ordered
// list of operation IDs, concatenated in order; every ID is a fixed-width
// hash, so the concatenation has no boundary ambiguity.
func ComputeOperationsRoot(ops []Operation) Hash {
	if len(ops) == 0 {
		return HashData([]byte("empty-operations"))
	}
	buf := make([]byte, 0, len(ops)*HashSize)
	for _, op := range ops {
		buf = append(buf, op.ID[:]...)
	}
	return HashData(buf)
}
