package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tolchain/corechain/crypto"
	"github.com/tolchain/corechain/models"
)

// Wallet holds a key pair and builds signed operations. The same key pair
// doubles as a node's staking key when registered with the PoS selector,
// so there is no separate staking-key type: a Wallet loaded from the
// node's keystore path is the staking identity.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the raw ed25519 public key bytes, used as an
// operation's Sender field and the PoS selector's producer identity.
func (w *Wallet) PubKey() crypto.PublicKey {
	return w.pub
}

// Address returns the kind-prefixed user address derived from the
// public key.
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewOperation builds and signs an operation of typ carrying payload,
// marshaled to JSON. nonce and expirePeriod must be chosen by the caller
// to match the account's current state and the target inclusion window.
func (w *Wallet) NewOperation(typ models.OperationType, nonce uint64, fee models.Amount, maxGas, expirePeriod uint64, payload any) (models.Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.Operation{}, fmt.Errorf("wallet: marshal payload: %w", err)
	}
	op := models.Operation{
		Type:         typ,
		Sender:       []byte(w.pub),
		Nonce:        nonce,
		Fee:          fee,
		MaxGas:       maxGas,
		ExpirePeriod: expirePeriod,
		Payload:      raw,
	}
	op.ID = models.HashData(models.EncodeOperationForSigning(op))

	sigHex := crypto.Sign(w.priv, models.EncodeOperationForSigning(op))
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return models.Operation{}, fmt.Errorf("wallet: decode signature: %w", err)
	}
	op.Signature = sig
	return op, nil
}

// Transfer builds a signed transfer operation.
func (w *Wallet) Transfer(to string, amount models.Amount, nonce uint64, fee models.Amount, maxGas, expirePeriod uint64) (models.Operation, error) {
	return w.NewOperation(models.OpTransfer, nonce, fee, maxGas, expirePeriod, models.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// BuyRolls builds a signed roll_buy operation.
func (w *Wallet) BuyRolls(count uint64, nonce uint64, fee models.Amount, maxGas, expirePeriod uint64) (models.Operation, error) {
	return w.NewOperation(models.OpRollBuy, nonce, fee, maxGas, expirePeriod, models.RollPayload{Count: count})
}

// SellRolls builds a signed roll_sell operation.
func (w *Wallet) SellRolls(count uint64, nonce uint64, fee models.Amount, maxGas, expirePeriod uint64) (models.Operation, error) {
	return w.NewOperation(models.OpRollSell, nonce, fee, maxGas, expirePeriod, models.RollPayload{Count: count})
}
