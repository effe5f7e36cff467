package wallet

import (
	"testing"

	"github.com/tolchain/corechain/crypto"
	"github.com/tolchain/corechain/models"
)

func TestTransferOperationIsVerifiable(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	recipient, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	op, err := w.Transfer(recipient.Address(), models.AmountFromRaw(1000), 1, models.AmountFromRaw(10), 1000, 100)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	wantID := models.HashData(models.EncodeOperationForSigning(op))
	if op.ID != wantID {
		t.Fatalf("operation ID does not match its own signed body")
	}

	sigHex := crypto.Sign(w.PrivKey(), models.EncodeOperationForSigning(op))
	if err := crypto.Verify(w.PubKey(), models.EncodeOperationForSigning(op), sigHex); err != nil {
		t.Fatalf("re-derived signature failed to verify: %v", err)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/key.json"

	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := SaveKey(path, "correct horse", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	loaded, err := LoadKey(path, "correct horse")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if loaded.Hex() != w.PrivKey().Hex() {
		t.Fatal("round-tripped key does not match original")
	}

	if _, err := LoadKey(path, "wrong password"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}
