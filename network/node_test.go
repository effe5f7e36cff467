package network

import (
	"testing"
	"time"

	"github.com/tolchain/corechain/models"
)

func startNode(t *testing.T, provider BlockProvider) (*Node, string) {
	t.Helper()
	n := NewNode("node", "127.0.0.1:0", nil, provider, nil)
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(n.Stop)
	return n, n.listener.Addr().String()
}

func TestPropagateDeliversBlockReceived(t *testing.T) {
	server, addr := startNode(t, nil)
	_ = server

	client, _ := startNode(t, nil)
	if err := client.AddPeer("server", addr); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	// Give the server's accept loop a moment to register the connection.
	time.Sleep(50 * time.Millisecond)

	block := models.NewBlock(models.NewSlot(1, 0), []models.BlockId{models.HashData([]byte("g0"))}, []byte("creator"), nil)
	if err := server.Propagate(block.ComputeId(), block); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	select {
	case ev := <-client.BlockReceived():
		if ev.ID != block.ComputeId() {
			t.Fatalf("got block id %s, want %s", ev.ID, block.ComputeId())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for BlockReceived")
	}
}

type fakeProvider struct {
	blocks map[models.BlockId]*models.Block
}

func (f *fakeProvider) GetBlock(id models.BlockId) (*models.Block, bool) {
	b, ok := f.blocks[id]
	return b, ok
}

func TestAskServedDirectlyByProvider(t *testing.T) {
	block := models.NewBlock(models.NewSlot(1, 0), []models.BlockId{models.HashData([]byte("g0"))}, []byte("creator"), nil)
	id := block.ComputeId()
	provider := &fakeProvider{blocks: map[models.BlockId]*models.Block{id: block}}

	server, addr := startNode(t, provider)
	_ = server

	client, _ := startNode(t, nil)
	if err := client.AddPeer("server", addr); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := client.Ask(id); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	select {
	case ev := <-client.BlockReceived():
		if ev.ID != id {
			t.Fatalf("got block id %s, want %s", ev.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for answered block")
	}
}

func TestAskWithoutProviderEmitsDependencyQuery(t *testing.T) {
	server, addr := startNode(t, nil)
	_ = server

	client, _ := startNode(t, nil)
	if err := client.AddPeer("server", addr); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	id := models.HashData([]byte("missing"))
	if err := client.Ask(id); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	select {
	case ev := <-server.DependencyQueries():
		if ev.ID != id {
			t.Fatalf("got dependency query id %s, want %s", ev.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DependencyQuery")
	}
}
