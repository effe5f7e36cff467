package network

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/models"
)

// DefaultMaxPeers is the default limit on simultaneous peer connections.
const DefaultMaxPeers = 50

// Node listens for incoming peers, manages outgoing connections, and
// implements ProtocolController over a length-prefixed JSON/TCP wire
// format. BlockReceived and DependencyQuery events are delivered on
// buffered channels; Propagate and Ask broadcast to every connected peer.
type Node struct {
	nodeID     string
	listenAddr string
	tlsConfig  *tls.Config // nil -> plain TCP
	maxPeers   int
	provider   BlockProvider
	log        *zap.SugaredLogger

	mu    sync.RWMutex
	peers map[string]*Peer

	blockReceived     chan BlockReceived
	dependencyQueries chan DependencyQuery

	listener net.Listener
	stopCh   chan struct{}
}

var _ ProtocolController = (*Node)(nil)

// NewNode creates a Node that will listen on listenAddr. If tlsCfg is
// non-nil the listener and outgoing connections use TLS. provider may be
// nil, in which case incoming Ask requests always surface as a
// DependencyQuery event instead of being served directly.
func NewNode(nodeID, listenAddr string, tlsCfg *tls.Config, provider BlockProvider, log *zap.SugaredLogger) *Node {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Node{
		nodeID:            nodeID,
		listenAddr:        listenAddr,
		tlsConfig:         tlsCfg,
		maxPeers:          DefaultMaxPeers,
		provider:          provider,
		log:               log,
		peers:             make(map[string]*Peer),
		blockReceived:     make(chan BlockReceived, 256),
		dependencyQueries: make(chan DependencyQuery, 256),
		stopCh:            make(chan struct{}),
	}
}

// BlockReceived implements ProtocolController.
func (n *Node) BlockReceived() <-chan BlockReceived { return n.blockReceived }

// DependencyQueries implements ProtocolController.
func (n *Node) DependencyQueries() <-chan DependencyQuery { return n.dependencyQueries }

// Start begins accepting connections.
func (n *Node) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return fmt.Errorf("network: listen %s: %w", n.listenAddr, err)
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the node and every connected peer.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// AddPeer dials addr and registers the peer under id.
func (n *Node) AddPeer(id, addr string) error {
	peer, err := Connect(id, addr, n.tlsConfig)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.peers[id] = peer
	n.mu.Unlock()
	go n.readLoop(peer)

	hello, err := json.Marshal(map[string]string{"node_id": n.nodeID})
	if err != nil {
		return fmt.Errorf("network: marshal hello: %w", err)
	}
	if err := peer.Send(Message{Type: MsgHello, Payload: hello}); err != nil {
		n.log.Warnw("send hello failed", "peer", id, "error", err)
	}
	return nil
}

// Peer returns the connected peer with the given id, or nil if not found.
func (n *Node) Peer(id string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[id]
}

func (n *Node) broadcast(msg Message) {
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.RUnlock()
	for _, p := range peers {
		if err := p.Send(msg); err != nil {
			n.log.Warnw("broadcast failed", "peer", p.ID, "error", err)
		}
	}
}

// Propagate implements ProtocolController: it broadcasts block to every
// connected peer.
func (n *Node) Propagate(id models.BlockId, block *models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("network: marshal block %s: %w", id, err)
	}
	n.broadcast(Message{Type: MsgBlock, Payload: data})
	return nil
}

// Ask implements ProtocolController: it broadcasts a request for id to
// every connected peer.
func (n *Node) Ask(id models.BlockId) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("network: marshal ask %s: %w", id, err)
	}
	n.broadcast(Message{Type: MsgAsk, Payload: data})
	return nil
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				n.log.Warnw("accept error", "error", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		peerCount := len(n.peers)
		n.mu.RUnlock()
		if peerCount >= n.maxPeers {
			n.log.Warnw("max peers reached, rejecting connection", "max_peers", n.maxPeers, "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn.RemoteAddr().String(), conn)
		n.mu.Lock()
		n.peers[peer.ID] = peer
		n.mu.Unlock()
		go n.readLoop(peer)
	}
}

func (n *Node) readLoop(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorw("readLoop panic", "peer", peer.ID, "panic", r)
		}
		peer.Close()
		n.mu.Lock()
		delete(n.peers, peer.ID)
		n.mu.Unlock()
	}()
	for {
		msg, err := peer.Receive()
		if err != nil {
			return
		}
		switch msg.Type {
		case MsgBlock:
			n.handleBlock(msg)
		case MsgAsk:
			n.handleAsk(peer, msg)
		case MsgHello:
			// no-op: connection bookkeeping only.
		default:
			n.log.Debugw("unhandled message type", "peer", peer.ID, "type", msg.Type)
		}
	}
}

func (n *Node) handleBlock(msg Message) {
	var block models.Block
	if err := json.Unmarshal(msg.Payload, &block); err != nil {
		n.log.Warnw("unmarshal block failed", "error", err)
		return
	}
	id := block.ComputeId()
	select {
	case n.blockReceived <- BlockReceived{ID: id, Block: &block}:
	default:
		n.log.Warnw("block received channel full, dropping", "block_id", id.String())
	}
}

func (n *Node) handleAsk(peer *Peer, msg Message) {
	var id models.BlockId
	if err := json.Unmarshal(msg.Payload, &id); err != nil {
		n.log.Warnw("unmarshal ask failed", "error", err)
		return
	}
	if n.provider != nil {
		if block, ok := n.provider.GetBlock(id); ok {
			data, err := json.Marshal(block)
			if err != nil {
				n.log.Warnw("marshal answer block failed", "block_id", id.String(), "error", err)
				return
			}
			if err := peer.Send(Message{Type: MsgBlock, Payload: data}); err != nil {
				n.log.Warnw("send answer block failed", "peer", peer.ID, "error", err)
			}
			return
		}
	}
	select {
	case n.dependencyQueries <- DependencyQuery{ID: id}:
	default:
		n.log.Warnw("dependency query channel full, dropping", "block_id", id.String())
	}
}
