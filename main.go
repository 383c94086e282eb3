// Command fastestssbc runs a single coordination node: it registers
// with the account registry, builds its clock/queue/ledger/coordinator,
// and serves both the east-west peer routes and the north-bound
// operator routes on one listener.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudflare/cfssl/log"

	"github.com/fastestssbc/chain"
	"github.com/fastestssbc/clock"
	"github.com/fastestssbc/config"
	"github.com/fastestssbc/coordinator"
	"github.com/fastestssbc/meta"
	fsnet "github.com/fastestssbc/net"
	"github.com/fastestssbc/peers"
	"github.com/fastestssbc/queue"
	"github.com/fastestssbc/redis"
	"github.com/fastestssbc/registry"
	"github.com/fastestssbc/util"
)

func main() {
	cfg, err := config.LoadNodeConfig()
	if err != nil {
		log.Errorf("load node config: %v", err)
		os.Exit(1)
	}

	regClient := registry.NewClient(cfg.RegistryAddr, cfg.OperatorTimeout)
	reg, err := regClient.RegisterNode(cfg.AdvertiseAddr)
	if err != nil {
		log.Errorf("register with %s: %v", cfg.RegistryAddr, err)
		os.Exit(1)
	}
	log.Infof("registered as node %d, initial balance %d, %d known peers",
		reg.NodeId, reg.InitialBalance, len(reg.Peers))

	dir := peers.New(reg.NodeId, reg.Peers)

	// Every outbound peer message is signed so a receiver can check it
	// wasn't altered or forged in transit (§6); the keypair is
	// generated fresh per process, not distributed through the
	// registry, since the signature carries its own verification key.
	prvKey, pubKey := util.GetKeyPair()

	// The transport needs a handle on the coordinator before the
	// coordinator can be constructed (New takes the transport as an
	// argument); relay indirects through a pointer set right after.
	relay := &coordinatorRelay{}
	peerSrv := fsnet.NewPeerServer(relay)
	peerClient := fsnet.NewPeerClient(reg.NodeId, dir, cfg.MaxRetries, cfg.Backoff, relay, prvKey, pubKey)

	coord := coordinator.New(reg.NodeId, clock.New(), queue.New(), chain.New(), dir, peerClient, regClient)
	relay.coord = coord

	opSrv := fsnet.NewOperatorServer(coord, cfg.OperatorTimeout)

	if cfg.RedisAddr != "" {
		mirror := redis.NewMirror(cfg.RedisAddr, reg.NodeId)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go mirror.Run(ctx, cfg.OperatorTimeout, func() interface{} { return coord.Inspect() })
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.OperatorTimeout)
		defer cancel()
		if err := regClient.Unregister(ctx, reg.NodeId); err != nil {
			log.Errorf("unregister from %s: %v", cfg.RegistryAddr, err)
		}
		os.Exit(0)
	}()

	log.Infof("node %d listening on %s", reg.NodeId, cfg.ListenAddr)
	if err := fsnet.Listen(cfg.ListenAddr, peerSrv, opSrv); err != nil {
		log.Errorf("listener stopped: %v", err)
		os.Exit(1)
	}
}

// coordinatorRelay implements both fsnet.InboundHandler and
// fsnet.UnreachableReporter by forwarding to coord once it's set.
type coordinatorRelay struct {
	coord *coordinator.Coordinator
}

func (r *coordinatorRelay) HandleRequest(env meta.RequestEnvelope) { r.coord.HandleRequest(env) }
func (r *coordinatorRelay) HandleReply(env meta.ReplyEnvelope)     { r.coord.HandleReply(env) }
func (r *coordinatorRelay) HandleRelease(env meta.ReleaseEnvelope) { r.coord.HandleRelease(env) }

func (r *coordinatorRelay) ReportUnreachable(peer meta.NodeId, key meta.RequestKey) {
	r.coord.ReportUnreachable(peer, key)
}
