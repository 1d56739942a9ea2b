// Copyright 2024 Andrew Dunstall. All rights reserved.
//
// Use of this source code is governed by a MIT style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"net"
	"sort"

	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/counter"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/transfer"
	"github.com/andydunstall/rumor/pkg/uniqueid"
	"github.com/andydunstall/rumor/server/admin"
	"github.com/andydunstall/rumor/server/api"
	"github.com/andydunstall/rumor/server/config"
	"github.com/andydunstall/rumor/server/status"
)

// Server is a rumor server node.
//
// The node listens on three ports: the 'api' port for client requests, the
// 'admin' port to inspect the node and the 'transfer' port for transfers from
// other nodes.
type Server struct {
	conf *config.Config

	engine *broadcast.Engine

	transport *transfer.Transport

	transferListener *transfer.Listener

	apiLn net.Listener

	adminLn     net.Listener
	adminServer *admin.Server

	// counter is nil unless a counter backend is configured.
	counter    *counter.Counter
	etcdClient *clientv3.Client

	registry *prometheus.Registry

	logger log.Logger
}

// NewServer creates a server node and binds its listeners, though doesn't
// accept connections until the server is run.
func NewServer(conf *config.Config, logger log.Logger) (*Server, error) {
	s := &Server{
		conf:     conf,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	peers, err := conf.Cluster.ParsePeers()
	if err != nil {
		return nil, fmt.Errorf("peers: %w", err)
	}

	transferLn, err := net.Listen("tcp", conf.Transfer.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("transfer listen: %s: %w", conf.Transfer.BindAddr, err)
	}
	if conf.Transfer.AdvertiseAddr == "" {
		conf.Transfer.AdvertiseAddr = transferLn.Addr().String()
	}

	transferMetrics := transfer.NewMetrics()
	transferMetrics.Register(s.registry)

	s.transport = transfer.NewTransport(
		conf.Cluster.NodeID, peers, transferMetrics, logger,
	)
	s.engine = broadcast.NewEngine(
		conf.Cluster.NodeID, s.transport, &conf.Broadcast, logger,
	)
	s.engine.Metrics().Register(s.registry)

	neighbours := conf.Cluster.Neighbours
	if len(neighbours) == 0 {
		neighbours = conf.Cluster.PeerIDs()
	}
	s.engine.SetNeighbours(neighbours)

	s.transferListener = transfer.NewListener(
		transferLn,
		conf.Cluster.NodeID,
		s.engine,
		conf.Transfer.Timeout,
		transferMetrics,
		logger,
	)

	if conf.Counter.Enabled() {
		etcdClient, err := clientv3.New(clientv3.Config{
			Endpoints:   conf.Counter.Etcd.Endpoints,
			DialTimeout: conf.Counter.Etcd.DialTimeout,
			Logger:      zap.NewNop(),
		})
		if err != nil {
			_ = transferLn.Close()
			return nil, fmt.Errorf("etcd: %w", err)
		}
		s.etcdClient = etcdClient
		s.counter = counter.NewCounter(
			counter.NewEtcdKV(etcdClient, conf.Counter.Etcd.Prefix),
			conf.Counter.Key,
			logger,
		)
		s.counter.Metrics().Register(s.registry)
	}

	s.apiLn, err = net.Listen("tcp", conf.API.BindAddr)
	if err != nil {
		s.closeListeners()
		return nil, fmt.Errorf("api listen: %s: %w", conf.API.BindAddr, err)
	}

	s.adminLn, err = net.Listen("tcp", conf.Admin.BindAddr)
	if err != nil {
		s.closeListeners()
		return nil, fmt.Errorf("admin listen: %s: %w", conf.Admin.BindAddr, err)
	}
	s.adminServer = admin.NewServer(s.registry, logger)
	s.adminServer.AddStatus("/broadcast", status.NewBroadcast(s.engine))

	return s, nil
}

// Run accepts connections and runs broadcast rounds until the context is
// cancelled, then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(
		"starting rumor server",
		zap.String("node-id", s.conf.Cluster.NodeID),
		zap.Strings("neighbours", s.engine.Neighbours()),
	)

	allocator, err := s.newAllocator()
	if err != nil {
		s.closeListeners()
		return fmt.Errorf("unique id: %w", err)
	}
	apiServer := api.NewServer(
		s.engine,
		allocator,
		s.counter,
		s.registry,
		s.logger,
	)

	s.engine.Start()
	defer s.engine.Close()

	if s.etcdClient != nil {
		defer s.etcdClient.Close()
	}

	s.adminServer.SetReady(true)

	var group rungroup.Group

	// Termination handler.
	runCtx, runCancel := context.WithCancel(ctx)
	group.Add(func() error {
		<-runCtx.Done()
		s.logger.Info("shutting down server")
		s.adminServer.SetReady(false)
		return nil
	}, func(error) {
		runCancel()
	})

	// API server.
	group.Add(func() error {
		if err := apiServer.Serve(s.apiLn); err != nil {
			return fmt.Errorf("api server serve: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.conf.GracePeriod,
		)
		defer cancel()

		// Pending submits wait for a round so the engine must still be
		// running.
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to gracefully shutdown api server", zap.Error(err))
		}

		s.logger.Info("api server shut down")
	})

	// Transfer listener.
	group.Add(func() error {
		if err := s.transferListener.Serve(); err != nil {
			return fmt.Errorf("transfer listener serve: %w", err)
		}
		return nil
	}, func(error) {
		if err := s.transferListener.Close(); err != nil {
			s.logger.Warn("failed to close transfer listener", zap.Error(err))
		}

		s.logger.Info("transfer listener shut down")
	})

	// Admin server.
	group.Add(func() error {
		if err := s.adminServer.Serve(s.adminLn); err != nil {
			return fmt.Errorf("admin server serve: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.conf.GracePeriod,
		)
		defer cancel()

		if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to gracefully shutdown admin server", zap.Error(err))
		}

		s.logger.Info("admin server shut down")
	})

	if err := group.Run(); err != nil {
		return err
	}

	s.logger.Info("shutdown complete")

	return nil
}

// AddPeer adds a node to the cluster. Unless the neighbours were configured
// explicitly, the peer is also added as a neighbour.
//
// Peers must be added before the server is run to be included when
// allocating unique IDs.
func (s *Server) AddPeer(id string, addr string) {
	s.transport.SetPeer(id, addr)

	if len(s.conf.Cluster.Neighbours) == 0 {
		neighbours := append(s.engine.Neighbours(), id)
		sort.Strings(neighbours)
		s.engine.SetNeighbours(neighbours)
	}
}

func (s *Server) Config() *config.Config {
	return s.conf
}

func (s *Server) Engine() *broadcast.Engine {
	return s.engine
}

func (s *Server) APIAddr() string {
	return s.apiLn.Addr().String()
}

func (s *Server) AdminAddr() string {
	return s.adminLn.Addr().String()
}

func (s *Server) TransferAddr() string {
	return s.conf.Transfer.AdvertiseAddr
}

// newAllocator returns a unique ID allocator using this nodes index in the
// set of known node IDs.
func (s *Server) newAllocator() (*uniqueid.Allocator, error) {
	ids := []string{s.conf.Cluster.NodeID}
	for _, id := range s.transport.Peers() {
		if id != s.conf.Cluster.NodeID {
			ids = append(ids, id)
		}
	}
	index, ok := uniqueid.IndexOf(s.conf.Cluster.NodeID, ids)
	if !ok {
		return nil, fmt.Errorf("node not found: %s", s.conf.Cluster.NodeID)
	}
	return uniqueid.NewAllocator(index, len(ids))
}

func (s *Server) closeListeners() {
	_ = s.transferListener.Close()
	if s.apiLn != nil {
		_ = s.apiLn.Close()
	}
	if s.adminLn != nil {
		_ = s.adminLn.Close()
	}
	if s.etcdClient != nil {
		_ = s.etcdClient.Close()
	}
}
