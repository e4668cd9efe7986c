package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kcnet/incentives/devnet"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/sampling"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/staking"
)

type Server struct {
	cfg     Config
	store   *ledger.Store
	network *devnet.Network
	api     *api

	blockTime time.Duration

	restListener    net.Listener
	metricsListener net.Listener
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := logging.FromContext(ctx)

	params := devnet.DefaultParams()
	if cfg.NetworkParams != "" {
		var err error
		if params, err = devnet.LoadParams(cfg.NetworkParams); err != nil {
			return nil, fmt.Errorf("loading network parameters: %w", err)
		}
	}
	network, err := devnet.New(
		params,
		devnet.WithLogger(logger.Named("devnet")),
		devnet.WithChunkByteSize(cfg.Sampling.ChunkByteSize),
	)
	if err != nil {
		return nil, fmt.Errorf("creating devnet: %w", err)
	}

	store, err := ledger.Open(ctx, cfg.DbDir, ledger.WithLogger(logger.Named("ledger")))
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	s, err := newServer(ctx, cfg, store, network, params.BlockTime.Duration)
	if err != nil {
		return nil, multierror.Append(err, store.Close()).ErrorOrNil()
	}
	return s, nil
}

func newServer(
	ctx context.Context,
	cfg Config,
	store *ledger.Store,
	network *devnet.Network,
	blockTime time.Duration,
) (*Server, error) {
	calculator := score.NewCalculator(network, network, network, network)
	sampler, err := sampling.New(
		store,
		network,
		network,
		network,
		network,
		calculator,
		sampling.WithConfig(cfg.Sampling),
	)
	if err != nil {
		return nil, fmt.Errorf("creating challenge engine: %w", err)
	}
	if err := sampler.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing proof period: %w", err)
	}
	staker, err := staking.New(store, network, network, network, network, staking.WithConfig(cfg.Staking))
	if err != nil {
		return nil, fmt.Errorf("creating staking engine: %w", err)
	}

	restListener, err := net.Listen("tcp", cfg.RawRESTListener)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	var metricsListener net.Listener
	if cfg.MetricsPort != nil {
		metricsListener, err = net.Listen("tcp", fmt.Sprintf(":%d", *cfg.MetricsPort))
		if err != nil {
			return nil, multierror.Append(fmt.Errorf("failed to listen for metrics: %w", err), restListener.Close())
		}
	}

	return &Server{
		cfg:     cfg,
		store:   store,
		network: network,
		api: &api{
			store:   store,
			sampler: sampler,
			staker:  staker,
			scorer:  calculator,
			network: network,
		},
		blockTime:       blockTime,
		restListener:    restListener,
		metricsListener: metricsListener,
	}, nil
}

// Close releases the ledger and the listeners. Listeners already closed by
// Start are skipped.
func (s *Server) Close() error {
	var result *multierror.Error
	for _, l := range []net.Listener{s.restListener, s.metricsListener} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("closing listener %s: %w", l.Addr(), err))
		}
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing ledger: %w", err))
	}
	return result.ErrorOrNil()
}

// RestAddr returns the address the REST API is listening on.
func (s *Server) RestAddr() net.Addr {
	return s.restListener.Addr()
}

// MetricsAddr returns the address metrics are served on, or nil.
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsListener == nil {
		return nil
	}
	return s.metricsListener.Addr()
}

// Network returns the devnet backing the engines.
func (s *Server) Network() *devnet.Network {
	return s.network
}

// Start serves the REST API, metrics and the block producer until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)
	logger.Info("starting incentives server", zap.Inline(s.cfg))

	handler := s.api.router(logger.Named("api"), apiOptions{
		allowedOrigins: s.cfg.AllowedOrigins,
		devnetRoutes:   !s.cfg.DisableDevnetAPI,
	})
	servers := []*http.Server{{Handler: handler, ReadHeaderTimeout: time.Second * 5}}
	listeners := []net.Listener{s.restListener}
	if s.metricsListener != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 5})
		listeners = append(listeners, s.metricsListener)
	}
	for i, server := range servers {
		server := server
		listener := listeners[i]
		serverGroup.Go(func() error {
			logger.Sugar().Infof("HTTP server listening on %s", listener.Addr())
			err := server.Serve(listener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	if !s.cfg.DisableProducer && s.blockTime > 0 {
		logger.Info("starting devnet block producer", zap.Duration("block_time", s.blockTime))
		serverGroup.Go(func() error {
			return s.produceBlocks(ctx)
		})
	}

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown server: %s", err)
		}
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
	}
	return nil
}

func (s *Server) produceBlocks(ctx context.Context) error {
	ticker := time.NewTicker(s.blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			height := s.network.Produce(1)
			logging.FromContext(ctx).Debug("produced block", zap.Uint64("height", height))
		}
	}
}
