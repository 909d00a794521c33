package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kedaikopi/kopi/lib/logger"
	"github.com/kedaikopi/kopi/rpc/common"
	"github.com/kedaikopi/kopi/rpc/serializer"
	"github.com/kedaikopi/kopi/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// RPCServer hosts one store per configured shard and answers requests for
// them through the configured transport and serializer
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, *serverShard]

	mu            sync.Mutex // guards metricsServer
	metricsServer *http.Server
	shutdownOnce  sync.Once
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, *serverShard](),
	}
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle decodes a request, lets the shard's adapter answer it and encodes the response
func (s *RPCServer) handle(ctx context.Context, shardId uint64, req []byte) []byte {
	start := time.Now()

	var respMsg *common.Message
	var msg common.Message
	msgType := "unknown"

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		msgType = msg.MsgType.String()
		respMsg = shard.Adapter.Handle(ctx, &msg, shard.Store)
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`kopi_rpc_requests_total{type=%q}`, msgType)).Inc()
	if respMsg.Err != "" {
		metrics.GetOrCreateCounter(fmt.Sprintf(`kopi_rpc_errors_total{type=%q}`, msgType)).Inc()
		Logger.Debugf("request %s on shard %d failed: %s", msgType, shardId, respMsg.Err)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}

	metrics.GetOrCreateHistogram(fmt.Sprintf(`kopi_rpc_request_duration_seconds{type=%q}`, msgType)).UpdateDuration(start)
	return val
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}
	if len(s.config.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}

	Logger.Infof("Created RPC Server")
	Logger.Info(s.config.String())

	ctx, cancel := context.WithTimeout(context.Background(), s.startupTimeout())
	defer cancel()

	for _, shardConfig := range s.config.Shards {
		if _, dup := s.shards.Load(shardConfig.ShardID); dup {
			_ = s.closeShards()
			return fmt.Errorf("shard %d configured twice", shardConfig.ShardID)
		}

		shard, err := openShard(ctx, s.config, shardConfig)
		if err != nil {
			_ = s.closeShards()
			return err
		}
		s.shards.Store(shardConfig.ShardID, shard)
		Logger.Infof("created %s store for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("kopi setup completed successfully")

	s.transport.RegisterHandler(s.handle)
	return nil
}

func (s *RPCServer) startupTimeout() time.Duration {
	if s.config.TimeoutSecond > 0 {
		return time.Duration(s.config.TimeoutSecond) * time.Second
	}
	return 30 * time.Second
}

// serveMetrics exposes all VictoriaMetrics metrics in the Prometheus text format
func (s *RPCServer) serveMetrics() {
	if s.config.MetricsEndpoint == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	server := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.metricsServer = server
	s.mu.Unlock()

	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}

// Serve starts the RPC server
// This function will also initialize the shards and start the transport
// layer. It blocks until Shutdown is called or the transport fails.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	s.serveMetrics()

	err := s.transport.Listen(s.config)
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}
	return nil
}

// Shutdown stops the transport and the metrics endpoint and closes all
// shards. In-memory shards with a data directory write their snapshot.
func (s *RPCServer) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		Logger.Infof("shutting down")
		err = s.transport.Close()

		s.mu.Lock()
		metricsServer := s.metricsServer
		s.mu.Unlock()
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = errors.Join(err, metricsServer.Shutdown(ctx))
			cancel()
		}
		err = errors.Join(err, s.closeShards())
		logger.Sync()
	})
	return err
}

func (s *RPCServer) closeShards() error {
	var err error
	s.shards.Range(func(id uint64, shard *serverShard) bool {
		err = errors.Join(err, shard.close())
		s.shards.Delete(id)
		return true
	})
	return err
}
