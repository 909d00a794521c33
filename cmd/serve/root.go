package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/kedaikopi/kopi/cmd/util"
	"github.com/kedaikopi/kopi/rpc/common"
	"github.com/kedaikopi/kopi/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the kopi server",
		Long: `Start the kopi server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KOPI_<flag> (e.g. KOPI_REDIS_ADDR=localhost:6379)

Every shard is one table (named <table>_<id>) behind its own store. Engines:
  maple  in-memory, snapshotted to --data-dir on shutdown if set
  bolt   bbolt file in --data-dir
  level  goleveldb directory in --data-dir
  redis  redis hash, needs --redis-addr
  s3     one object per row, needs --s3-bucket
Append +cache to an engine to enable the read cache of the shard.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=maple+cache", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=ENGINE or ID=ENGINE+cache where ENGINE is one of: maple, bolt, level, redis, s3"))

	key = "table"
	ServeCmd.PersistentFlags().String(key, "kv_store", cmdUtil.WrapString("Table name of the shards, the shard id is appended (e.g. kv_store_100)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory of the bolt and level files and of the maple snapshots. Empty keeps maple shards in memory only"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of a single request and of the shard setup"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/kopi.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the Prometheus /metrics endpoint (e.g. localhost:9090). Empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "redis-addr"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the redis server for redis shards (e.g. localhost:6379)"))

	key = "redis-password"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Password of the redis server"))

	key = "redis-db"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Redis database number"))

	key = "s3-bucket"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Bucket of s3 shards"))

	key = "s3-region"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Region of the s3 bucket (defaults to the AWS configuration)"))

	key = "s3-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Custom s3 endpoint, e.g. a local MinIO (http://localhost:9000)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	serveCmdConfig.Shards = []common.ServerShard{}
	for _, def := range strings.Split(viper.GetString("shards"), ",") {
		if strings.TrimSpace(def) == "" {
			continue
		}
		shard, err := common.ParseServerShard(def)
		if err != nil {
			return err
		}
		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shard)
	}
	if len(serveCmdConfig.Shards) == 0 {
		return fmt.Errorf("at least one shard is required")
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Table = viper.GetString("table")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Redis = common.RedisConfig{
		Addr:     viper.GetString("redis-addr"),
		Password: viper.GetString("redis-password"),
		DB:       viper.GetInt("redis-db"),
	}
	serveCmdConfig.S3 = common.S3Config{
		Bucket:   viper.GetString("s3-bucket"),
		Region:   viper.GetString("s3-region"),
		Endpoint: viper.GetString("s3-endpoint"),
	}

	return nil
}

// run starts the kopi server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan error, 1)
	go func() { done <- serv.Serve() }()

	select {
	case err := <-done:
		return err
	case sig := <-signals:
		server.Logger.Infof("received %s", sig)
		if err := serv.Shutdown(); err != nil {
			return err
		}
		return <-done
	}
}
