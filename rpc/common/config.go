package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShardType names the table engine behind a shard
type ServerShardType string

const (
	ShardTypeMaple ServerShardType = "maple"
	ShardTypeBolt  ServerShardType = "bolt"
	ShardTypeLevel ServerShardType = "level"
	ShardTypeRedis ServerShardType = "redis"
	ShardTypeS3    ServerShardType = "s3"
)

// ShardTypes lists all engines a shard can use
var ShardTypes = []ServerShardType{ShardTypeMaple, ShardTypeBolt, ShardTypeLevel, ShardTypeRedis, ShardTypeS3}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is the table engine of the shard
	Type ServerShardType
	// Cache enables the read cache of the shard's store
	Cache bool
}

// String renders the shard the way it is configured, e.g. "100=maple+cache"
func (s ServerShard) String() string {
	out := fmt.Sprintf("%d=%s", s.ShardID, s.Type)
	if s.Cache {
		out += "+cache"
	}
	return out
}

// ParseServerShard parses a shard definition of the form ID=ENGINE or ID=ENGINE+cache
func ParseServerShard(def string) (ServerShard, error) {
	parts := strings.SplitN(strings.TrimSpace(def), "=", 2)
	if len(parts) != 2 {
		return ServerShard{}, fmt.Errorf("invalid shard definition %q (expected ID=ENGINE[+cache])", def)
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ServerShard{}, fmt.Errorf("invalid shard id in %q: %w", def, err)
	}

	shard := ServerShard{ShardID: id}
	engine := strings.ToLower(parts[1])
	if strings.HasSuffix(engine, "+cache") {
		shard.Cache = true
		engine = strings.TrimSuffix(engine, "+cache")
	}

	for _, t := range ShardTypes {
		if string(t) == engine {
			shard.Type = t
			return shard, nil
		}
	}
	return ServerShard{}, fmt.Errorf("unknown engine %q in shard definition %q", engine, def)
}

// RedisConfig holds the connection parameters of redis backed shards
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config holds the connection parameters of S3 backed shards
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// ServerConfig holds all configuration parameters of the RPC server.
type ServerConfig struct {
	// Shards hosted by this server
	Shards []ServerShard

	// Table name (shards append their id)
	Table string

	// Directory for file based engines and maple snapshots
	DataDir string

	// Remote backends
	Redis RedisConfig
	S3    S3Config

	// Request timeout
	TimeoutSecond int64

	// RPC api settings
	Endpoint string

	// Prometheus metrics endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// HasShardType checks if the configuration contains a shard of the given type
func (c *ServerConfig) HasShardType(t ServerShardType) bool {
	for _, shard := range c.Shards {
		if shard.Type == t {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards, sorted by id
	addSection("Shards")
	shards := append([]ServerShard(nil), c.Shards...)
	sort.Slice(shards, func(i, j int) bool { return shards[i].ShardID < shards[j].ShardID })
	for _, shard := range shards {
		engine := string(shard.Type)
		if shard.Cache {
			engine += " (cached)"
		}
		addField(strconv.FormatUint(shard.ShardID, 10), engine)
	}

	// Storage
	addSection("Storage")
	addField("Table", c.Table)
	if c.DataDir != "" {
		addField("Data Directory", c.DataDir)
	}
	if c.HasShardType(ShardTypeRedis) {
		addField("Redis Address", c.Redis.Addr)
		addField("Redis DB", strconv.Itoa(c.Redis.DB))
	}
	if c.HasShardType(ShardTypeS3) {
		addField("S3 Bucket", c.S3.Bucket)
		if c.S3.Endpoint != "" {
			addField("S3 Endpoint", c.S3.Endpoint)
		}
		if c.S3.Region != "" {
			addField("S3 Region", c.S3.Region)
		}
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	BufferSize             int // Read/write buffer of stream transports in bytes (0 = default)
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
