package config

import (
	"encoding/json"
	"os"

	"SeqChat/logger"
	"SeqChat/tools/decode"
)

const NodeTypeMsgGateway = "msgGateWay"

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type MongoConfig struct {
	URI         string `json:"uri"`
	Database    string `json:"database"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	MaxPoolSize uint64 `json:"max_pool_size"`
}

type NatsConfig struct {
	Servers []string `json:"servers"`
	Name    string   `json:"name"`
}

// OrderingConfig are the engine knobs, in milliseconds on the wire.
type OrderingConfig struct {
	GapTimeoutMs        int64 `json:"gap_timeout_ms"`
	MaxBufferSize       int   `json:"max_buffer_size"`
	InactivityTimeoutMs int64 `json:"inactivity_timeout_ms"`
	SweepIntervalMs     int64 `json:"sweep_interval_ms"`
}

type AppConfig struct {
	NodeType string         `json:"node_type"`
	NodeID   int64          `json:"node_id"`
	Gateway  string         `json:"gateway_id"`
	Port     int            `json:"port"`
	Redis    RedisConfig    `json:"redis"`
	Mongo    MongoConfig    `json:"mongo"`
	Nats     NatsConfig     `json:"nats"`
	Ordering OrderingConfig `json:"ordering"`
}

var Global = AppConfig{
	NodeType: NodeTypeMsgGateway,
	NodeID:   100,
	Gateway:  "gateway_10",
	Port:     8080,
	Redis:    RedisConfig{Addr: "127.0.0.1:6379", DB: 0, PoolSize: 20},
	Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "seqchat", MaxPoolSize: 20},
	Nats:     NatsConfig{Servers: []string{"nats://127.0.0.1:4222"}, Name: "seqchat-gateway"},
	Ordering: OrderingConfig{
		GapTimeoutMs:        5000,
		MaxBufferSize:       100,
		InactivityTimeoutMs: 3_600_000,
		SweepIntervalMs:     600_000,
	},
}

// LoadFile reads a JSON override file and applies it onto Global.
func LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	ApplyOverrides(m)
	return nil
}

// ApplyOverrides decodes a dynamic override map (env file, config center
// push) into Global. Unknown keys are ignored, typed loosely.
func ApplyOverrides(m map[string]any) {
	if len(m) == 0 {
		return
	}
	out, err := decode.DecodeMap[AppConfig](m)
	if err != nil {
		logger.Errorf("config override decode failed: %v", err)
		return
	}
	merged := *out
	// zero-valued sections keep their defaults
	if merged.Port == 0 {
		merged.Port = Global.Port
	}
	if merged.Gateway == "" {
		merged.Gateway = Global.Gateway
	}
	if merged.NodeType == "" {
		merged.NodeType = Global.NodeType
	}
	if merged.NodeID == 0 {
		merged.NodeID = Global.NodeID
	}
	if merged.Redis.Addr == "" {
		merged.Redis = Global.Redis
	}
	if merged.Mongo.URI == "" {
		merged.Mongo = Global.Mongo
	}
	if len(merged.Nats.Servers) == 0 {
		merged.Nats = Global.Nats
	}
	if merged.Ordering.GapTimeoutMs == 0 {
		merged.Ordering.GapTimeoutMs = Global.Ordering.GapTimeoutMs
	}
	if merged.Ordering.MaxBufferSize == 0 {
		merged.Ordering.MaxBufferSize = Global.Ordering.MaxBufferSize
	}
	if merged.Ordering.InactivityTimeoutMs == 0 {
		merged.Ordering.InactivityTimeoutMs = Global.Ordering.InactivityTimeoutMs
	}
	if merged.Ordering.SweepIntervalMs == 0 {
		merged.Ordering.SweepIntervalMs = Global.Ordering.SweepIntervalMs
	}
	Global = merged
}
