package svcconfig

import "time"

// PingEveryTicks is the number of ticks between system-registry heartbeat
// pings. It is an internal constant per spec §6, not an environment knob.
const PingEveryTicks = 200

// Service holds the knobs shared by every decs cmd/ binary.
type Service struct {
	Name        string
	LogLevel    string
	LogFormat   string
	KVBackend   string // "redis" (default) or "bolt"
	KVURL       string
	BoltPath    string
	BrokerURL   string
	HealthAddr  string
	SystemTTL   time.Duration
	TimerFPS    int // TIMER_INTERVAL_FPS, default 1
	TimerMaxFPS int // TIMER_MAX_FPS, default 10
	DefaultCap  uint32
}

// Load reads the shared service configuration from the environment, scoping
// every key under the DECS_ prefix except TIMER_INTERVAL_FPS/TIMER_MAX_FPS,
// which spec §6 names as bare, unprefixed external knobs.
func Load(serviceName string) Service {
	env := NewEnvConfig("DECS")
	timer := NewEnvConfig("")
	return Service{
		Name:        serviceName,
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
		KVBackend:   env.GetString("KV_BACKEND", "redis"),
		KVURL:       env.GetString("KV_URL", "redis://localhost:6379/0"),
		BoltPath:    env.GetString("KV_BOLT_PATH", "/tmp/decs.db"),
		BrokerURL:   env.GetString("BROKER_URL", "redis://localhost:6379/0"),
		HealthAddr:  env.GetString("HEALTH_ADDR", ":8099"),
		SystemTTL:   env.GetDuration("SYSTEM_TTL", 5*time.Minute),
		TimerFPS:    timer.GetInt("TIMER_INTERVAL_FPS", 1),
		TimerMaxFPS: timer.GetInt("TIMER_MAX_FPS", 10),
		DefaultCap:  uint32(env.GetInt("SHARD_DEFAULT_CAPACITY", 1000)),
	}
}
