package shard

import "decs.evalgo.org/protocol"

const (
	registryKey  = protocol.ShardRegistryKey
	defaultShard = "the_void"
	defaultCap   = 1000
)

func shardKey(name string) string { return "decs:shard:" + name }
func countKey(name string) string { return "decs:shard:" + name + ":count" }
func shardRID(name string) string { return "decs.shard." + name }
