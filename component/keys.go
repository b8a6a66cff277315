package component

import (
	"fmt"

	"decs.evalgo.org/protocol"
)

// Type tags stamped at "<key>:type" (spec §6).
const (
	typeModel      = "M"
	typeCollection = "C"
)

func typeKey(key string) string { return key + ":type" }

func idCounterKey(parentKey string) string { return parentKey + ":id" }

func membershipKey(shard, component string) string {
	return protocol.MembershipKey(shard, component)
}

func incrSubject(shard string) string {
	return fmt.Sprintf("call.decs.shard.%s.incr", shard)
}
