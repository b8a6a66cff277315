package system

import "time"

const (
	registryKey    = "decs:systems"
	pingEveryTicks = 200
	detailTTL      = 5 * time.Minute

	registrySubject      = "decs.system.registry"
	registryReplySubject = "decs.system.registry.replies"
)

func detailKey(name string) string { return "system:" + name }
func systemRID(name string) string { return "decs.system." + name }

func framesSubject(shard, system string) string {
	return "decs.frames." + shard + "." + system
}
