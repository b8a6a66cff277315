// Package protocol implements the resource-oriented real-time protocol: the
// subject grammar, resource id <-> KV key mapping, and the JSON envelopes
// carried over the broker.
package protocol

import (
	"fmt"
	"strings"

	"decs.evalgo.org/internal/decserr"
)

// Verb identifies which resource-protocol operation a subject encodes.
type Verb int

const (
	// VerbAccess is an authorization query (`access.<rid>`).
	VerbAccess Verb = iota
	// VerbGet reads a model or collection (`get.<rid>`).
	VerbGet
	// VerbSet upserts a model (`call.<rid>.set`).
	VerbSet
	// VerbNew appends to a collection (`call.<rid>.new`).
	VerbNew
	// VerbDelete removes a model or collection child (`call.<rid>.delete`).
	VerbDelete
	// VerbCall is any other `call.<rid>.<method>` custom method.
	VerbCall
)

func (v Verb) String() string {
	switch v {
	case VerbAccess:
		return "access"
	case VerbGet:
		return "get"
	case VerbSet:
		return "set"
	case VerbNew:
		return "new"
	case VerbDelete:
		return "delete"
	case VerbCall:
		return "call"
	default:
		return "unknown"
	}
}

// Request is a parsed ResProtocolRequest: a verb plus the resource id (and,
// for VerbCall, the custom method name) it targets.
type Request struct {
	Verb   Verb
	RID    string
	Method string // only set when Verb == VerbCall
}

// Parse derives a Request from a broker subject, per spec §4.1's dispatch
// table. Subjects that don't match any shape are a protocol-shape error
// (decserr.KindBadSubject), logged by the caller and never replied to.
func Parse(subject string) (Request, error) {
	parts := strings.Split(subject, ".")
	if len(parts) < 2 {
		return Request{}, decserr.BadSubject("protocol.Parse", errMalformed(subject))
	}

	switch parts[0] {
	case "access":
		return Request{Verb: VerbAccess, RID: strings.Join(parts[1:], ".")}, nil
	case "get":
		return Request{Verb: VerbGet, RID: strings.Join(parts[1:], ".")}, nil
	case "call":
		if len(parts) < 3 {
			return Request{}, decserr.BadSubject("protocol.Parse", errMalformed(subject))
		}
		method := parts[len(parts)-1]
		rid := strings.Join(parts[1:len(parts)-1], ".")
		switch method {
		case "set":
			return Request{Verb: VerbSet, RID: rid}, nil
		case "new":
			return Request{Verb: VerbNew, RID: rid}, nil
		case "delete":
			return Request{Verb: VerbDelete, RID: rid}, nil
		default:
			return Request{Verb: VerbCall, RID: rid, Method: method}, nil
		}
	default:
		return Request{}, decserr.BadSubject("protocol.Parse", errMalformed(subject))
	}
}

// String reconstructs the subject a Request was parsed from; round-trips
// with Parse for every legal subject (spec §8 property test).
func (r Request) String() string {
	switch r.Verb {
	case VerbAccess:
		return "access." + r.RID
	case VerbGet:
		return "get." + r.RID
	case VerbSet:
		return "call." + r.RID + ".set"
	case VerbNew:
		return "call." + r.RID + ".new"
	case VerbDelete:
		return "call." + r.RID + ".delete"
	case VerbCall:
		return "call." + r.RID + "." + r.Method
	default:
		return ""
	}
}

type malformedSubject string

func (m malformedSubject) Error() string { return "poorly formed subject: " + string(m) }

func errMalformed(subject string) error { return malformedSubject(subject) }

// RIDToKey converts a dotted resource id into its colon-delimited KV key, per
// spec §3's resource identifier grammar ("colons ↔ dots").
func RIDToKey(rid string) string {
	return strings.ReplaceAll(rid, ".", ":")
}

// ParentRID strips the last dot-segment off a child collection-item rid,
// returning the parent collection's rid.
func ParentRID(rid string) string {
	i := strings.LastIndex(rid, ".")
	if i < 0 {
		return rid
	}
	return rid[:i]
}

// SplitComponentRID splits a model/collection resource id of the shape
// `decs.components.{shard}.{entity}.{component}` into its parts. Returns ok
// == false if rid doesn't have at least that many segments.
func SplitComponentRID(rid string) (shard, entity, component string, ok bool) {
	parts := strings.Split(rid, ".")
	if len(parts) < 5 || parts[0] != "decs" || parts[1] != "components" {
		return "", "", "", false
	}
	return parts[2], parts[3], parts[4], true
}

// MembershipKey is the KV key of the set of entities in shard that have
// component: `decs:{shard}:{component}:entities` (spec §6). Both the
// component manager and the system manager's frame dispatch read/write this
// same key space, so it is shared here rather than duplicated per package.
func MembershipKey(shard, component string) string {
	return fmt.Sprintf("decs:%s:%s:entities", shard, component)
}

// ShardRegistryKey is the KV key of the ordered list of known shard names
// (spec §6). The shard manager and the game-loop ticker both read this same
// key, so it is shared here rather than duplicated per package.
const ShardRegistryKey = "decs:shards"
