package protocol

import (
	"encoding/json"

	"decs.evalgo.org/internal/decserr"
)

// Defined error codes (spec §6), aliased from decserr so the codes have one
// definition; decserr.ToProtocolError produces the same values.
const (
	CodeNotFound      = decserr.CodeNotFound
	CodeInvalidParams = decserr.CodeInvalidParams
)

// RequestBody is the envelope carried by every request that has a payload:
// `{ "params": <value>, "token": ..., "cid": ... }`. Only Params is consumed
// by this implementation; Token and CID pass through for the caller's own
// bookkeeping (access control is out of scope, §4.1 Access).
type RequestBody struct {
	Params  json.RawMessage `json:"params,omitempty"`
	Token   json.RawMessage `json:"token,omitempty"`
	CID     string          `json:"cid,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// DeleteParams is the body of a collection-item Delete call: the full
// resource id of the child being removed.
type DeleteParams struct {
	Rid string `json:"rid"`
}

// IncrParams is the body of a shard Incr call.
type IncrParams struct {
	Amount int32 `json:"amount"`
}

// ErrorBody is the `{"error": {...}}` reply shape.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply is the full envelope sent on a request's reply_to subject. Exactly
// one of Result/Error is populated; Result is nil (not omitted) for a bare
// success reply (`{"result":null}`).
type Reply struct {
	Result interface{} `json:"result"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// RidRef is `{"rid": "..."}`, used inside collection results and add/remove
// events.
type RidRef struct {
	Rid string `json:"rid"`
}

// ModelResult is the `result.model` payload of a Get(Model) reply.
type ModelResult struct {
	Model json.RawMessage `json:"model"`
}

// CollectionResult is the `result.collection` payload of a Get(Collection)
// reply, in the collection's stored order.
type CollectionResult struct {
	Collection []RidRef `json:"collection"`
}

// NewResult is the `result.rid` payload of a successful New reply.
type NewResult struct {
	Rid string `json:"rid"`
}

// ReplySuccess builds `{"result":null}`.
func ReplySuccess() Reply { return Reply{Result: nil} }

// ReplyWith builds `{"result": value}`.
func ReplyWith(value interface{}) Reply { return Reply{Result: value} }

// ReplyError builds `{"error":{code,message}}`.
func ReplyError(code, message string) Reply {
	return Reply{Error: &ErrorBody{Code: code, Message: message}}
}

// ChangeEvent is the payload of `event.<rid>.change`.
type ChangeEvent struct {
	Values json.RawMessage `json:"values"`
}

// AddEvent is the payload of `event.<rid>.add`.
type AddEvent struct {
	Value RidRef `json:"value"`
	Idx   int    `json:"idx"`
}

// RemoveEvent is the payload of `event.<rid>.remove`.
type RemoveEvent struct {
	Idx int `json:"idx"`
}
