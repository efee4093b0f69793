package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/channelport/courier/id"
)

// Codec encodes tasks for a queue wire format.
type Codec interface {
	Encode(t *Task) ([]byte, error)
	Decode(data []byte) (*Task, error)
	Name() string
}

// envelope is the codec-facing task representation. The ID travels as a
// plain string so that both codecs produce stable output without the
// payload codec needing to know about TypeIDs.
type envelope struct {
	ID         string         `json:"id" msgpack:"id"`
	TenantID   int64          `json:"tenant_id" msgpack:"tenant_id"`
	Kind       string         `json:"kind" msgpack:"kind"`
	Payload    map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
	EnqueuedAt int64          `json:"enqueued_at" msgpack:"enqueued_at"` // unix nanos
}

func toEnvelope(t *Task) *envelope {
	return &envelope{
		ID:         t.ID.String(),
		TenantID:   t.TenantID,
		Kind:       string(t.Kind),
		Payload:    t.Payload,
		EnqueuedAt: t.EnqueuedAt.UnixNano(),
	}
}

func (e *envelope) task() (*Task, error) {
	tid, err := id.ParseTaskID(e.ID)
	if err != nil {
		return nil, fmt.Errorf("task: decode id: %w", err)
	}
	return &Task{
		ID:         tid,
		TenantID:   e.TenantID,
		Kind:       Kind(e.Kind),
		Payload:    e.Payload,
		EnqueuedAt: unixNano(e.EnqueuedAt),
	}, nil
}

// JSONCodec encodes tasks as JSON. This is the default wire format.
type JSONCodec struct{}

func (JSONCodec) Encode(t *Task) ([]byte, error) {
	return json.Marshal(toEnvelope(t))
}

func (JSONCodec) Decode(data []byte) (*Task, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("task: decode json: %w", err)
	}
	return e.task()
}

func (JSONCodec) Name() string { return "json" }

// MsgpackCodec encodes tasks as MessagePack. Denser than JSON; preferred
// for high-volume queues such as image fetching.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(t *Task) ([]byte, error) {
	return msgpack.Marshal(toEnvelope(t))
}

func (MsgpackCodec) Decode(data []byte) (*Task, error) {
	var e envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("task: decode msgpack: %w", err)
	}
	return e.task()
}

func (MsgpackCodec) Name() string { return "msgpack" }

func unixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
