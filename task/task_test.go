package task

import (
	"errors"
	"testing"

	"github.com/channelport/courier"
)

func TestNew_SetsFields(t *testing.T) {
	tk := New(42, KindSourcing, map[string]any{"product": "p-1"})
	if tk.ID.IsNil() {
		t.Fatal("expected a generated ID")
	}
	if tk.TenantID != 42 {
		t.Fatalf("tenant = %d, want 42", tk.TenantID)
	}
	if tk.EnqueuedAt.IsZero() {
		t.Fatal("expected EnqueuedAt to be set")
	}
	if err := tk.Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Task)
		want error
	}{
		{"zero tenant", func(tk *Task) { tk.TenantID = 0 }, nil},
		{"negative tenant", func(tk *Task) { tk.TenantID = -3 }, nil},
		{"unknown kind", func(tk *Task) { tk.Kind = "resize-moon" }, courier.ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New(1, KindPriceChange, nil)
			tt.mut(tk)
			err := tk.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	codecs := []Codec{JSONCodec{}, MsgpackCodec{}}
	orig := New(7, KindRegister, map[string]any{"marketplace": "lumen", "sku": "SKU-9"})

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Encode(orig)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			back, err := c.Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if back.ID.String() != orig.ID.String() {
				t.Fatalf("id mismatch: %q != %q", back.ID, orig.ID)
			}
			if back.TenantID != orig.TenantID || back.Kind != orig.Kind {
				t.Fatalf("fields mismatch: %+v", back)
			}
			if !back.EnqueuedAt.Equal(orig.EnqueuedAt) {
				t.Fatalf("enqueued_at mismatch: %v != %v", back.EnqueuedAt, orig.EnqueuedAt)
			}
			if back.Payload["marketplace"] != "lumen" {
				t.Fatalf("payload lost: %+v", back.Payload)
			}
		})
	}
}

func TestCodec_DecodeGarbage(t *testing.T) {
	if _, err := (JSONCodec{}).Decode([]byte("{nope")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestKinds_AllValid(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Fatalf("kind %q should be valid", k)
		}
	}
	if Kind("other").Valid() {
		t.Fatal("unexpected valid kind")
	}
}
