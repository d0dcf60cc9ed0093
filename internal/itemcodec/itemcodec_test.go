package itemcodec

import (
	"bytes"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func packTestHelper(v any) ([]byte, error) { return msgpack.Marshal(v) }

func TestRoundTripNoTagsNoMeta(t *testing.T) {
	payload, err := Pack([]byte("hello"), nil, nil, 0)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	v, tags, exp, ct, err := Unpack(payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("value mismatch: %q", v)
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
	if exp != nil {
		t.Fatalf("expected nil expiry")
	}
	if ct != 0 {
		t.Fatalf("expected ctime 0, got %d", ct)
	}
}

func TestRoundTripWithTagsAndMeta(t *testing.T) {
	tags := map[string][]byte{"A": []byte("v1"), "B": []byte("v2")}
	expiry := time.Unix(1_700_000_000, 0)
	payload, err := Pack([]byte("value"), tags, &expiry, 12345)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	v, gotTags, exp, ct, err := Unpack(payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(v, []byte("value")) {
		t.Fatalf("value mismatch")
	}
	if len(gotTags) != 2 || !bytes.Equal(gotTags["A"], []byte("v1")) || !bytes.Equal(gotTags["B"], []byte("v2")) {
		t.Fatalf("tags mismatch: %v", gotTags)
	}
	if exp == nil || exp.Unix() != expiry.Unix() {
		t.Fatalf("expiry mismatch: %v", exp)
	}
	if ct != 12345 {
		t.Fatalf("ctime mismatch: %d", ct)
	}
}

func TestCtimeSaturatesAtMax(t *testing.T) {
	expiry := time.Unix(1000, 0)
	payload, err := Pack(nil, nil, &expiry, MaxCtimeMS+1000)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	_, _, _, ct, err := Unpack(payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if ct != MaxCtimeMS {
		t.Fatalf("expected saturated ctime %d, got %d", MaxCtimeMS, ct)
	}
}

func TestUnpackRejectsUnknownKey(t *testing.T) {
	// Build a payload with an extra key by hand via a second envelope shape.
	type bad struct {
		Value []byte `msgpack:"$"`
		Extra int    `msgpack:"@"`
	}
	b, err := packTestHelper(bad{Value: []byte("x"), Extra: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, _, _, _, err := Unpack(b); err == nil {
		t.Fatalf("expected error for unexpected key")
	}
}

func TestUnpackRejectsMissingValue(t *testing.T) {
	type bad struct {
		Meta []byte `msgpack:"^"`
	}
	b, err := packTestHelper(bad{Meta: []byte{0, 0, 0, 1}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, _, _, _, err := Unpack(b); err == nil {
		t.Fatalf("expected error for missing \"$\"")
	}
}

func TestMetaShorterThan8BytesPadsCtime(t *testing.T) {
	// ctime small enough to truncate to 1 byte -> total meta length 5.
	expiry := time.Unix(42, 0)
	payload, err := Pack([]byte("v"), nil, &expiry, 7)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	_, _, exp, ct, err := Unpack(payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if exp.Unix() != 42 || ct != 7 {
		t.Fatalf("got exp=%v ct=%d", exp, ct)
	}
}
