package bus

import (
	"testing"
)

func TestDecodeFrames(t *testing.T) {
	env, err := DecodeFrames([][]byte{[]byte("polygon"), []byte(`{"x":1}`)})
	if err != nil {
		t.Fatalf("DecodeFrames error: %v", err)
	}
	if env.Topic != "polygon" {
		t.Fatalf("topic = %q, want polygon", env.Topic)
	}
	if string(env.Payload) != `{"x":1}` {
		t.Fatalf("payload = %s", env.Payload)
	}
}

func TestDecodeFramesWrongCount(t *testing.T) {
	cases := [][][]byte{
		nil,
		{[]byte("only-topic")},
		{[]byte("a"), []byte("b"), []byte("c")},
	}
	for _, frames := range cases {
		if _, err := DecodeFrames(frames); err == nil {
			t.Errorf("DecodeFrames(%d frames) should fail", len(frames))
		}
	}
}

func TestDecodeFramesBadTopic(t *testing.T) {
	if _, err := DecodeFrames([][]byte{{0xff, 0xfe}, []byte(`{}`)}); err == nil {
		t.Fatal("invalid UTF-8 topic should fail")
	}
}

func TestDecodeFramesPassesPayloadThrough(t *testing.T) {
	// Payload validity is the consumer's concern; the decoder must not reject it.
	env, err := DecodeFrames([][]byte{[]byte("t"), []byte(`not json`)})
	if err != nil {
		t.Fatalf("DecodeFrames error: %v", err)
	}
	if string(env.Payload) != "not json" {
		t.Fatalf("payload = %s", env.Payload)
	}
}
