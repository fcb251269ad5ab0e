// pkg/wireproto/wireproto_test.go
package wireproto

import (
	"bytes"
	"testing"

	"vecindex/pkg/types"
)

func TestInitRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := InitMessage{Dim: 128, Metric: types.DistanceMetricCosine, Quantization: types.QuantizationF32, M: 16, EfConstruction: 200}
	if err := WriteInit(&buf, msg); err != nil {
		t.Fatalf("WriteInit: %v", err)
	}

	r := NewReader(&buf)
	kind, body, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindInit {
		t.Fatalf("expected KindInit, got %v", kind)
	}

	got, err := DecodeInit(body)
	if err != nil {
		t.Fatalf("DecodeInit: %v", err)
	}
	if got != msg {
		t.Errorf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestTupleRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := TupleMessage{RowID: 42, Vector: types.NewVector([]float32{1, 2, 3})}
	if err := WriteTuple(&buf, msg); err != nil {
		t.Fatalf("WriteTuple: %v", err)
	}

	r := NewReader(&buf)
	kind, body, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindTuple {
		t.Fatalf("expected KindTuple, got %v", kind)
	}

	got, err := DecodeTuple(body)
	if err != nil {
		t.Fatalf("DecodeTuple: %v", err)
	}
	if got.RowID != msg.RowID {
		t.Errorf("rowID mismatch: got %d want %d", got.RowID, msg.RowID)
	}
	if got.Vector.Dimension() != msg.Vector.Dimension() {
		t.Errorf("dimension mismatch: got %d want %d", got.Vector.Dimension(), msg.Vector.Dimension())
	}
}

func TestMultipleFramesInStream(t *testing.T) {
	var buf bytes.Buffer
	WriteInit(&buf, InitMessage{Dim: 4})
	WriteTuple(&buf, TupleMessage{RowID: 1, Vector: types.NewVector([]float32{1, 2, 3, 4})})
	WriteEnd(&buf)

	r := NewReader(&buf)

	kind, _, err := r.ReadFrame()
	if err != nil || kind != KindInit {
		t.Fatalf("expected init frame first, got kind=%v err=%v", kind, err)
	}
	kind, _, err = r.ReadFrame()
	if err != nil || kind != KindTuple {
		t.Fatalf("expected tuple frame second, got kind=%v err=%v", kind, err)
	}
	kind, body, err := r.ReadFrame()
	if err != nil || kind != KindEnd {
		t.Fatalf("expected end frame third, got kind=%v err=%v", kind, err)
	}
	if len(body) != 0 {
		t.Errorf("expected empty end-frame body, got %d bytes", len(body))
	}
}

func TestReplyHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	hdr := ReplyHeader{NumNodes: 1000, IndexSize: 65536}
	if err := WriteReplyHeader(&buf, hdr); err != nil {
		t.Fatalf("WriteReplyHeader: %v", err)
	}

	got, err := ReadReplyHeader(&buf)
	if err != nil {
		t.Fatalf("ReadReplyHeader: %v", err)
	}
	if got != hdr {
		t.Errorf("round trip mismatch: got %+v want %+v", got, hdr)
	}
}

func TestCodebookBlockRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := CodebookBlockMessage{
		SubvectorIndex: 2,
		Centroids:      [][]float32{{1, 2}, {3, 4}},
	}
	if err := WriteCodebookBlock(&buf, msg); err != nil {
		t.Fatalf("WriteCodebookBlock: %v", err)
	}

	r := NewReader(&buf)
	kind, _, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindCodebookBlock {
		t.Fatalf("expected KindCodebookBlock, got %v", kind)
	}
}
