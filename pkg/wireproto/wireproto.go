// Package wireproto frames the messages an out-of-process external index
// builder would exchange with the host over a pipe or socket: an init
// message carrying index parameters, zero or more codebook blocks, a
// stream of (rowID, vector) tuples, and an end marker, answered by a
// packed index image. Only encoding/decoding lives here — this module
// does not open a socket or spawn a builder process; that collaborator is
// out of scope and its contract is recorded here, not implemented.
package wireproto

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"vecindex/pkg/encoding"
	"vecindex/pkg/types"
)

// MessageKind tags each frame on the wire.
type MessageKind byte

const (
	KindInit          MessageKind = 1
	KindCodebookBlock MessageKind = 2
	KindTuple         MessageKind = 3
	KindEnd           MessageKind = 4
)

var ErrUnknownKind = errors.New("wireproto: unknown message kind")

// InitMessage announces the index parameters the builder should use.
type InitMessage struct {
	Dim            uint32
	Metric         types.DistanceMetric
	Quantization   types.Quantization
	M              uint32
	EfConstruction uint32
}

// CodebookBlockMessage carries one trained PQ codebook subvector block.
// This module never produces one (PQ training is out of scope) but can
// frame a block received from an external trainer.
type CodebookBlockMessage struct {
	SubvectorIndex uint32
	Centroids      [][]float32
}

// TupleMessage carries one (rowID, vector) pair to be indexed.
type TupleMessage struct {
	RowID  int64
	Vector *types.Vector
}

// ReplyHeader is the builder's response header, followed by the packed
// index image bytes.
type ReplyHeader struct {
	NumNodes  uint32
	IndexSize uint64
}

// WriteInit writes a length-prefixed init frame.
func WriteInit(w io.Writer, msg InitMessage) error {
	body := make([]byte, 4+4+4+4+4)
	binary.LittleEndian.PutUint32(body[0:4], msg.Dim)
	binary.LittleEndian.PutUint32(body[4:8], uint32(msg.Metric))
	binary.LittleEndian.PutUint32(body[8:12], uint32(msg.Quantization))
	binary.LittleEndian.PutUint32(body[12:16], msg.M)
	binary.LittleEndian.PutUint32(body[16:20], msg.EfConstruction)
	return writeFrame(w, KindInit, body)
}

// WriteTuple writes a length-prefixed tuple frame.
func WriteTuple(w io.Writer, msg TupleMessage) error {
	vecBytes := msg.Vector.ToBytes()
	body := make([]byte, 8+len(vecBytes))
	binary.LittleEndian.PutUint64(body[0:8], uint64(msg.RowID))
	copy(body[8:], vecBytes)
	return writeFrame(w, KindTuple, body)
}

// WriteCodebookBlock writes a length-prefixed codebook block frame.
func WriteCodebookBlock(w io.Writer, msg CodebookBlockMessage) error {
	buf := make([]byte, 0, 16+len(msg.Centroids)*16)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], msg.SubvectorIndex)
	buf = append(buf, hdr[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(msg.Centroids)))
	buf = append(buf, countBuf[:]...)

	for _, centroid := range msg.Centroids {
		var dimBuf [4]byte
		binary.LittleEndian.PutUint32(dimBuf[:], uint32(len(centroid)))
		buf = append(buf, dimBuf[:]...)
		for _, f := range centroid {
			var fb [4]byte
			binary.LittleEndian.PutUint32(fb[:], math.Float32bits(f))
			buf = append(buf, fb[:]...)
		}
	}

	return writeFrame(w, KindCodebookBlock, buf)
}

// WriteEnd writes the end-of-stream marker frame.
func WriteEnd(w io.Writer) error {
	return writeFrame(w, KindEnd, nil)
}

// WriteReplyHeader writes the builder's reply header. The caller writes the
// packed index image bytes immediately afterward.
func WriteReplyHeader(w io.Writer, hdr ReplyHeader) error {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], hdr.NumNodes)
	binary.LittleEndian.PutUint64(buf[4:12], hdr.IndexSize)
	_, err := w.Write(buf)
	return err
}

// ReadReplyHeader reads the builder's reply header.
func ReadReplyHeader(r io.Reader) (ReplyHeader, error) {
	buf := make([]byte, 12)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ReplyHeader{}, err
	}
	return ReplyHeader{
		NumNodes:  binary.LittleEndian.Uint32(buf[0:4]),
		IndexSize: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}

// writeFrame writes a varint-length-prefixed, kind-tagged frame, the same
// length-prefixing idiom the host storage engine's WAL uses for its frame
// headers, applied here to a byte-oriented protocol instead of disk blocks.
func writeFrame(w io.Writer, kind MessageKind, body []byte) error {
	lenBuf := make([]byte, 9)
	n := encoding.PutVarint(lenBuf, uint64(len(body)+1))

	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(kind)}); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// Reader reads framed messages produced by the Write* functions above.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for frame-at-a-time reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadFrame reads the next frame's kind and raw body (kind byte stripped).
func (fr *Reader) ReadFrame() (MessageKind, []byte, error) {
	frameLen, err := readVarint(fr.br)
	if err != nil {
		return 0, nil, err
	}
	if frameLen == 0 {
		return 0, nil, fmt.Errorf("wireproto: empty frame")
	}

	buf := make([]byte, frameLen)
	if _, err := io.ReadFull(fr.br, buf); err != nil {
		return 0, nil, err
	}

	return MessageKind(buf[0]), buf[1:], nil
}

// DecodeInit parses an init frame body produced by WriteInit.
func DecodeInit(body []byte) (InitMessage, error) {
	if len(body) < 20 {
		return InitMessage{}, fmt.Errorf("wireproto: init frame too short")
	}
	return InitMessage{
		Dim:            binary.LittleEndian.Uint32(body[0:4]),
		Metric:         types.DistanceMetric(binary.LittleEndian.Uint32(body[4:8])),
		Quantization:   types.Quantization(binary.LittleEndian.Uint32(body[8:12])),
		M:              binary.LittleEndian.Uint32(body[12:16]),
		EfConstruction: binary.LittleEndian.Uint32(body[16:20]),
	}, nil
}

// DecodeTuple parses a tuple frame body produced by WriteTuple.
func DecodeTuple(body []byte) (TupleMessage, error) {
	if len(body) < 8 {
		return TupleMessage{}, fmt.Errorf("wireproto: tuple frame too short")
	}
	rowID := int64(binary.LittleEndian.Uint64(body[0:8]))
	vec, err := types.VectorFromBytes(body[8:])
	if err != nil {
		return TupleMessage{}, err
	}
	return TupleMessage{RowID: rowID, Vector: vec}, nil
}

// readVarint reads one SQLite-style varint directly off a bufio.Reader
// byte-at-a-time, since encoding.GetVarint expects the whole buffer upfront.
func readVarint(br *bufio.Reader) (uint64, error) {
	var v uint64
	for i := 0; i < 9; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if i == 8 {
			v = (v << 8) | uint64(b)
			break
		}
		v = (v << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	return v, nil
}
