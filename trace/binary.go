package trace

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/registry"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/mrcuijt/Kamon/tag"
)

// ByteStreamReader reads an inbound binary carrier (spec §4.4 binary
// carrier contract).
type ByteStreamReader interface {
	Read(buf []byte) (int, error)
	ReadAll() ([]byte, error)
}

// ByteStreamWriter writes an outbound binary carrier.
type ByteStreamWriter interface {
	Write(b []byte) error
}

// BinaryEntry binds a context key to a byte-frame codec resolved by name
// (spec §4.4, mirroring TextMapEntry for the binary transport).
type BinaryEntry interface {
	ID() string
	EncodeBinary(c kcontext.Context) ([]byte, bool)
	DecodeBinary(data []byte, c kcontext.Context) kcontext.Context
}

// BinaryEntries is the name -> factory registry `propagation.binary.<channel>.entries.*`
// resolves class names through (spec §6).
var BinaryEntries registry.Of[BinaryEntry]

const tagsFrameID = "tags"

// BinaryChannel is a fully resolved `propagation.binary.<channel>` (spec
// §4.4). Frames are entry-id-tagged length-delimited records; a context
// tag set is always carried as the distinguished "tags" frame.
type BinaryChannel struct {
	maxOutgoingSize int
	incoming        []BinaryEntry
	outgoing        []BinaryEntry
}

// NewBinaryChannel resolves cfg's entry names against BinaryEntries,
// logging and skipping any entry that fails to construct.
func NewBinaryChannel(cfg config.BinaryChannel) *BinaryChannel {
	size := cfg.MaxOutgoingSize
	if size <= 0 {
		size = 2048
	}
	return &BinaryChannel{
		maxOutgoingSize: size,
		incoming:        resolveBinaryEntries(cfg.EntriesIncoming),
		outgoing:        resolveBinaryEntries(cfg.EntriesOutgoing),
	}
}

func resolveBinaryEntries(names []string) []BinaryEntry {
	out := make([]BinaryEntry, 0, len(names))
	for _, name := range names {
		e, ok, err := BinaryEntries.Build(name)
		if err != nil {
			log.Error("trace: binary propagation entry %q failed to construct, skipping: %v", name, err)
			continue
		}
		if !ok {
			log.Error("trace: binary propagation entry %q is not registered, skipping", name)
			continue
		}
		out = append(out, e)
	}
	return out
}

func writeFrame(buf *bytes.Buffer, id string, data []byte) {
	buf.WriteByte(byte(len(id)))
	buf.WriteString(id)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func readFrame(r *bytes.Reader) (id string, data []byte, err error) {
	idLen, err := r.ReadByte()
	if err != nil {
		return "", nil, err
	}
	idBuf := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBuf); err != nil {
		return "", nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, err
	}
	data = make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return "", nil, err
	}
	return string(idBuf), data, nil
}

// Inject encodes c onto w. If the fully encoded frame set would exceed
// max_outgoing_size, nothing is written; a warning is logged instead
// (spec §4.4/§7 EncodingFailure: "either the full encoded context fits or
// nothing is written").
func (ch *BinaryChannel) Inject(c kcontext.Context, w ByteStreamWriter) {
	var buf bytes.Buffer
	writeFrame(&buf, tagsFrameID, encodeTags(c.Tags()))
	for _, e := range ch.outgoing {
		data, ok := e.EncodeBinary(c)
		if !ok {
			continue
		}
		writeFrame(&buf, e.ID(), data)
	}
	if buf.Len() > ch.maxOutgoingSize {
		log.Warn("trace: binary context encoding (%d bytes) exceeds max-outgoing-size %d, dropping write", buf.Len(), ch.maxOutgoingSize)
		return
	}
	if err := w.Write(buf.Bytes()); err != nil {
		log.Warn("trace: binary context write failed: %v", err)
	}
}

// Extract decodes an inbound binary carrier into a Context. Malformed
// input yields an empty context plus a logged warning rather than an
// error return, matching the no-throw-across-public-boundaries policy
// (spec §7).
func (ch *BinaryChannel) Extract(r ByteStreamReader) kcontext.Context {
	raw, err := r.ReadAll()
	if err != nil {
		log.Warn("trace: binary context read failed: %v", err)
		return kcontext.Empty
	}
	c := kcontext.Empty
	br := bytes.NewReader(raw)
	for br.Len() > 0 {
		id, data, err := readFrame(br)
		if err != nil {
			log.Warn("trace: binary context framing malformed, stopping decode: %v", err)
			break
		}
		if id == tagsFrameID {
			c = c.WithTags(decodeTags(data))
			continue
		}
		c = ch.decodeEntry(id, data, c)
	}
	return c
}

func (ch *BinaryChannel) decodeEntry(id string, data []byte, c kcontext.Context) kcontext.Context {
	for _, e := range ch.incoming {
		if e.ID() == id {
			return e.DecodeBinary(data, c)
		}
	}
	return c
}

func encodeTags(tags tag.Set) []byte {
	var buf bytes.Buffer
	tags.Each(func(k string, v tag.Value) {
		writeFrame(&buf, k, []byte(v.AsString()))
	})
	return buf.Bytes()
}

func decodeTags(data []byte) tag.Set {
	b := tag.NewBuilder(tag.Empty)
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		k, v, err := readFrame(r)
		if err != nil {
			break
		}
		b.Add(k, string(v))
	}
	return b.Build()
}
