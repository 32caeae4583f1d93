// Package record implements the on-disk wire format for a single log entry:
// encoding a key/value write or a tombstone delete into the exact byte
// layout the store persists, and decoding that layout back while verifying
// its checksum.
//
// Wire format (every multi-byte integer is little-endian):
//
//	crc32(4) | kind(1) | timestamp(8) | keySize(8) | [valueSize(8)] | key | [value]
//
// valueSize and value are present only for Kind Write; a Delete record ends
// after the key. The crc32 covers every byte that follows it, in the order
// above — never the crc field itself.
package record

import (
	"encoding/binary"
	stdErrors "errors"
	"fmt"
	"hash/crc32"

	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Kind discriminates a live write from a tombstone.
type Kind uint8

const (
	// KindWrite marks a record that carries a value.
	KindWrite Kind = 0
	// KindDelete marks a tombstone: the key was removed.
	KindDelete Kind = 1
)

// Header widths, in bytes, of each fixed-size field in declaration order.
const (
	crcSize       = 4
	kindSize      = 1
	timestampSize = 8
	keySizeSize   = 8
	valueSizeSize = 8

	// HeaderSize is the number of bytes preceding the key in a Write record:
	// crc + kind + timestamp + keySize + valueSize.
	HeaderSize = crcSize + kindSize + timestampSize + keySizeSize + valueSizeSize

	// DeleteHeaderSize is the number of bytes preceding the key in a Delete
	// record: crc + kind + timestamp + keySize (no valueSize field).
	DeleteHeaderSize = crcSize + kindSize + timestampSize + keySizeSize
)

// ErrCorrupt is wrapped into every error this package raises: a record whose
// checksum does not match its bytes, or a buffer too short to hold the
// header being decoded. A segment that ends before a full record could be
// read is reported by the storage layer wrapping io.ErrUnexpectedEOF, not
// ErrCorrupt. Callers can match it with errors.Is without caring which
// segment or offset was involved.
var ErrCorrupt = stdErrors.New("record: corrupt or truncated entry")

// Record is the decoded form of a single log entry.
type Record struct {
	Kind      Kind
	Timestamp int64
	Key       []byte
	Value     []byte // nil for Kind Delete.
}

// Encode builds the wire bytes for a Write record as the ordered buffers
// the checksum was computed over, ready to be handed to a vectored write:
// [crc][kind][timestamp][keySize][valueSize][key][value].
func Encode(key, value []byte, timestamp int64) [][]byte {
	return encode(KindWrite, key, value, timestamp)
}

// EncodeTombstone builds the wire bytes for a Delete record:
// [crc][kind][timestamp][keySize][key].
func EncodeTombstone(key []byte, timestamp int64) [][]byte {
	return encode(KindDelete, key, nil, timestamp)
}

func encode(kind Kind, key, value []byte, timestamp int64) [][]byte {
	kindBuf := []byte{byte(kind)}

	tsBuf := make([]byte, timestampSize)
	binary.LittleEndian.PutUint64(tsBuf, uint64(timestamp))

	ksBuf := make([]byte, keySizeSize)
	binary.LittleEndian.PutUint64(ksBuf, uint64(len(key)))

	hasher := crc32.NewIEEE()
	hasher.Write(kindBuf)
	hasher.Write(tsBuf)
	hasher.Write(ksBuf)

	var vsBuf []byte
	if kind == KindWrite {
		vsBuf = make([]byte, valueSizeSize)
		binary.LittleEndian.PutUint64(vsBuf, uint64(len(value)))
		hasher.Write(vsBuf)
	}

	hasher.Write(key)
	if kind == KindWrite {
		hasher.Write(value)
	}

	crcBuf := make([]byte, crcSize)
	binary.LittleEndian.PutUint32(crcBuf, hasher.Sum32())

	iovec := make([][]byte, 0, 6)
	iovec = append(iovec, crcBuf, kindBuf, tsBuf, ksBuf)
	if kind == KindWrite {
		iovec = append(iovec, vsBuf)
	}
	iovec = append(iovec, key)
	if kind == KindWrite {
		iovec = append(iovec, value)
	}

	return iovec
}

// PeekSize is the number of bytes up to and including the kind field —
// callers that don't yet know whether to read HeaderSize or
// DeleteHeaderSize bytes can read PeekSize bytes first and branch on it.
const PeekSize = crcSize + kindSize

// PeekKind reads the record kind out of the first PeekSize bytes of a
// record, before the rest of the header has necessarily been read.
func PeekKind(buf []byte) (Kind, error) {
	if len(buf) < PeekSize {
		return 0, errorf(ErrCorrupt, "header truncated: need at least %d bytes, got %d", PeekSize, len(buf))
	}
	return Kind(buf[crcSize]), nil
}

// Size returns the total number of bytes the record occupies on disk, for
// index bookkeeping.
func Size(key, value []byte, kind Kind) int {
	if kind == KindDelete {
		return DeleteHeaderSize + len(key)
	}
	return HeaderSize + len(key) + len(value)
}

// Header is the fixed-size prefix of a record as parsed by DecodeHeader: the
// record's kind, timestamp, key size, value size (0 for Delete), and the
// checksum read from the header, not yet validated.
type Header struct {
	Kind      Kind
	Timestamp int64
	KeySize   uint64
	ValueSize uint64
	CRC       uint32
}

// DecodeHeader reads the fixed-width prefix from buf. buf must contain at
// least DeleteHeaderSize bytes, and at least HeaderSize bytes when the kind
// byte marks a Write record; a shorter buffer is reported as ErrCorrupt.
// Callers that don't yet know the kind can call PeekKind first.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < DeleteHeaderSize {
		return Header{}, errorf(ErrCorrupt, "header truncated: need at least %d bytes, got %d", DeleteHeaderSize, len(buf))
	}

	crc := binary.LittleEndian.Uint32(buf[0:crcSize])
	kind := Kind(buf[crcSize])
	ts := int64(binary.LittleEndian.Uint64(buf[crcSize+kindSize : crcSize+kindSize+timestampSize]))
	ksOffset := crcSize + kindSize + timestampSize
	ks := binary.LittleEndian.Uint64(buf[ksOffset : ksOffset+keySizeSize])

	h := Header{Kind: kind, Timestamp: ts, KeySize: ks, CRC: crc}

	if kind == KindWrite {
		vsOffset := ksOffset + keySizeSize
		if len(buf) < vsOffset+valueSizeSize {
			return Header{}, errorf(ErrCorrupt, "write header truncated: need %d bytes, got %d", HeaderSize, len(buf))
		}
		h.ValueSize = binary.LittleEndian.Uint64(buf[vsOffset : vsOffset+valueSizeSize])
	}

	return h, nil
}

// Verify recomputes the checksum over header (excluding the crc field
// itself) plus key and value, and compares it against want.
func Verify(h Header, key, value []byte, want uint32) error {
	hasher := crc32.NewIEEE()

	kindBuf := []byte{byte(h.Kind)}
	tsBuf := make([]byte, timestampSize)
	binary.LittleEndian.PutUint64(tsBuf, uint64(h.Timestamp))
	ksBuf := make([]byte, keySizeSize)
	binary.LittleEndian.PutUint64(ksBuf, h.KeySize)

	hasher.Write(kindBuf)
	hasher.Write(tsBuf)
	hasher.Write(ksBuf)

	if h.Kind == KindWrite {
		vsBuf := make([]byte, valueSizeSize)
		binary.LittleEndian.PutUint64(vsBuf, h.ValueSize)
		hasher.Write(vsBuf)
	}

	hasher.Write(key)
	if h.Kind == KindWrite {
		hasher.Write(value)
	}

	if hasher.Sum32() != want {
		return errorf(ErrCorrupt, "crc mismatch: computed %x, stored %x", hasher.Sum32(), want)
	}

	return nil
}

func errorf(sentinel error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return stdErrors.Join(sentinel, errors.NewRecordError(stdErrors.New(msg), errors.ErrorCodeCorrupt, msg))
}
