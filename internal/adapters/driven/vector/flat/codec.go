package flat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// File layout, zstd-compressed as a whole:
//
//	magic   [4]byte "DRVX"
//	version uint16
//	metric  uint8   (0 = L2, 1 = inner product)
//	dim     uint32
//	count   uint64
//	count × { id int64, vector [dim]float32 }
//
// All integers and floats are little endian.
var magic = [4]byte{'D', 'R', 'V', 'X'}

const formatVersion uint16 = 1

var errCorrupt = errors.New("flat: corrupt index file")

var (
	encoderOnce sync.Once
	decoderOnce sync.Once
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	encoderErr  error
	decoderErr  error
)

func getEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil)
	})
	return encoder, encoderErr
}

func getDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

func metricCode(t domain.IndexType) uint8 {
	if t == domain.IndexFlatIP {
		return 1
	}
	return 0
}

func metricFromCode(c uint8) (domain.IndexType, error) {
	switch c {
	case 0:
		return domain.IndexFlatL2, nil
	case 1:
		return domain.IndexFlatIP, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %d", errCorrupt, c)
	}
}

// encode serialises the index contents.
func encode(idx *Index) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(19 + len(idx.ids)*(8+4*idx.dim))

	buf.Write(magic[:])
	le := binary.LittleEndian
	var scratch [8]byte
	le.PutUint16(scratch[:2], formatVersion)
	buf.Write(scratch[:2])
	buf.WriteByte(metricCode(idx.metric))
	le.PutUint32(scratch[:4], uint32(idx.dim))
	buf.Write(scratch[:4])
	le.PutUint64(scratch[:8], uint64(len(idx.ids)))
	buf.Write(scratch[:8])

	for i, id := range idx.ids {
		le.PutUint64(scratch[:8], uint64(id))
		buf.Write(scratch[:8])
		for _, v := range idx.vector(i) {
			le.PutUint32(scratch[:4], math.Float32bits(v))
			buf.Write(scratch[:4])
		}
	}

	enc, err := getEncoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return enc.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

// decode parses an index file into a new Index.
func decode(path string, data []byte) (*Index, error) {
	dec, err := getDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}

	r := bytes.NewReader(raw)
	le := binary.LittleEndian

	var header struct {
		Magic   [4]byte
		Version uint16
		Metric  uint8
		Dim     uint32
		Count   uint64
	}
	if err := binary.Read(r, le, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", errCorrupt, err)
	}
	if header.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic", errCorrupt)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errCorrupt, header.Version)
	}
	metric, err := metricFromCode(header.Metric)
	if err != nil {
		return nil, err
	}
	dim := int(header.Dim)
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", errCorrupt, dim)
	}
	entrySize := uint64(8 + 4*dim)
	if header.Count > uint64(r.Len())/entrySize {
		return nil, fmt.Errorf("%w: truncated body", errCorrupt)
	}

	idx := newIndex(path, dim, metric)
	count := int(header.Count)
	idx.ids = make([]int64, 0, count)
	idx.data = make([]float32, 0, count*dim)

	entry := make([]byte, entrySize)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, fmt.Errorf("%w: reading entry %d: %w", errCorrupt, i, err)
		}
		id := int64(le.Uint64(entry[:8]))
		if _, dup := idx.pos[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", errCorrupt, id)
		}
		idx.pos[id] = len(idx.ids)
		idx.ids = append(idx.ids, id)
		for j := 0; j < dim; j++ {
			idx.data = append(idx.data, math.Float32frombits(le.Uint32(entry[8+4*j:])))
		}
	}
	return idx, nil
}

// writeFileAtomic replaces path with data via a temporary file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}
