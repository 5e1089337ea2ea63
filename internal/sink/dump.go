package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"

	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// Record kinds in a dump file.
const (
	RecordFrame      = "frame"
	RecordResolution = "resolution"
)

// Pixel payload codecs.
const (
	CodecLZ4 = "lz4"
	CodecRaw = "raw"
)

// Record is one entry of a dump file. Data holds the pixel rows, LZ4 block
// compressed unless Codec is raw.
type Record struct {
	Kind   string `cbor:"1,keyasint"`
	Seq    uint64 `cbor:"2,keyasint"`
	TimeNS int64  `cbor:"3,keyasint"`
	Width  int    `cbor:"4,keyasint"`
	Height int    `cbor:"5,keyasint"`
	Pitch  int    `cbor:"6,keyasint"`
	Size   int    `cbor:"7,keyasint"`
	Codec  string `cbor:"8,keyasint,omitempty"`
	Data   []byte `cbor:"9,keyasint,omitempty"`
}

// Pixels returns the uncompressed pixel rows of a frame record.
func (r Record) Pixels() ([]byte, error) {
	switch r.Codec {
	case CodecRaw, "":
		return r.Data, nil
	case CodecLZ4:
		dst := make([]byte, r.Size)
		n, err := lz4.UncompressBlock(r.Data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != r.Size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, r.Size)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", r.Codec)
	}
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sink: CBOR encoder initialization failed: " + err.Error())
	}
}

// Dump appends every frame to a file as a CBOR record.
type Dump struct {
	path   string
	logger *slog.Logger

	file    *os.File
	w       *bufio.Writer
	enc     *cbor.Encoder
	seq     uint64
	scratch []byte
}

// NewDump returns a dump sink writing to path. The file is opened by Init.
func NewDump(path string) *Dump {
	return &Dump{path: path, logger: logging.GetLogger("sink")}
}

func (d *Dump) Init(Device) error {
	if d.file != nil {
		return errors.New("dump sink already initialized")
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dump file: %w", err)
	}
	d.file = f
	d.w = bufio.NewWriter(f)
	d.enc = encMode.NewEncoder(d.w)
	d.seq = 0
	d.logger.Info("Dump sink writing", "path", d.path)
	return nil
}

func (d *Dump) StartEncode(buf *frame.Buffer) error {
	if d.file == nil {
		return errNotInitialized
	}
	raw := buf.Bytes()
	rec := Record{
		Kind:   RecordFrame,
		Width:  buf.Width,
		Height: buf.Height,
		Pitch:  buf.Pitch,
		Size:   len(raw),
	}

	bound := lz4.CompressBlockBound(len(raw))
	if cap(d.scratch) < bound {
		d.scratch = make([]byte, bound)
	}
	n, err := lz4.CompressBlock(raw, d.scratch[:bound], nil)
	if err != nil {
		return fmt.Errorf("lz4 compress: %w", err)
	}
	// Zero means incompressible.
	if n == 0 || n >= len(raw) {
		rec.Codec, rec.Data = CodecRaw, raw
	} else {
		rec.Codec, rec.Data = CodecLZ4, d.scratch[:n]
	}
	return d.write(rec)
}

func (d *Dump) SetResolution(width, height int) error {
	if d.file == nil {
		return errNotInitialized
	}
	return d.write(Record{Kind: RecordResolution, Width: width, Height: height})
}

func (d *Dump) write(rec Record) error {
	d.seq++
	rec.Seq = d.seq
	rec.TimeNS = time.Now().UnixNano()
	if err := d.enc.Encode(rec); err != nil {
		return fmt.Errorf("write dump record: %w", err)
	}
	return nil
}

func (d *Dump) Teardown() error {
	if d.file == nil {
		return nil
	}
	flushErr := d.w.Flush()
	closeErr := d.file.Close()
	d.logger.Info("Dump sink closed", "path", d.path, "records", d.seq)
	d.file, d.w, d.enc = nil, nil, nil
	return errors.Join(flushErr, closeErr)
}

// ReadDump decodes every record of a dump stream.
func ReadDump(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(bufio.NewReader(r))
	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
}

// ReadDumpFile decodes every record of the dump file at path.
func ReadDumpFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDump(f)
}
