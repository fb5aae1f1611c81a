// Package artifacts persists HE parameters, keys and ciphertexts between the
// phases of a benchmark, the way a client and a server would exchange them.
package artifacts

import (
	"bufio"
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// Dir names the artifact files of one program inside a work directory.
type Dir struct {
	Path string
	Name string
}

// NewDir creates path if needed.
func NewDir(path, name string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Dir{Path: path, Name: name}, nil
}

func (d *Dir) file(suffix string) string {
	return filepath.Join(d.Path, d.Name+suffix)
}

func (d *Dir) ParamsFile() string    { return d.file(".params") }
func (d *Dir) SecretKeyFile() string { return d.file(".sk") }
func (d *Dir) PublicKeyFile() string { return d.file(".pk") }
func (d *Dir) EvalKeysFile() string  { return d.file(".evk") }
func (d *Dir) InputsFile() string    { return d.file("_inputs.ct") }
func (d *Dir) OutputsFile() string   { return d.file("_outputs.ct") }
func (d *Dir) WeightsFile() string   { return d.file("_weights.json") }
func (d *Dir) Remove() error         { return os.RemoveAll(d.Path) }
func (d *Dir) String() string        { return d.file("") }

// Save writes the binary encoding of obj to path.
func Save(path string, obj encoding.BinaryMarshaler) error {
	data, err := obj.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load decodes the content of path into obj.
func Load(path string, obj encoding.BinaryUnmarshaler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := obj.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveCiphertexts writes cts as a count followed by length-prefixed encodings.
func SaveCiphertexts(path string, cts []*rlwe.Ciphertext) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteCiphertexts(w, cts); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// LoadCiphertexts reads a file written by SaveCiphertexts.
func LoadCiphertexts(path string) ([]*rlwe.Ciphertext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	cts, err := ReadCiphertexts(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return cts, nil
}

// WriteCiphertexts encodes cts to w.
func WriteCiphertexts(w io.Writer, cts []*rlwe.Ciphertext) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(cts))); err != nil {
		return err
	}
	for i, ct := range cts {
		data, err := ct.MarshalBinary()
		if err != nil {
			return fmt.Errorf("ciphertext %d: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// Limits on a ciphertext list read back from disk.
const (
	MaxCiphertexts     = 1 << 16
	MaxCiphertextBytes = 1 << 30
)

// ReadCiphertexts decodes a ciphertext list written by WriteCiphertexts.
// Length prefixes beyond MaxCiphertexts or MaxCiphertextBytes are rejected,
// and payloads are buffered as they arrive rather than preallocated.
func ReadCiphertexts(r io.Reader) ([]*rlwe.Ciphertext, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	if n > MaxCiphertexts {
		return nil, fmt.Errorf("count %d exceeds %d", n, MaxCiphertexts)
	}
	var cts []*rlwe.Ciphertext
	var buf bytes.Buffer
	for i := 0; i < int(n); i++ {
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("ciphertext %d size: %w", i, err)
		}
		if size > MaxCiphertextBytes {
			return nil, fmt.Errorf("ciphertext %d: size %d exceeds %d", i, size, MaxCiphertextBytes)
		}
		buf.Reset()
		if _, err := io.CopyN(&buf, r, int64(size)); err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		ct := new(rlwe.Ciphertext)
		if err := ct.UnmarshalBinary(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		cts = append(cts, ct)
	}
	return cts, nil
}
