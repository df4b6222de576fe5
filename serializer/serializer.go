// Package serializer writes and reads checkpoint data. A type takes part by
// describing itself as an ordered list of typed fields; the same list drives
// both saving and loading so the byte order on disk is the declaration order.
package serializer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/golbm/parallel"
)

var ErrUnsupported = errors.New("unsupported field type")

// Field is one contiguous block. Value must be a pointer to a scalar or a
// slice: *float64, *int, *bool, []float64, []int, []int32.
type Field struct {
	Name  string
	Value any
}

type Serializable interface {
	Schema() []Field
}

// PostLoader is called after all blocks of a Serializable have been loaded
type PostLoader interface {
	PostLoad() error
}

// NumBlocks returns the number of fields in the schema
func NumBlocks(s Serializable) int {
	return len(s.Schema())
}

// Block returns the i-th field of the schema
func Block(s Serializable, i int) (f Field, err error) {
	schema := s.Schema()
	if i < 0 || i >= len(schema) {
		err = fmt.Errorf("block %d out of range [0,%d)", i, len(schema))
		return
	}
	f = schema[i]
	return
}

// BlockSize is the size in bytes of one field on disk
func BlockSize(f Field) (size int, err error) {
	switch v := f.Value.(type) {
	case *float64, *int:
		size = 8
	case *bool:
		size = 1
	case []float64:
		size = 8 * len(v)
	case []int:
		size = 8 * len(v)
	case []int32:
		size = 4 * len(v)
	default:
		err = fmt.Errorf("field %s: %w %T", f.Name, ErrUnsupported, f.Value)
	}
	return
}

// Size returns the total number of bytes of the serialized form
func Size(s Serializable) (size int, err error) {
	var n int
	for _, f := range s.Schema() {
		if n, err = BlockSize(f); err != nil {
			return
		}
		size += n
	}
	return
}

func Save(w io.Writer, s Serializable) (err error) {
	for _, f := range s.Schema() {
		switch v := f.Value.(type) {
		case *int:
			err = binary.Write(w, binary.LittleEndian, int64(*v))
		case []int:
			buf := make([]int64, len(v))
			for i, x := range v {
				buf[i] = int64(x)
			}
			err = binary.Write(w, binary.LittleEndian, buf)
		case *float64, *bool, []float64, []int32:
			err = binary.Write(w, binary.LittleEndian, v)
		default:
			err = fmt.Errorf("%w %T", ErrUnsupported, f.Value)
		}
		if err != nil {
			return fmt.Errorf("saving field %s: %w", f.Name, err)
		}
	}
	return
}

// Load fills the fields in place. Slices must already have their final
// length.
func Load(r io.Reader, s Serializable) (err error) {
	for _, f := range s.Schema() {
		switch v := f.Value.(type) {
		case *int:
			var x int64
			err = binary.Read(r, binary.LittleEndian, &x)
			*v = int(x)
		case []int:
			buf := make([]int64, len(v))
			if err = binary.Read(r, binary.LittleEndian, buf); err == nil {
				for i, x := range buf {
					v[i] = int(x)
				}
			}
		case *float64, *bool, []float64, []int32:
			err = binary.Read(r, binary.LittleEndian, v)
		default:
			err = fmt.Errorf("%w %T", ErrUnsupported, f.Value)
		}
		if err != nil {
			return fmt.Errorf("loading field %s: %w", f.Name, err)
		}
	}
	if pl, ok := s.(PostLoader); ok {
		err = pl.PostLoad()
	}
	return
}

// FileName is the per rank checkpoint file for name
func FileName(ctx *parallel.RuntimeContext, name string) (string, error) {
	return ctx.OutputPath(ctx.ParallelFileName(name) + ".dat")
}

// SaveFile writes s to the per rank checkpoint file for name
func SaveFile(ctx *parallel.RuntimeContext, name string, s Serializable) (err error) {
	var (
		path string
		file *os.File
	)
	if path, err = FileName(ctx, name); err != nil {
		return
	}
	if file, err = os.Create(path); err != nil {
		return fmt.Errorf("unable to create checkpoint: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err = Save(w, s); err != nil {
		return
	}
	return w.Flush()
}

func LoadFile(ctx *parallel.RuntimeContext, name string, s Serializable) (err error) {
	var (
		path string
		file *os.File
	)
	if path, err = FileName(ctx, name); err != nil {
		return
	}
	if file, err = os.Open(path); err != nil {
		return fmt.Errorf("unable to open checkpoint: %w", err)
	}
	defer file.Close()
	return Load(bufio.NewReader(file), s)
}

// Multi concatenates the schemas of several serializables, in order
type Multi []Serializable

func (m Multi) Schema() (fields []Field) {
	for _, s := range m {
		fields = append(fields, s.Schema()...)
	}
	return
}

// PostLoad runs the members' hooks in order, stopping at the first error
func (m Multi) PostLoad() (err error) {
	for _, s := range m {
		if pl, ok := s.(PostLoader); ok {
			if err = pl.PostLoad(); err != nil {
				return
			}
		}
	}
	return
}
