package serializer

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golbm/parallel"
)

type record struct {
	X, Y   float64
	N      int
	Flag   bool
	Values []float64
	IDs    []int
	loaded bool
}

func (r *record) Schema() []Field {
	return []Field{
		{"X", &r.X},
		{"Y", &r.Y},
		{"N", &r.N},
		{"Flag", &r.Flag},
		{"Values", r.Values},
		{"IDs", r.IDs},
	}
}

func (r *record) PostLoad() error {
	r.loaded = true
	return nil
}

func TestSerializer(t *testing.T) {
	in := &record{X: 1.5, Y: -2, N: 42, Flag: true,
		Values: []float64{1, 2, 3}, IDs: []int{7, 8}}
	assert.Equal(t, 6, NumBlocks(in))
	size, err := Size(in)
	require.NoError(t, err)
	assert.Equal(t, 8+8+8+1+24+16, size)

	f, err := Block(in, 2)
	require.NoError(t, err)
	assert.Equal(t, "N", f.Name)
	_, err = Block(in, 6)
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in))
	assert.Equal(t, size, buf.Len())
	// Declaration order is the byte order
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}, buf.Bytes()[:8])

	out := &record{Values: make([]float64, 3), IDs: make([]int, 2)}
	require.NoError(t, Load(&buf, out))
	assert.True(t, out.loaded)
	out.loaded = false
	in.loaded = false
	assert.Equal(t, in, out)

	short := &record{Values: make([]float64, 3), IDs: make([]int, 2)}
	assert.Error(t, Load(bytes.NewReader([]byte{1, 2, 3}), short))

	bad := Multi{in, badSchema{}}
	_, err = Size(bad)
	assert.ErrorIs(t, err, ErrUnsupported)
}

type badSchema struct{}

func TestMultiPostLoad(t *testing.T) {
	a := &record{X: 1, Values: []float64{2}, IDs: []int{}}
	b := &record{N: 3, Values: []float64{}, IDs: []int{4, 5}}
	m := Multi{a, &counter{}, b}
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, m))

	outA := &record{Values: make([]float64, 1), IDs: []int{}}
	outB := &record{Values: []float64{}, IDs: make([]int, 2)}
	c := &counter{}
	require.NoError(t, Load(&buf, Multi{outA, c, outB}))
	assert.True(t, outA.loaded)
	assert.True(t, outB.loaded)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 3, outB.N)
	assert.Equal(t, []int{4, 5}, outB.IDs)

	failing := Multi{&counter{fail: true}, &record{}}
	assert.Error(t, failing.PostLoad())
	assert.False(t, failing[1].(*record).loaded)
}

type counter struct {
	V     float64
	calls int
	fail  bool
}

func (c *counter) Schema() []Field { return []Field{{"V", &c.V}} }

func (c *counter) PostLoad() error {
	c.calls++
	if c.fail {
		return errors.New("rejected")
	}
	return nil
}

func (badSchema) Schema() []Field { return []Field{{"S", new(string)}} }

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	err := parallel.Run(2, parallel.Options{OutputDir: dir, LogMode: parallel.Quiet},
		func(ctx *parallel.RuntimeContext) error {
			in := &record{X: float64(ctx.Rank()), Values: []float64{}, IDs: []int{ctx.Rank()}}
			if err := SaveFile(ctx, "rec", in); err != nil {
				return err
			}
			out := &record{Values: []float64{}, IDs: make([]int, 1)}
			if err := LoadFile(ctx, "rec", out); err != nil {
				return err
			}
			if out.IDs[0] != ctx.Rank() || out.X != float64(ctx.Rank()) {
				t.Errorf("rank %d read back %v", ctx.Rank(), out)
			}
			return nil
		})
	require.NoError(t, err)
	_, err = os.Stat(dir + "/rec_rank1_size2.dat")
	assert.NoError(t, err)

	err = parallel.Run(1, parallel.Options{OutputDir: dir, LogMode: parallel.Quiet},
		func(ctx *parallel.RuntimeContext) error {
			return LoadFile(ctx, "missing", &record{})
		})
	assert.Error(t, err)
}
