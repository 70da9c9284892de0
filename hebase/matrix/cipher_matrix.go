package matrix

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/utils/buffer"
)

// maxTiles bounds the number of tiles read by ReadFrom.
const maxTiles = 1 << 16

// CipherMatrix is a batch of encrypted matrices of the same size: tile (i, j)
// holds the entries (i, j) of the matrices, one per slot.
type CipherMatrix struct {
	he          *hebase.HeContext
	tiles       [][]*hebase.CTile
	filledSlots int
}

// NewCipherMatrix returns an empty CipherMatrix of the context.
func NewCipherMatrix(he *hebase.HeContext) *CipherMatrix {
	return &CipherMatrix{he: he}
}

// Rows returns the number of rows of the matrices.
func (m *CipherMatrix) Rows() int {
	return len(m.tiles)
}

// Cols returns the number of columns of the matrices.
func (m *CipherMatrix) Cols() int {
	if len(m.tiles) == 0 {
		return 0
	}
	return len(m.tiles[0])
}

// FilledSlots returns the number of matrices of the batch.
func (m *CipherMatrix) FilledSlots() int {
	return m.filledSlots
}

// Tile returns the tile (i, j).
func (m *CipherMatrix) Tile(i, j int) *hebase.CTile {
	return m.tiles[i][j]
}

// CopyNew returns a deep copy of the matrix.
func (m *CipherMatrix) CopyNew() *CipherMatrix {
	cp := &CipherMatrix{he: m.he, filledSlots: m.filledSlots, tiles: make([][]*hebase.CTile, len(m.tiles))}
	for i := range m.tiles {
		cp.tiles[i] = make([]*hebase.CTile, len(m.tiles[i]))
		for j := range m.tiles[i] {
			cp.tiles[i][j] = m.tiles[i][j].CopyNew()
		}
	}
	return cp
}

func (m *CipherMatrix) forEach(f func(c *hebase.CTile) error) (err error) {
	for i := range m.tiles {
		for j := range m.tiles[i] {
			if err = f(m.tiles[i][j]); err != nil {
				return fmt.Errorf("tile (%d, %d): %w", i, j, err)
			}
		}
	}
	return
}

// Add adds other to the matrix.
func (m *CipherMatrix) Add(other *CipherMatrix) (err error) {

	if m.Rows() != other.Rows() || m.Cols() != other.Cols() || m.filledSlots != other.filledSlots {
		return fmt.Errorf("cannot Add: incompatible dimensions %dx%dx%d and %dx%dx%d", m.Rows(), m.Cols(), m.filledSlots, other.Rows(), other.Cols(), other.filledSlots)
	}

	for i := range m.tiles {
		for j := range m.tiles[i] {
			if err = m.tiles[i][j].Add(other.tiles[i][j]); err != nil {
				return fmt.Errorf("cannot Add: %w", err)
			}
		}
	}

	return
}

// MatrixMultiply returns the products of the matrices of the receiver by the
// matrices of other. The products of each cell are summed before a single
// relinearization and rescaling.
func (m *CipherMatrix) MatrixMultiply(other *CipherMatrix) (res *CipherMatrix, err error) {

	if m.Cols() != other.Rows() || m.filledSlots != other.filledSlots {
		return nil, fmt.Errorf("cannot MatrixMultiply: incompatible dimensions %dx%dx%d and %dx%dx%d", m.Rows(), m.Cols(), m.filledSlots, other.Rows(), other.Cols(), other.filledSlots)
	}

	res = &CipherMatrix{he: m.he, filledSlots: m.filledSlots, tiles: make([][]*hebase.CTile, m.Rows())}

	for i := range res.tiles {
		res.tiles[i] = make([]*hebase.CTile, other.Cols())
		for j := range res.tiles[i] {
			for k := 0; k < m.Cols(); k++ {

				tmp := m.tiles[i][k].CopyNew()
				if err = tmp.MultiplyRaw(other.tiles[k][j]); err != nil {
					return nil, fmt.Errorf("cannot MatrixMultiply: %w", err)
				}

				if k == 0 {
					res.tiles[i][j] = tmp
				} else if err = res.tiles[i][j].Add(tmp); err != nil {
					return nil, fmt.Errorf("cannot MatrixMultiply: %w", err)
				}
			}
		}
	}

	if err = res.Relinearize(); err != nil {
		return nil, fmt.Errorf("cannot MatrixMultiply: %w", err)
	}

	// BGV products at level 0 are kept unscaled.
	if m.he.Scheme() == rlwe.CKKS || res.ChainIndex() > 0 {
		if err = res.Rescale(); err != nil {
			return nil, fmt.Errorf("cannot MatrixMultiply: %w", err)
		}
	}

	return
}

// Square squares every entry of the matrices.
func (m *CipherMatrix) Square() error {
	return m.forEach((*hebase.CTile).Square)
}

// Relinearize relinearizes every tile.
func (m *CipherMatrix) Relinearize() error {
	return m.forEach((*hebase.CTile).Relinearize)
}

// Rescale rescales every tile.
func (m *CipherMatrix) Rescale() error {
	return m.forEach((*hebase.CTile).Rescale)
}

// ChainIndex returns the level of the tiles, or -1 for an empty matrix.
func (m *CipherMatrix) ChainIndex() int {
	if m.Rows() == 0 || m.Cols() == 0 {
		return -1
	}
	return m.tiles[0][0].ChainIndex()
}

// WriteTo writes the dimensions of the matrix and its tiles on w.
func (m *CipherMatrix) WriteTo(w io.Writer) (n int64, err error) {

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	for _, v := range []int{m.Rows(), m.Cols(), m.filledSlots} {
		if _, err = buffer.WriteUint32(bw, uint32(v)); err != nil {
			return cw.n, err
		}
	}

	if err = m.forEach(func(c *hebase.CTile) error { return c.Save(bw) }); err != nil {
		return cw.n, err
	}

	err = bw.Flush()

	return cw.n, err
}

// ReadFrom reads a matrix written by WriteTo. The receiver is unchanged on error.
func (m *CipherMatrix) ReadFrom(r io.Reader) (n int64, err error) {

	cr := &countingReader{r: r}

	header := make([]byte, 12)
	if _, err = io.ReadFull(cr, header); err != nil {
		return cr.n, fmt.Errorf("cannot ReadFrom: %w: %w", rlwe.ErrSerialization, err)
	}

	hb := buffer.NewBuffer(header)
	var rows, cols, filled uint32
	buffer.ReadUint32(hb, &rows)
	buffer.ReadUint32(hb, &cols)
	buffer.ReadUint32(hb, &filled)

	if uint64(rows)*uint64(cols) > maxTiles || int(filled) > m.he.SlotCount() {
		return cr.n, fmt.Errorf("cannot ReadFrom: %w: invalid dimensions %dx%dx%d", rlwe.ErrSerialization, rows, cols, filled)
	}

	tiles := make([][]*hebase.CTile, rows)
	for i := range tiles {
		tiles[i] = make([]*hebase.CTile, cols)
		for j := range tiles[i] {
			tiles[i][j] = hebase.NewCTile(m.he)
			if err = tiles[i][j].Load(cr); err != nil {
				return cr.n, fmt.Errorf("cannot ReadFrom: tile (%d, %d): %w", i, j, err)
			}
		}
	}

	m.tiles = tiles
	m.filledSlots = int(filled)

	return cr.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (n int, err error) {
	n, err = c.w.Write(p)
	c.n += int64(n)
	return
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (n int, err error) {
	n, err = c.r.Read(p)
	c.n += int64(n)
	return
}
