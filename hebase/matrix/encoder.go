package matrix

import (
	"fmt"
	"runtime"

	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/utils/concurrency"
)

// Encoder encrypts batches of DoubleMatrix into CipherMatrix and back.
type Encoder struct {
	he *hebase.HeContext
}

// NewEncoder returns an Encoder of the context.
func NewEncoder(he *hebase.HeContext) *Encoder {
	return &Encoder{he: he}
}

// EncodeEncrypt encrypts the batch of matrices at the given level; the tiles
// are encrypted concurrently.
func (e *Encoder) EncodeEncrypt(batch []*DoubleMatrix, chainIndex int) (res *CipherMatrix, err error) {

	if len(batch) == 0 {
		return nil, fmt.Errorf("cannot EncodeEncrypt: empty batch")
	}

	if len(batch) > e.he.SlotCount() {
		return nil, fmt.Errorf("cannot EncodeEncrypt: batch of %d matrices for %d slots", len(batch), e.he.SlotCount())
	}

	rows, cols := batch[0].Rows(), batch[0].Cols()
	for k, m := range batch {
		if m.Rows() != rows || m.Cols() != cols {
			return nil, fmt.Errorf("cannot EncodeEncrypt: matrix #%d is %dx%d instead of %dx%d", k, m.Rows(), m.Cols(), rows, cols)
		}
	}

	encoders := make([]*hebase.Encoder, runtime.GOMAXPROCS(0))
	for i := range encoders {
		encoders[i] = hebase.NewEncoder(e.he.ShallowCopy())
	}

	rm := concurrency.NewResourceManager(encoders)

	res = &CipherMatrix{he: e.he, filledSlots: len(batch), tiles: make([][]*hebase.CTile, rows)}

	for i := range res.tiles {
		res.tiles[i] = make([]*hebase.CTile, cols)
		for j := range res.tiles[i] {
			i, j := i, j
			rm.Run(func(enc *hebase.Encoder) (err error) {

				values := make([]float64, len(batch))
				for k, m := range batch {
					values[k] = m.At(i, j)
				}

				var c *hebase.CTile
				if c, err = enc.EncodeEncryptAt(values, chainIndex); err != nil {
					return fmt.Errorf("tile (%d, %d): %w", i, j, err)
				}

				res.tiles[i][j] = hebase.NewCTileFromCiphertext(e.he, c.Ciphertext())

				return
			})
		}
	}

	if err = rm.Wait(); err != nil {
		return nil, fmt.Errorf("cannot EncodeEncrypt: %w", err)
	}

	return
}

// DecryptDecode returns the batch of matrices of m. The context must hold the secret key.
func (e *Encoder) DecryptDecode(m *CipherMatrix) (batch []*DoubleMatrix, err error) {

	batch = make([]*DoubleMatrix, m.filledSlots)
	for k := range batch {
		batch[k] = NewDoubleMatrix(m.Rows(), m.Cols(), 0)
	}

	enc := hebase.NewEncoder(e.he)

	for i := range m.tiles {
		for j := range m.tiles[i] {

			var values []float64
			if values, err = enc.DecryptDecodeDouble(m.tiles[i][j]); err != nil {
				return nil, fmt.Errorf("cannot DecryptDecode: tile (%d, %d): %w", i, j, err)
			}

			for k := range batch {
				batch[k].Set(i, j, values[k])
			}
		}
	}

	return
}
