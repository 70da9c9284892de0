// Package matrix implements batches of encrypted matrices over the tiles of
// package hebase: slot k of every tile of a CipherMatrix holds the entries of
// the k-th matrix of the batch.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DoubleMatrix is a dense matrix of float64.
type DoubleMatrix struct {
	d *mat.Dense
}

// NewDoubleMatrix returns a rows x cols matrix filled with val.
// It panics if rows or cols is not positive.
func NewDoubleMatrix(rows, cols int, val float64) *DoubleMatrix {
	d := mat.NewDense(rows, cols, nil)
	if val != 0 {
		d.Apply(func(_, _ int, _ float64) float64 { return val }, d)
	}
	return &DoubleMatrix{d: d}
}

// NewDoubleMatrixFromDense returns a matrix holding a copy of a.
func NewDoubleMatrixFromDense(a mat.Matrix) *DoubleMatrix {
	return &DoubleMatrix{d: mat.DenseCopyOf(a)}
}

// NewDoubleMatrixFromRows returns the matrix with the given rows, which must have the same length.
func NewDoubleMatrixFromRows(rows [][]float64) (m *DoubleMatrix, err error) {

	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("cannot NewDoubleMatrixFromRows: empty matrix")
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)

	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("cannot NewDoubleMatrixFromRows: row %d has %d entries instead of %d", i, len(row), cols)
		}
		data = append(data, row...)
	}

	return &DoubleMatrix{d: mat.NewDense(len(rows), cols, data)}, nil
}

// Dense returns the underlying matrix.
func (m *DoubleMatrix) Dense() *mat.Dense {
	return m.d
}

// Rows returns the number of rows of the matrix.
func (m *DoubleMatrix) Rows() int {
	r, _ := m.d.Dims()
	return r
}

// Cols returns the number of columns of the matrix.
func (m *DoubleMatrix) Cols() int {
	_, c := m.d.Dims()
	return c
}

// At returns the entry (i, j).
func (m *DoubleMatrix) At(i, j int) float64 {
	return m.d.At(i, j)
}

// Set sets the entry (i, j) to val.
func (m *DoubleMatrix) Set(i, j int, val float64) {
	m.d.Set(i, j, val)
}

// AddAt adds val to the entry (i, j).
func (m *DoubleMatrix) AddAt(i, j int, val float64) {
	m.d.Set(i, j, m.d.At(i, j)+val)
}

// Values returns the rows of the matrix.
func (m *DoubleMatrix) Values() (rows [][]float64) {
	rows = make([][]float64, m.Rows())
	for i := range rows {
		rows[i] = mat.Row(nil, i, m.d)
	}
	return
}

func (m *DoubleMatrix) sameSize(other *DoubleMatrix) bool {
	return m.Rows() == other.Rows() && m.Cols() == other.Cols()
}

// Add adds other to the matrix.
func (m *DoubleMatrix) Add(other *DoubleMatrix) error {
	if !m.sameSize(other) {
		return fmt.Errorf("cannot Add: %dx%d and %dx%d matrices", m.Rows(), m.Cols(), other.Rows(), other.Cols())
	}
	m.d.Add(m.d, other.d)
	return nil
}

// Sub subtracts other from the matrix.
func (m *DoubleMatrix) Sub(other *DoubleMatrix) error {
	if !m.sameSize(other) {
		return fmt.Errorf("cannot Sub: %dx%d and %dx%d matrices", m.Rows(), m.Cols(), other.Rows(), other.Cols())
	}
	m.d.Sub(m.d, other.d)
	return nil
}

// Multiply returns the product of the matrix by other.
func (m *DoubleMatrix) Multiply(other *DoubleMatrix) (res *DoubleMatrix, err error) {

	if m.Cols() != other.Rows() {
		return nil, fmt.Errorf("cannot Multiply: %dx%d by %dx%d matrices", m.Rows(), m.Cols(), other.Rows(), other.Cols())
	}

	d := mat.NewDense(m.Rows(), other.Cols(), nil)
	d.Mul(m.d, other.d)

	return &DoubleMatrix{d: d}, nil
}

// Square squares every entry of the matrix.
func (m *DoubleMatrix) Square() {
	m.d.Apply(func(_, _ int, v float64) float64 { return v * v }, m.d)
}

// Transpose returns the transpose of the matrix.
func (m *DoubleMatrix) Transpose() *DoubleMatrix {
	return &DoubleMatrix{d: mat.DenseCopyOf(m.d.T())}
}

// SubMatrix returns the entries of the rows [row1, row2) and columns [col1, col2).
func (m *DoubleMatrix) SubMatrix(row1, col1, row2, col2 int) (sub *DoubleMatrix, err error) {

	if row1 < 0 || col1 < 0 || row2 > m.Rows() || col2 > m.Cols() || row1 >= row2 || col1 >= col2 {
		return nil, fmt.Errorf("cannot SubMatrix: (%d,%d)-(%d,%d) out of a %dx%d matrix", row1, col1, row2, col2, m.Rows(), m.Cols())
	}

	// Slice shares the storage of m
	return &DoubleMatrix{d: mat.DenseCopyOf(m.d.Slice(row1, row2, col1, col2))}, nil
}

// Equal returns true if both matrices have the same size and entries within
// tolerance, either absolute or relative.
func (m *DoubleMatrix) Equal(other *DoubleMatrix, tolerance float64) bool {
	return m.sameSize(other) && mat.EqualApprox(m.d, other.d, tolerance)
}
