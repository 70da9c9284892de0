// Package database implements an encrypted key/value table over BGV tiles.
//
// Keys and values are strings encoded one character per slot. A lookup
// compares the encrypted query with every encrypted key through the Fermat
// equality test 1 - (k - q)^(t-1), reduces the slot-wise result to a single
// bit replicated in every slot, masks the values with it and sums all the
// rows, so that neither the query nor the matching row is revealed.
package database

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/bits"
	"runtime"
	"strings"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/utils/concurrency"
)

// ErrNoRows is returned by queries on an empty database.
var ErrNoRows = errors.New("database has no rows")

type row struct {
	key, value *hebase.CTile
}

// Database is a list of encrypted key/value rows.
//
// Rows are appended by Insert and LoadCSV, which must not be called
// concurrently with each other or with queries.
type Database struct {
	he   *hebase.HeContext
	enc  *hebase.Encoder
	fe   *hebase.FunctionEvaluator
	rows []row
}

// New returns an empty Database of the context. The context must be a BGV
// context with a prime plaintext modulus larger than the character codes and
// enough levels for QueryDepth.
func New(he *hebase.HeContext) (db *Database, err error) {

	if he.BGV() == nil {
		return nil, fmt.Errorf("cannot New: %w: database requires BGV, got %s", rlwe.ErrConfiguration, he.SchemeName())
	}

	t := he.Traits().ArithmeticModulus
	if t <= 256 || !new(big.Int).SetUint64(t).ProbablyPrime(0) {
		return nil, fmt.Errorf("cannot New: %w: plaintext modulus %d must be a prime larger than 256", rlwe.ErrConfiguration, t)
	}

	db = &Database{he: he, enc: hebase.NewEncoder(he), fe: hebase.NewFunctionEvaluator(he)}

	if depth := db.QueryDepth(); depth > he.TopChainIndex() {
		return nil, fmt.Errorf("cannot New: %w: queries need %d levels, context has %d", rlwe.ErrCapacityExhausted, depth, he.TopChainIndex())
	}

	return
}

// HeContext returns the context of the database.
func (db *Database) HeContext() *hebase.HeContext {
	return db.he
}

// Len returns the number of rows.
func (db *Database) Len() int {
	return len(db.rows)
}

// QueryDepth returns the number of levels consumed by Query.
func (db *Database) QueryDepth() int {
	return db.fermatDepth() + db.andDepth() + 1
}

func (db *Database) fermatDepth() int {
	e := db.he.Traits().ArithmeticModulus - 1
	return bits.Len64(e) - 1 + bits.Len(uint(bits.OnesCount64(e))-1)
}

func (db *Database) andDepth() int {
	// row products then the product with the swapped rows
	half := uint(db.he.SlotCount() >> 1)
	if half&(half-1) == 0 {
		return bits.Len(half)
	}
	return bits.Len(half-1) + 1
}

// StringToASCII returns the character codes of s zero padded to n slots.
func StringToASCII(s string, n int) (values []int64, err error) {

	if len(s) > n {
		return nil, fmt.Errorf("cannot StringToASCII: %w: %d characters for %d slots", rlwe.ErrSlotOverflow, len(s), n)
	}

	values = make([]int64, n)
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return nil, fmt.Errorf("cannot StringToASCII: NUL character at position %d", i)
		}
		values[i] = int64(s[i])
	}

	return
}

// ASCIIToString returns the string of the character codes up to the first zero.
// Codes outside [1, 255] are rejected.
func ASCIIToString(values []int64) (s string, err error) {
	var sb strings.Builder
	for i, v := range values {
		if v == 0 {
			break
		}
		if v < 0 || v > 255 {
			return "", fmt.Errorf("cannot ASCIIToString: invalid code %d at position %d", v, i)
		}
		sb.WriteByte(byte(v))
	}
	return sb.String(), nil
}

// EncryptString encrypts the character codes of s on a tile.
func (db *Database) EncryptString(s string) (c *hebase.CTile, err error) {
	return encryptString(db.enc, s)
}

func encryptString(enc *hebase.Encoder, s string) (c *hebase.CTile, err error) {
	var values []int64
	if values, err = StringToASCII(s, enc.HeContext().SlotCount()); err != nil {
		return
	}
	return enc.EncodeEncrypt(values)
}

// DecryptString decrypts a tile encrypted by EncryptString or returned by
// Query. The context must hold the secret key.
func (db *Database) DecryptString(c *hebase.CTile) (s string, err error) {
	var values []int64
	if values, err = db.enc.DecryptDecodeInt(c); err != nil {
		return "", fmt.Errorf("cannot DecryptString: %w", err)
	}

	// codes above t/2 are decoded as negative values
	t := int64(db.he.Traits().ArithmeticModulus)
	for i := range values {
		if values[i] < 0 {
			values[i] += t
		}
	}

	return ASCIIToString(values)
}

// Insert encrypts and appends the row (key, value).
func (db *Database) Insert(key, value string) (err error) {

	var r row
	if r.key, err = db.EncryptString(key); err != nil {
		return fmt.Errorf("cannot Insert: key: %w", err)
	}

	if r.value, err = db.EncryptString(value); err != nil {
		return fmt.Errorf("cannot Insert: value: %w", err)
	}

	db.rows = append(db.rows, r)

	return
}

// InsertEncrypted appends an already encrypted row.
func (db *Database) InsertEncrypted(key, value *hebase.CTile) (err error) {
	for _, c := range []*hebase.CTile{key, value} {
		if c.IsEmpty() {
			return fmt.Errorf("cannot InsertEncrypted: %w", hebase.ErrEmptyTile)
		}
		if !c.HeContext().Context().Equal(db.he.Context()) {
			return fmt.Errorf("cannot InsertEncrypted: %w: tile of another context", rlwe.ErrConfiguration)
		}
	}
	db.rows = append(db.rows, row{key: key, value: value})
	return
}

// LoadCSV reads key,value records from r and appends them encrypted. Records
// are encrypted concurrently. It returns the number of rows added; no row is
// added if an error occurs.
func (db *Database) LoadCSV(r io.Reader) (n int, err error) {

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var records [][]string
	if records, err = cr.ReadAll(); err != nil {
		return 0, fmt.Errorf("cannot LoadCSV: %w", err)
	}

	encoders := make([]*hebase.Encoder, runtime.GOMAXPROCS(0))
	for i := range encoders {
		encoders[i] = hebase.NewEncoder(db.he.ShallowCopy())
	}

	rm := concurrency.NewResourceManager(encoders)

	rows := make([]row, len(records))
	for i := range records {
		i := i
		rm.Run(func(enc *hebase.Encoder) (err error) {

			var key, value *hebase.CTile
			if key, err = encryptString(enc, records[i][0]); err != nil {
				return fmt.Errorf("record %d: key: %w", i+1, err)
			}

			if value, err = encryptString(enc, records[i][1]); err != nil {
				return fmt.Errorf("record %d: value: %w", i+1, err)
			}

			rows[i].key = hebase.NewCTileFromCiphertext(db.he, key.Ciphertext())
			rows[i].value = hebase.NewCTileFromCiphertext(db.he, value.Ciphertext())

			return
		})
	}

	if err = rm.Wait(); err != nil {
		return 0, fmt.Errorf("cannot LoadCSV: %w", err)
	}

	db.rows = append(db.rows, rows...)

	return len(rows), nil
}

// SlotwiseEqual returns the tile whose slot i is 1 if a and b agree on slot i
// and 0 otherwise.
func (db *Database) SlotwiseEqual(a, b *hebase.CTile) (res *hebase.CTile, err error) {

	diff := a.CopyNew()
	if err = diff.Sub(b); err != nil {
		return nil, fmt.Errorf("cannot SlotwiseEqual: %w", err)
	}

	// x^(t-1) = 1 for x != 0 mod t
	if res, err = db.fe.Power(diff, int(db.he.Traits().ArithmeticModulus-1)); err != nil {
		return nil, fmt.Errorf("cannot SlotwiseEqual: %w", err)
	}

	if err = res.Negate(); err != nil {
		return nil, fmt.Errorf("cannot SlotwiseEqual: %w", err)
	}

	if err = res.AddScalarInt(1); err != nil {
		return nil, fmt.Errorf("cannot SlotwiseEqual: %w", err)
	}

	return
}

// Compare returns the tile holding 1 in every slot if a and b are equal on
// all the slots, and 0 in every slot otherwise.
func (db *Database) Compare(a, b *hebase.CTile) (res *hebase.CTile, err error) {

	if res, err = db.SlotwiseEqual(a, b); err != nil {
		return nil, fmt.Errorf("cannot Compare: %w", err)
	}

	if res, err = db.allSlots(res); err != nil {
		return nil, fmt.Errorf("cannot Compare: %w", err)
	}

	return
}

// allSlots returns the product of all the slots of mask in every slot: the
// product of the row rotations followed by the product with the swapped rows.
// Rows whose size is not a power of two need the keys of every row rotation.
func (db *Database) allSlots(mask *hebase.CTile) (res *hebase.CTile, err error) {

	eval := db.he.BGV()
	half := eval.RowSize()
	ct := mask.Ciphertext()

	if half&(half-1) == 0 {

		for rot := 1; rot < half; rot <<= 1 {

			var tmp *rlwe.Ciphertext
			if tmp, err = eval.RotateRowsNew(ct, rot); err != nil {
				return
			}

			if ct, err = eval.MulRelinRescaleNew(ct, tmp); err != nil {
				return
			}
		}

	} else {

		rotations := make([]*rlwe.Ciphertext, half)
		rotations[0] = ct.CopyNew()
		for k := 1; k < half; k++ {
			if rotations[k], err = eval.RotateRowsNew(ct, k); err != nil {
				return
			}
		}

		if ct, err = eval.TotalProduct(rotations); err != nil {
			return
		}
	}

	var swapped *rlwe.Ciphertext
	if swapped, err = eval.SwapRowsNew(ct); err != nil {
		return
	}

	if ct, err = eval.MulRelinRescaleNew(ct, swapped); err != nil {
		return
	}

	return hebase.NewCTileFromCiphertext(db.he, ct), nil
}

// Query returns the encrypted value of the row whose key equals the query,
// or an encryption of the empty string if no key matches. If several keys
// match, the values are summed slot-wise.
func (db *Database) Query(query *hebase.CTile) (res *hebase.CTile, err error) {

	if len(db.rows) == 0 {
		return nil, fmt.Errorf("cannot Query: %w", ErrNoRows)
	}

	for i, r := range db.rows {

		var mask *hebase.CTile
		if mask, err = db.Compare(r.key, query); err != nil {
			return nil, fmt.Errorf("cannot Query: row %d: %w", i, err)
		}

		if err = mask.Multiply(r.value); err != nil {
			return nil, fmt.Errorf("cannot Query: row %d: %w", i, err)
		}

		if i == 0 {
			res = mask
		} else if err = res.Add(mask); err != nil {
			return nil, fmt.Errorf("cannot Query: row %d: %w", i, err)
		}
	}

	return
}

// QueryString encrypts key and queries it.
func (db *Database) QueryString(key string) (res *hebase.CTile, err error) {

	var query *hebase.CTile
	if query, err = db.EncryptString(key); err != nil {
		return nil, fmt.Errorf("cannot QueryString: %w", err)
	}

	return db.Query(query)
}
