package hebase

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils/buffer"
)

// registry of the kinds of contexts LoadHeContext can read, by header code.
var registry = struct {
	sync.RWMutex
	kinds map[string]rlwe.Scheme
}{
	kinds: map[string]rlwe.Scheme{},
}

func headerCode(scheme rlwe.Scheme) string {
	return LibraryName + "_" + scheme.String()
}

// RegisterContextKind registers the header code of a scheme for LoadHeContext.
// It fails if the code is already registered.
func RegisterContextKind(code string, scheme rlwe.Scheme) error {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.kinds[code]; ok {
		return fmt.Errorf("duplicate context kind %q", code)
	}
	registry.kinds[code] = scheme
	return nil
}

// RegisteredContextKinds returns the sorted header codes LoadHeContext can read.
func RegisteredContextKinds() (codes []string) {
	registry.RLock()
	defer registry.RUnlock()
	for code := range registry.kinds {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return
}

func init() {
	for _, scheme := range []rlwe.Scheme{rlwe.BGV, rlwe.CKKS} {
		if err := RegisterContextKind(headerCode(scheme), scheme); err != nil {
			panic(err)
		}
	}
}

const flagSecretKey = 1

// maxHeaderCode bounds the length of header codes read by LoadHeContext.
const maxHeaderCode = 256

func writeString(w buffer.Writer, s string) (n int64, err error) {
	var inc int64
	if inc, err = buffer.WriteUint32(w, uint32(len(s))); err != nil {
		return n + inc, err
	}
	n += inc
	inc, err = buffer.Write(w, []byte(s))
	return n + inc, err
}

func readFull(r io.Reader, size int) (p []byte, err error) {
	p = make([]byte, size)
	if _, err = io.ReadFull(r, p); err != nil {
		return nil, fmt.Errorf("%w: %w", rlwe.ErrSerialization, err)
	}
	return
}

func readString(r io.Reader) (s string, err error) {

	var p []byte
	if p, err = readFull(r, 4); err != nil {
		return
	}

	var size uint32
	buffer.ReadUint32(buffer.NewBuffer(p), &size)

	if size > maxHeaderCode {
		return "", fmt.Errorf("%w: header code of %d bytes", rlwe.ErrSerialization, size)
	}

	if p, err = readFull(r, int(size)); err != nil {
		return
	}

	return string(p), nil
}

// Save writes the context, its public and evaluation keys and, if
// withSecretKey is true, its secret key on w. The stream starts with the
// header code of the context.
func (he *HeContext) Save(w io.Writer, withSecretKey bool) (err error) {

	if withSecretKey && he.sk == nil {
		return fmt.Errorf("cannot Save: %w: context has no secret key", rlwe.ErrKeyMaterial)
	}

	bw := bufio.NewWriter(w)

	if _, err = writeString(bw, he.HeaderCode()); err != nil {
		return
	}

	if _, err = buffer.WriteFloat64(bw, he.defaultScale); err != nil {
		return
	}

	var flags uint8
	if withSecretKey {
		flags |= flagSecretKey
	}

	if _, err = buffer.WriteUint8(bw, flags); err != nil {
		return
	}

	if _, err = rlwe.WriteContextBinary(bw, he.ctx); err != nil {
		return
	}

	if _, err = rlwe.WritePubKeyBinary(bw, he.ctx, he.pk); err != nil {
		return
	}

	if _, err = rlwe.WriteEvalKeyBinary(bw, he.ctx, he.evk); err != nil {
		return
	}

	if withSecretKey {
		if _, err = rlwe.WriteSecKeyBinary(bw, he.ctx, he.sk); err != nil {
			return
		}
	}

	return bw.Flush()
}

// LoadHeContext reads a context written by Save. The kind of the context is
// found from its header code, which must be registered.
func LoadHeContext(r io.Reader) (he *HeContext, err error) {

	var code string
	if code, err = readString(r); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	registry.RLock()
	scheme, ok := registry.kinds[code]
	registry.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cannot LoadHeContext: %w: unrecognized context %q", rlwe.ErrSerialization, code)
	}

	var p []byte
	if p, err = readFull(r, 9); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	pb := buffer.NewBuffer(p)
	var scale float64
	var flags uint8
	buffer.ReadFloat64(pb, &scale)
	buffer.ReadUint8(pb, &flags)

	var ctx *rlwe.Context
	if ctx, err = rlwe.ReadContextBinary(r); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	if ctx.Scheme() != scheme {
		return nil, fmt.Errorf("cannot LoadHeContext: %w: %q holds a %v context", rlwe.ErrSerialization, code, ctx.Scheme())
	}

	var pk *rlwe.PublicKey
	if pk, err = rlwe.ReadPubKeyBinary(r, ctx); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	var evk *rlwe.EvaluationKeySet
	if evk, err = rlwe.ReadEvalKeyBinary(r, ctx); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	var sk *rlwe.SecretKey
	if flags&flagSecretKey != 0 {
		if sk, err = rlwe.ReadSecKeyBinary(r, ctx); err != nil {
			return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
		}
	}

	if he, err = NewHeContextWithKeys(ctx, pk, evk, sk); err != nil {
		return nil, fmt.Errorf("cannot LoadHeContext: %w", err)
	}

	if scheme == rlwe.CKKS {
		if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
			return nil, fmt.Errorf("cannot LoadHeContext: %w: invalid default scale %v", rlwe.ErrSerialization, scale)
		}
		he.defaultScale = scale
	}

	return
}

// SaveSecretKey writes the secret key of the context on w.
func (he *HeContext) SaveSecretKey(w io.Writer) (err error) {
	var sk *rlwe.SecretKey
	if sk, err = he.SecretKey(); err != nil {
		return fmt.Errorf("cannot SaveSecretKey: %w", err)
	}
	_, err = rlwe.WriteSecKeyBinary(w, he.ctx, sk)
	return
}

// LoadSecretKey reads a secret key written by SaveSecretKey and sets it as the
// secret key of the context.
func (he *HeContext) LoadSecretKey(r io.Reader) (err error) {
	var sk *rlwe.SecretKey
	if sk, err = rlwe.ReadSecKeyBinary(r, he.ctx); err != nil {
		return fmt.Errorf("cannot LoadSecretKey: %w", err)
	}
	he.sk = sk
	he.dec = rlwe.NewDecryptor(he.ctx, sk)
	return
}

// SaveToFile saves the context to the named file.
func (he *HeContext) SaveToFile(name string, withSecretKey bool) (err error) {
	var f *os.File
	if f, err = os.Create(name); err != nil {
		return
	}
	if err = he.Save(f, withSecretKey); err != nil {
		f.Close()
		return
	}
	return f.Close()
}

// LoadHeContextFromFile loads a context saved by SaveToFile.
func LoadHeContextFromFile(name string) (he *HeContext, err error) {
	var f *os.File
	if f, err = os.Open(name); err != nil {
		return
	}
	defer f.Close()
	return LoadHeContext(bufio.NewReader(f))
}
