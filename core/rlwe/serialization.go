package rlwe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/zeebo/blake3"

	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils/buffer"
)

// Binary container of all serialized objects, little endian:
//
//	magic "HETL" | uint16 version | uint8 kind | uint32 section count
//	section: uint16 tag | uint8 flags | uint64 length | payload
//	trailer: blake3 digest of everything before it (32 bytes)
//
// Readers skip the unknown sections flagged as optional and reject the
// unknown mandatory ones.

const (
	// SerializationVersion is the version of the binary container.
	SerializationVersion uint16 = 1

	serializationMagic = "HETL"
	headerSize         = 4 + 2 + 1 + 4
	sectionHeaderSize  = 2 + 1 + 8
	digestSize         = 32

	// maxSectionSize bounds the allocations of readers.
	maxSectionSize = 1 << 34

	// FlagOptional marks a section that readers may skip.
	FlagOptional uint8 = 1
)

// ObjectKind identifies the type of a serialized object.
type ObjectKind uint8

const (
	KindContext ObjectKind = iota + 1
	KindSecretKey
	KindPublicKey
	KindCiphertext
	KindKeySwitchMatrix
	KindEvaluationKeySet
	KindPlaintext
)

func (k ObjectKind) String() string {
	switch k {
	case KindContext:
		return "Context"
	case KindSecretKey:
		return "SecretKey"
	case KindPublicKey:
		return "PublicKey"
	case KindCiphertext:
		return "Ciphertext"
	case KindKeySwitchMatrix:
		return "KeySwitchMatrix"
	case KindEvaluationKeySet:
		return "EvaluationKeySet"
	case KindPlaintext:
		return "Plaintext"
	default:
		return fmt.Sprintf("ObjectKind(%d)", uint8(k))
	}
}

// section tags
const (
	tagContextLiteral  uint16 = 1
	tagContextSecurity uint16 = 0x8001

	tagFingerprint uint16 = 1
	tagKeyID       uint16 = 2
	tagValue       uint16 = 3
	tagMetadata    uint16 = 4
	tagParts       uint16 = 5
	tagMatrices    uint16 = 6
)

// Section is a tagged payload of a binary container.
type Section struct {
	Tag     uint16
	Flags   uint8
	Payload []byte
}

// Optional returns true if readers may skip the section.
func (s Section) Optional() bool {
	return s.Flags&FlagOptional != 0
}

// EncodeContainer returns the binary container of an object of the given kind.
func EncodeContainer(kind ObjectKind, sections []Section) []byte {

	size := headerSize + digestSize
	for _, s := range sections {
		size += sectionHeaderSize + len(s.Payload)
	}

	buf := buffer.NewBufferSize(size)

	// Sanity check, writes on a buffer of the exact size cannot fail.
	must := func(_ int64, err error) {
		if err != nil {
			panic(err)
		}
	}

	must(buffer.Write(buf, []byte(serializationMagic)))
	must(buffer.WriteUint16(buf, SerializationVersion))
	must(buffer.WriteUint8(buf, uint8(kind)))
	must(buffer.WriteUint32(buf, uint32(len(sections))))

	for _, s := range sections {
		must(buffer.WriteUint16(buf, s.Tag))
		must(buffer.WriteUint8(buf, s.Flags))
		must(buffer.WriteUint64(buf, uint64(len(s.Payload))))
		must(buffer.Write(buf, s.Payload))
	}

	digest := blake3.Sum256(buf.Bytes())
	must(buffer.Write(buf, digest[:]))

	return buf.Bytes()
}

// DecodeContainer reads a binary container of the given kind from r, reading
// exactly the bytes of the container, and returns its sections. Errors wrap
// ErrSerialization.
func DecodeContainer(r io.Reader, kind ObjectKind) (sections []Section, n int64, err error) {

	var raw bytes.Buffer

	// the buffer grows with the bytes actually read, not with the declared size
	read := func(size uint64) (p []byte, err error) {
		var b bytes.Buffer
		var k int64
		k, err = io.CopyN(&b, r, int64(size))
		n += k
		p = b.Bytes()
		raw.Write(p)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return
	}

	var header []byte
	if header, err = read(headerSize); err != nil {
		return nil, n, fmt.Errorf("%w: cannot read header: %w", ErrSerialization, err)
	}

	hb := buffer.NewBuffer(header)

	magic := make([]byte, 4)
	var version uint16
	var k uint8
	var count uint32

	buffer.Read(hb, magic)
	buffer.ReadUint16(hb, &version)
	buffer.ReadUint8(hb, &k)
	buffer.ReadUint32(hb, &count)

	if string(magic) != serializationMagic {
		return nil, n, fmt.Errorf("%w: invalid magic %q", ErrSerialization, magic)
	}

	if version != SerializationVersion {
		return nil, n, fmt.Errorf("%w: unsupported version %d", ErrSerialization, version)
	}

	if ObjectKind(k) != kind {
		return nil, n, fmt.Errorf("%w: object is a %v, not a %v", ErrSerialization, ObjectKind(k), kind)
	}

	for i := uint32(0); i < count; i++ {

		var sh []byte
		if sh, err = read(sectionHeaderSize); err != nil {
			return nil, n, fmt.Errorf("%w: cannot read section #%d: %w", ErrSerialization, i, err)
		}

		sb := buffer.NewBuffer(sh)

		var s Section
		var length uint64
		buffer.ReadUint16(sb, &s.Tag)
		buffer.ReadUint8(sb, &s.Flags)
		buffer.ReadUint64(sb, &length)

		if length > maxSectionSize {
			return nil, n, fmt.Errorf("%w: section #%d of %d bytes", ErrSerialization, i, length)
		}

		if s.Payload, err = read(length); err != nil {
			return nil, n, fmt.Errorf("%w: cannot read section #%d: %w", ErrSerialization, i, err)
		}

		sections = append(sections, s)
	}

	want := blake3.Sum256(raw.Bytes())

	var have []byte
	if have, err = read(digestSize); err != nil {
		return nil, n, fmt.Errorf("%w: cannot read digest: %w", ErrSerialization, err)
	}

	if !bytes.Equal(want[:], have) {
		return nil, n, fmt.Errorf("%w: digest mismatch", ErrSerialization)
	}

	return
}

// sectionReader dispatches the sections of a container to their decoders.
type sectionReader map[uint16]func(payload []byte) error

func (sr sectionReader) decode(kind ObjectKind, sections []Section) (err error) {

	seen := map[uint16]bool{}

	for _, s := range sections {

		f, ok := sr[s.Tag]

		switch {
		case !ok && s.Optional():
			continue
		case !ok:
			return fmt.Errorf("%w: %v: unknown mandatory section %d", ErrSerialization, kind, s.Tag)
		case seen[s.Tag]:
			return fmt.Errorf("%w: %v: duplicate section %d", ErrSerialization, kind, s.Tag)
		}

		seen[s.Tag] = true

		if err = f(s.Payload); err != nil {
			return fmt.Errorf("%w: %v: section %d: %w", ErrSerialization, kind, s.Tag, err)
		}
	}

	for tag := range sr {
		if !seen[tag] {
			return fmt.Errorf("%w: %v: missing section %d", ErrSerialization, kind, tag)
		}
	}

	return
}

// encode runs f on a writer and returns the written bytes.
func encode(f func(w buffer.Writer) error) []byte {
	var b bytes.Buffer
	w := bufio.NewWriter(&b)
	if err := f(w); err != nil {
		// Sanity check, writes on a bytes.Buffer cannot fail.
		panic(err)
	}
	if err := w.Flush(); err != nil {
		panic(err)
	}
	return b.Bytes()
}

// payloadReader returns a reader on the payload that fails on trailing bytes.
type payloadReader struct {
	*buffer.Buffer
}

func newPayloadReader(p []byte) payloadReader {
	return payloadReader{buffer.NewBuffer(p)}
}

func (pr payloadReader) done() error {
	if pr.Size() != 0 {
		return fmt.Errorf("%d trailing bytes", pr.Size())
	}
	return nil
}

// contextOf returns the context owning the ring of an object.
func contextOf(r *ring.Ring) (*Context, error) {
	if r != nil {
		if ctx, ok := r.Owner().(*Context); ok {
			return ctx, nil
		}
	}
	return nil, fmt.Errorf("%w: object is not bound to a context", ErrSerialization)
}

// receiverContext returns the context of the receiver of ReadFrom, which
// must hold a value of that context.
func receiverContext(d *ring.DoubleCRT) (*Context, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: receiver is not bound to a context, read it with the context instead", ErrSerialization)
	}
	return contextOf(d.Ring())
}

func fingerprintSection(ctx *Context) Section {
	return Section{Tag: tagFingerprint, Payload: append([]byte{}, ctx.fingerprint[:]...)}
}

func (ctx *Context) checkFingerprint(payload []byte) error {
	if !bytes.Equal(payload, ctx.fingerprint[:]) {
		return fmt.Errorf("object belongs to a different context")
	}
	return nil
}

func readKeyID(payload []byte, keyID *int) (err error) {
	pr := newPayloadReader(payload)
	var id uint64
	if _, err = buffer.ReadUint64(pr, &id); err != nil {
		return
	}
	*keyID = int(int64(id))
	return pr.done()
}

func keyIDSection(keyID int) Section {
	return Section{Tag: tagKeyID, Payload: encode(func(w buffer.Writer) (err error) {
		_, err = buffer.WriteUint64(w, uint64(int64(keyID)))
		return
	})}
}

func readDoubleCRT(payload []byte, ctx *Context, set ring.IndexSet) (d *ring.DoubleCRT, err error) {
	pr := newPayloadReader(payload)
	if d, _, err = ring.ReadDoubleCRT(pr, ctx.ring); err != nil {
		return
	}
	if !d.IndexSet().Equal(set) && !set.IsEmpty() {
		return nil, fmt.Errorf("element is over %v instead of %v", d.IndexSet(), set)
	}
	return d, pr.done()
}

func dcrtPayload(d *ring.DoubleCRT) []byte {
	return encode(func(w buffer.Writer) (err error) {
		_, err = d.WriteTo(w)
		return
	})
}

func writeContainer(w io.Writer, kind ObjectKind, sections []Section) (n int64, err error) {
	k, err := w.Write(EncodeContainer(kind, sections))
	return int64(k), err
}

// Context

func (ctx *Context) sections() []Section {
	lit, err := json.Marshal(ctx.Literal())
	if err != nil {
		// Sanity check, the literal of a valid context always marshals.
		panic(err)
	}
	security := encode(func(w buffer.Writer) (err error) {
		_, err = buffer.WriteFloat64(w, math.Round(ctx.SecurityLevel()))
		return
	})
	return []Section{
		{Tag: tagContextLiteral, Payload: lit},
		{Tag: tagContextSecurity, Flags: FlagOptional, Payload: security},
	}
}

func decodeContext(sections []Section) (ctx *Context, err error) {
	var lit ContextLiteral
	err = sectionReader{
		tagContextLiteral: func(p []byte) error {
			return json.Unmarshal(p, &lit)
		},
	}.decode(KindContext, sections)
	if err != nil {
		return
	}
	if ctx, err = NewContextFromLiteral(lit); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return
}

// WriteContextBinary writes the binary container of the context on w.
func WriteContextBinary(w io.Writer, ctx *Context) (n int64, err error) {
	return writeContainer(w, KindContext, ctx.sections())
}

// ReadContextBinary reads a context written by WriteContextBinary.
func ReadContextBinary(r io.Reader) (ctx *Context, err error) {
	var sections []Section
	if sections, _, err = DecodeContainer(r, KindContext); err != nil {
		return
	}
	return decodeContext(sections)
}

// BinarySize returns the serialized size of the object in bytes.
func (ctx *Context) BinarySize() int {
	return len(EncodeContainer(KindContext, ctx.sections()))
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (ctx *Context) MarshalBinary() ([]byte, error) {
	return EncodeContainer(KindContext, ctx.sections()), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or
// WriteTo on the object. The receiver is unchanged on error.
func (ctx *Context) UnmarshalBinary(p []byte) (err error) {
	_, err = ctx.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (ctx *Context) WriteTo(w io.Writer) (n int64, err error) {
	return WriteContextBinary(w, ctx)
}

// ReadFrom reads on a zero Context from an io.Reader. The receiver is unchanged on error.
func (ctx *Context) ReadFrom(r io.Reader) (n int64, err error) {
	if ctx.ring != nil {
		return 0, fmt.Errorf("%w: cannot ReadFrom: context is already initialized", ErrSerialization)
	}
	var sections []Section
	if sections, n, err = DecodeContainer(r, KindContext); err != nil {
		return
	}
	var c *Context
	if c, err = decodeContext(sections); err != nil {
		return
	}
	*ctx = *c
	ctx.ring.SetOwner(ctx)
	return
}

// SecretKey

func (sk *SecretKey) sections(ctx *Context) []Section {
	return []Section{
		fingerprintSection(ctx),
		keyIDSection(sk.KeyID),
		{Tag: tagValue, Payload: dcrtPayload(sk.Value)},
	}
}

func decodeSecretKey(ctx *Context, sections []Section) (sk *SecretKey, err error) {
	sk = &SecretKey{}
	err = sectionReader{
		tagFingerprint: ctx.checkFingerprint,
		tagKeyID:       func(p []byte) error { return readKeyID(p, &sk.KeyID) },
		tagValue: func(p []byte) (err error) {
			sk.Value, err = readDoubleCRT(p, ctx, ctx.FullPrimes())
			return
		},
	}.decode(KindSecretKey, sections)
	if err != nil {
		return nil, err
	}
	return
}

// WriteSecKeyBinary writes the binary container of the secret key on w.
func WriteSecKeyBinary(w io.Writer, ctx *Context, sk *SecretKey) (n int64, err error) {
	return writeContainer(w, KindSecretKey, sk.sections(ctx))
}

// ReadSecKeyBinary reads a secret key of the context written by WriteSecKeyBinary.
func ReadSecKeyBinary(r io.Reader, ctx *Context) (sk *SecretKey, err error) {
	var sections []Section
	if sections, _, err = DecodeContainer(r, KindSecretKey); err != nil {
		return
	}
	return decodeSecretKey(ctx, sections)
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (sk *SecretKey) MarshalBinary() (p []byte, err error) {
	var ctx *Context
	if ctx, err = contextOf(sk.Value.Ring()); err != nil {
		return
	}
	return EncodeContainer(KindSecretKey, sk.sections(ctx)), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or WriteTo on the object.
func (sk *SecretKey) UnmarshalBinary(p []byte) (err error) {
	_, err = sk.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (sk *SecretKey) WriteTo(w io.Writer) (n int64, err error) {
	var p []byte
	if p, err = sk.MarshalBinary(); err != nil {
		return
	}
	k, err := w.Write(p)
	return int64(k), err
}

// ReadFrom reads on the object from an io.Reader, in the context of the value it holds.
func (sk *SecretKey) ReadFrom(r io.Reader) (n int64, err error) {
	var sections []Section
	var ctx *Context
	if ctx, err = receiverContext(sk.Value); err != nil {
		return
	}
	if sections, n, err = DecodeContainer(r, KindSecretKey); err != nil {
		return
	}
	var k *SecretKey
	if k, err = decodeSecretKey(ctx, sections); err != nil {
		return
	}
	*sk = *k
	return
}

// PublicKey

func (pk *PublicKey) sections(ctx *Context) []Section {
	return []Section{
		fingerprintSection(ctx),
		keyIDSection(pk.KeyID),
		{Tag: tagValue, Payload: encode(func(w buffer.Writer) (err error) {
			for _, v := range pk.Value {
				if _, err = v.WriteTo(w); err != nil {
					return
				}
			}
			return
		})},
	}
}

func decodePublicKey(ctx *Context, sections []Section) (pk *PublicKey, err error) {
	pk = &PublicKey{}
	err = sectionReader{
		tagFingerprint: ctx.checkFingerprint,
		tagKeyID:       func(p []byte) error { return readKeyID(p, &pk.KeyID) },
		tagValue: func(p []byte) (err error) {
			pr := newPayloadReader(p)
			for i := range pk.Value {
				if pk.Value[i], _, err = ring.ReadDoubleCRT(pr, ctx.ring); err != nil {
					return
				}
				if !pk.Value[i].IndexSet().Equal(ctx.CtxtPrimes()) {
					return fmt.Errorf("public key is over %v", pk.Value[i].IndexSet())
				}
			}
			return pr.done()
		},
	}.decode(KindPublicKey, sections)
	if err != nil {
		return nil, err
	}
	return
}

// WritePubKeyBinary writes the binary container of the public key on w.
func WritePubKeyBinary(w io.Writer, ctx *Context, pk *PublicKey) (n int64, err error) {
	return writeContainer(w, KindPublicKey, pk.sections(ctx))
}

// ReadPubKeyBinary reads a public key of the context written by WritePubKeyBinary.
func ReadPubKeyBinary(r io.Reader, ctx *Context) (pk *PublicKey, err error) {
	var sections []Section
	if sections, _, err = DecodeContainer(r, KindPublicKey); err != nil {
		return
	}
	return decodePublicKey(ctx, sections)
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (pk *PublicKey) MarshalBinary() (p []byte, err error) {
	var ctx *Context
	if ctx, err = contextOf(pk.Value[0].Ring()); err != nil {
		return
	}
	return EncodeContainer(KindPublicKey, pk.sections(ctx)), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or WriteTo on the object.
func (pk *PublicKey) UnmarshalBinary(p []byte) (err error) {
	_, err = pk.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (pk *PublicKey) WriteTo(w io.Writer) (n int64, err error) {
	var p []byte
	if p, err = pk.MarshalBinary(); err != nil {
		return
	}
	k, err := w.Write(p)
	return int64(k), err
}

// ReadFrom reads on the object from an io.Reader, in the context of the value it holds.
func (pk *PublicKey) ReadFrom(r io.Reader) (n int64, err error) {
	var sections []Section
	var ctx *Context
	if ctx, err = receiverContext(pk.Value[0]); err != nil {
		return
	}
	if sections, n, err = DecodeContainer(r, KindPublicKey); err != nil {
		return
	}
	var k *PublicKey
	if k, err = decodePublicKey(ctx, sections); err != nil {
		return
	}
	*pk = *k
	return
}

// Ciphertext

func writeHandle(w buffer.Writer, h SKHandle) (err error) {
	if _, err = buffer.WriteUint64(w, uint64(int64(h.Power))); err != nil {
		return
	}
	if _, err = buffer.WriteUint64(w, h.Galois); err != nil {
		return
	}
	_, err = buffer.WriteUint64(w, uint64(int64(h.KeyID)))
	return
}

func readHandle(r buffer.Reader, ctx *Context) (h SKHandle, err error) {
	var power, galEl, keyID uint64
	if _, err = buffer.ReadUint64(r, &power); err != nil {
		return
	}
	if _, err = buffer.ReadUint64(r, &galEl); err != nil {
		return
	}
	if _, err = buffer.ReadUint64(r, &keyID); err != nil {
		return
	}
	h = SKHandle{Power: int(int64(power)), Galois: galEl, KeyID: int(int64(keyID))}
	if h.Power < 0 || galEl&1 == 0 || galEl >= uint64(ctx.m) {
		return h, fmt.Errorf("invalid handle %v", h)
	}
	return
}

func (ct *Ciphertext) sections(ctx *Context) []Section {
	return []Section{
		fingerprintSection(ctx),
		{Tag: tagMetadata, Payload: encode(func(w buffer.Writer) (err error) {
			if _, err = buffer.WriteFloat64(w, ct.NoiseBound); err != nil {
				return
			}
			if _, err = buffer.WriteUint64(w, ct.PtxtSpace); err != nil {
				return
			}
			if _, err = buffer.WriteUint64(w, ct.Factor); err != nil {
				return
			}
			_, err = buffer.WriteFloat64(w, ct.Scale)
			return
		})},
		{Tag: tagParts, Payload: encode(func(w buffer.Writer) (err error) {
			if _, err = buffer.WriteUint32(w, uint32(len(ct.Parts))); err != nil {
				return
			}
			for _, p := range ct.Parts {
				if err = writeHandle(w, p.Handle); err != nil {
					return
				}
				if _, err = p.Value.WriteTo(w); err != nil {
					return
				}
			}
			return
		})},
	}
}

func decodeCiphertext(ctx *Context, sections []Section) (ct *Ciphertext, err error) {
	ct = &Ciphertext{}
	err = sectionReader{
		tagFingerprint: ctx.checkFingerprint,
		tagMetadata: func(p []byte) (err error) {
			pr := newPayloadReader(p)
			if _, err = buffer.ReadFloat64(pr, &ct.NoiseBound); err != nil {
				return
			}
			if _, err = buffer.ReadUint64(pr, &ct.PtxtSpace); err != nil {
				return
			}
			if _, err = buffer.ReadUint64(pr, &ct.Factor); err != nil {
				return
			}
			if _, err = buffer.ReadFloat64(pr, &ct.Scale); err != nil {
				return
			}
			if ct.PtxtSpace != ctx.t {
				return fmt.Errorf("plaintext space %d differs from the context %d", ct.PtxtSpace, ctx.t)
			}
			return pr.done()
		},
		tagParts: func(p []byte) (err error) {
			pr := newPayloadReader(p)
			var count uint32
			if _, err = buffer.ReadUint32(pr, &count); err != nil {
				return
			}
			if count == 0 || count > 1<<10 {
				return fmt.Errorf("invalid number of parts %d", count)
			}
			ct.Parts = make([]CtxtPart, count)
			for i := range ct.Parts {
				if ct.Parts[i].Handle, err = readHandle(pr, ctx); err != nil {
					return
				}
				if ct.Parts[i].Value, _, err = ring.ReadDoubleCRT(pr, ctx.ring); err != nil {
					return
				}
			}
			if err = ct.check(); err != nil {
				return
			}
			if set := ct.IndexSet(); !set.Equal(ring.Interval(0, set.Len()-1)) || set.Len() > ctx.ctxt.Len() {
				return fmt.Errorf("ciphertext is over the primes %v", set)
			}
			return pr.done()
		},
	}.decode(KindCiphertext, sections)
	if err != nil {
		return nil, err
	}
	return
}

// WriteCiphertextBinary writes the binary container of the ciphertext on w.
func WriteCiphertextBinary(w io.Writer, ctx *Context, ct *Ciphertext) (n int64, err error) {
	return writeContainer(w, KindCiphertext, ct.sections(ctx))
}

// ReadCiphertextBinary reads a ciphertext of the context written by WriteCiphertextBinary.
// It fails if the ciphertext was written under another context.
func ReadCiphertextBinary(r io.Reader, ctx *Context) (ct *Ciphertext, err error) {
	var sections []Section
	if sections, _, err = DecodeContainer(r, KindCiphertext); err != nil {
		return
	}
	return decodeCiphertext(ctx, sections)
}

// BinarySize returns the serialized size of the object in bytes.
func (ct *Ciphertext) BinarySize() int {
	size := headerSize + digestSize + 3*sectionHeaderSize + 32 + 32 + 4
	for _, p := range ct.Parts {
		size += 24 + p.Value.BinarySize()
	}
	return size
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (ct *Ciphertext) MarshalBinary() (p []byte, err error) {
	if err = ct.check(); err != nil {
		return
	}
	var ctx *Context
	if ctx, err = contextOf(ct.Parts[0].Value.Ring()); err != nil {
		return
	}
	return EncodeContainer(KindCiphertext, ct.sections(ctx)), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or WriteTo on the object.
func (ct *Ciphertext) UnmarshalBinary(p []byte) (err error) {
	_, err = ct.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (ct *Ciphertext) WriteTo(w io.Writer) (n int64, err error) {
	var p []byte
	if p, err = ct.MarshalBinary(); err != nil {
		return
	}
	k, err := w.Write(p)
	return int64(k), err
}

// ReadFrom reads on the object from an io.Reader, in the context of the value it
// holds. The receiver is unchanged on error.
func (ct *Ciphertext) ReadFrom(r io.Reader) (n int64, err error) {
	var sections []Section
	var ctx *Context
	if len(ct.Parts) == 0 {
		ctx, err = receiverContext(nil)
	} else {
		ctx, err = receiverContext(ct.Parts[0].Value)
	}
	if err != nil {
		return
	}
	if sections, n, err = DecodeContainer(r, KindCiphertext); err != nil {
		return
	}
	var c *Ciphertext
	if c, err = decodeCiphertext(ctx, sections); err != nil {
		return
	}
	*ct = *c
	return
}

// KeySwitchMatrix and EvaluationKeySet

func writeKeySwitchMatrix(w buffer.Writer, ksm *KeySwitchMatrix) (err error) {
	if err = writeHandle(w, ksm.From); err != nil {
		return
	}
	if _, err = buffer.WriteUint64(w, uint64(int64(ksm.ToKeyID))); err != nil {
		return
	}
	if _, err = buffer.WriteUint32(w, uint32(len(ksm.Value))); err != nil {
		return
	}
	for _, col := range ksm.Value {
		for _, v := range col {
			if _, err = v.WriteTo(w); err != nil {
				return
			}
		}
	}
	return
}

func readKeySwitchMatrix(r buffer.Reader, ctx *Context) (ksm *KeySwitchMatrix, err error) {

	ksm = &KeySwitchMatrix{}

	if ksm.From, err = readHandle(r, ctx); err != nil {
		return
	}

	if ksm.From.IsOne() {
		return nil, fmt.Errorf("key-switching matrix from the constant handle")
	}

	var to uint64
	if _, err = buffer.ReadUint64(r, &to); err != nil {
		return
	}
	ksm.ToKeyID = int(int64(to))

	var cols uint32
	if _, err = buffer.ReadUint32(r, &cols); err != nil {
		return
	}

	if int(cols) != len(ctx.digits) {
		return nil, fmt.Errorf("key-switching matrix has %d columns for %d digits", cols, len(ctx.digits))
	}

	ksm.Value = make([][2]*ring.DoubleCRT, cols)
	for j := range ksm.Value {
		for i := range ksm.Value[j] {
			if ksm.Value[j][i], _, err = ring.ReadDoubleCRT(r, ctx.ring); err != nil {
				return
			}
			if !ksm.Value[j][i].IndexSet().Equal(ctx.FullPrimes()) {
				return nil, fmt.Errorf("key-switching matrix is over %v", ksm.Value[j][i].IndexSet())
			}
		}
	}

	return
}

func (evk *EvaluationKeySet) sections(ctx *Context) []Section {
	return []Section{
		fingerprintSection(ctx),
		{Tag: tagMatrices, Payload: encode(func(w buffer.Writer) (err error) {
			ksm := evk.Matrices()
			if _, err = buffer.WriteUint32(w, uint32(len(ksm))); err != nil {
				return
			}
			for _, k := range ksm {
				if err = writeKeySwitchMatrix(w, k); err != nil {
					return
				}
			}
			return
		})},
	}
}

func decodeEvaluationKeySet(ctx *Context, sections []Section) (evk *EvaluationKeySet, err error) {
	evk = NewEvaluationKeySet()
	err = sectionReader{
		tagFingerprint: ctx.checkFingerprint,
		tagMatrices: func(p []byte) (err error) {
			pr := newPayloadReader(p)
			var count uint32
			if _, err = buffer.ReadUint32(pr, &count); err != nil {
				return
			}
			for i := uint32(0); i < count; i++ {
				var ksm *KeySwitchMatrix
				if ksm, err = readKeySwitchMatrix(pr, ctx); err != nil {
					return
				}
				if evk.Has(ksm.From, ksm.ToKeyID) {
					return fmt.Errorf("duplicate key-switching matrix from %v to %d", ksm.From, ksm.ToKeyID)
				}
				evk.Add(ksm)
			}
			return pr.done()
		},
	}.decode(KindEvaluationKeySet, sections)
	if err != nil {
		return nil, err
	}
	return
}

// WriteEvalKeyBinary writes the binary container of the evaluation keys on w.
func WriteEvalKeyBinary(w io.Writer, ctx *Context, evk *EvaluationKeySet) (n int64, err error) {
	return writeContainer(w, KindEvaluationKeySet, evk.sections(ctx))
}

// ReadEvalKeyBinary reads evaluation keys of the context written by WriteEvalKeyBinary.
func ReadEvalKeyBinary(r io.Reader, ctx *Context) (evk *EvaluationKeySet, err error) {
	var sections []Section
	if sections, _, err = DecodeContainer(r, KindEvaluationKeySet); err != nil {
		return
	}
	return decodeEvaluationKeySet(ctx, sections)
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (evk *EvaluationKeySet) MarshalBinary() (p []byte, err error) {
	ksm := evk.Matrices()
	if len(ksm) == 0 {
		return nil, fmt.Errorf("cannot MarshalBinary: empty EvaluationKeySet is not bound to a context")
	}
	var ctx *Context
	if ctx, err = contextOf(ksm[0].Value[0][0].Ring()); err != nil {
		return
	}
	return EncodeContainer(KindEvaluationKeySet, evk.sections(ctx)), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or WriteTo on the object.
func (evk *EvaluationKeySet) UnmarshalBinary(p []byte) (err error) {
	_, err = evk.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (evk *EvaluationKeySet) WriteTo(w io.Writer) (n int64, err error) {
	var p []byte
	if p, err = evk.MarshalBinary(); err != nil {
		return
	}
	k, err := w.Write(p)
	return int64(k), err
}

// ReadFrom reads on the object from an io.Reader, in the context of the value it
// holds. The receiver is unchanged on error.
func (evk *EvaluationKeySet) ReadFrom(r io.Reader) (n int64, err error) {
	var sections []Section
	var ctx *Context
	if ksm := evk.Matrices(); len(ksm) == 0 {
		ctx, err = receiverContext(nil)
	} else {
		ctx, err = receiverContext(ksm[0].Value[0][0])
	}
	if err != nil {
		return
	}
	if sections, n, err = DecodeContainer(r, KindEvaluationKeySet); err != nil {
		return
	}
	var k *EvaluationKeySet
	if k, err = decodeEvaluationKeySet(ctx, sections); err != nil {
		return
	}
	*evk = *k
	return
}

// Plaintext

func (pt *Plaintext) sections(ctx *Context) []Section {
	return []Section{
		fingerprintSection(ctx),
		{Tag: tagMetadata, Payload: encode(func(w buffer.Writer) (err error) {
			if _, err = buffer.WriteFloat64(w, pt.Scale); err != nil {
				return
			}
			_, err = buffer.WriteFloat64(w, pt.LogBound)
			return
		})},
		{Tag: tagValue, Payload: dcrtPayload(pt.Value)},
	}
}

func decodePlaintext(ctx *Context, sections []Section) (pt *Plaintext, err error) {
	pt = &Plaintext{}
	err = sectionReader{
		tagFingerprint: ctx.checkFingerprint,
		tagMetadata: func(p []byte) (err error) {
			pr := newPayloadReader(p)
			if _, err = buffer.ReadFloat64(pr, &pt.Scale); err != nil {
				return
			}
			if _, err = buffer.ReadFloat64(pr, &pt.LogBound); err != nil {
				return
			}
			return pr.done()
		},
		tagValue: func(p []byte) (err error) {
			if pt.Value, err = readDoubleCRT(p, ctx, ring.IndexSet{}); err != nil {
				return
			}
			if set := pt.Value.IndexSet(); !set.Equal(ring.Interval(0, set.Len()-1)) || set.Len() > ctx.ctxt.Len() {
				return fmt.Errorf("plaintext is over the primes %v", set)
			}
			return
		},
	}.decode(KindPlaintext, sections)
	if err != nil {
		return nil, err
	}
	return
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (pt *Plaintext) MarshalBinary() (p []byte, err error) {
	var ctx *Context
	if ctx, err = contextOf(pt.Value.Ring()); err != nil {
		return
	}
	return EncodeContainer(KindPlaintext, pt.sections(ctx)), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary or WriteTo on the object.
func (pt *Plaintext) UnmarshalBinary(p []byte) (err error) {
	_, err = pt.ReadFrom(bytes.NewReader(p))
	return
}

// WriteTo writes the object on an io.Writer.
func (pt *Plaintext) WriteTo(w io.Writer) (n int64, err error) {
	var p []byte
	if p, err = pt.MarshalBinary(); err != nil {
		return
	}
	k, err := w.Write(p)
	return int64(k), err
}

// ReadFrom reads on the object from an io.Reader, in the context of the value it
// holds. The receiver is unchanged on error.
func (pt *Plaintext) ReadFrom(r io.Reader) (n int64, err error) {
	var sections []Section
	var ctx *Context
	if ctx, err = receiverContext(pt.Value); err != nil {
		return
	}
	if sections, n, err = DecodeContainer(r, KindPlaintext); err != nil {
		return
	}
	var p *Plaintext
	if p, err = decodePlaintext(ctx, sections); err != nil {
		return
	}
	*pt = *p
	return
}
