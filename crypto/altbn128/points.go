// Package altbn128 implements the byte-level interface between the proof
// pipeline and the BN254 (alt_bn128) pairing primitive: fixed-width point
// encodings, strict decoding with on-curve validation, proof component
// negation and public-input accumulation.
//
// Two serializations exist for every point. The host wire convention uses
// big-endian field elements with the G2 imaginary limb first, matching the
// alt_bn128 precompile layout. The native off-host convention uses
// little-endian field elements with the real limb first. Curve and field
// arithmetic is delegated entirely to gnark-crypto.
package altbn128

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/zkforge/proofhost/crypto/codec"
	"github.com/zkforge/proofhost/types"
)

var (
	// ErrFormat is returned for malformed widths or non-canonical field
	// element encodings, before any curve arithmetic happens.
	ErrFormat = errors.New("malformed point encoding")
	// ErrInvalidPoint is returned when a well-formed buffer does not
	// decode to a point on the curve (or in the right subgroup for G2).
	ErrInvalidPoint = errors.New("point is not on the curve")
	// ErrLengthMismatch is returned when the number of public inputs does
	// not match the verifying key.
	ErrLengthMismatch = errors.New("public input count does not match the verifying key")
)

// decodeFp decodes one canonical big-endian base field element.
func decodeFp(buf []byte) (fp.Element, error) {
	if len(buf) != types.FieldElementSize {
		return fp.Element{}, fmt.Errorf("%w: field element of %d bytes", ErrFormat, len(buf))
	}
	e, err := fp.BigEndian.Element((*[fp.Bytes]byte)(buf))
	if err != nil {
		return fp.Element{}, fmt.Errorf("%w: coordinate exceeds the field modulus", ErrFormat)
	}
	return e, nil
}

// DecodeScalar decodes one canonical big-endian scalar field element.
func DecodeScalar(buf []byte) (fr.Element, error) {
	if len(buf) != types.FieldElementSize {
		return fr.Element{}, fmt.Errorf("%w: scalar of %d bytes", ErrFormat, len(buf))
	}
	e, err := fr.BigEndian.Element((*[fr.Bytes]byte)(buf))
	if err != nil {
		return fr.Element{}, fmt.Errorf("%w: scalar exceeds the field modulus", ErrFormat)
	}
	return e, nil
}

// DecodeG1 decodes a 64-byte host wire G1 point and validates it. The
// all-zero buffer decodes to the point at infinity.
func DecodeG1(buf []byte) (*bn254.G1Affine, error) {
	if len(buf) != types.G1Size {
		return nil, fmt.Errorf("%w: G1 point of %d bytes, expected %d", ErrFormat, len(buf), types.G1Size)
	}
	var p bn254.G1Affine
	var err error
	if p.X, err = decodeFp(buf[:types.FieldElementSize]); err != nil {
		return nil, err
	}
	if p.Y, err = decodeFp(buf[types.FieldElementSize:]); err != nil {
		return nil, err
	}
	if p.IsInfinity() {
		return &p, nil
	}
	if !p.IsOnCurve() {
		return nil, fmt.Errorf("%w: G1", ErrInvalidPoint)
	}
	return &p, nil
}

// DecodeG2 decodes a 128-byte host wire G2 point (imaginary limb first per
// coordinate) and validates curve and subgroup membership.
func DecodeG2(buf []byte) (*bn254.G2Affine, error) {
	if len(buf) != types.G2Size {
		return nil, fmt.Errorf("%w: G2 point of %d bytes, expected %d", ErrFormat, len(buf), types.G2Size)
	}
	var p bn254.G2Affine
	var err error
	const fe = types.FieldElementSize
	if p.X.A1, err = decodeFp(buf[0:fe]); err != nil {
		return nil, err
	}
	if p.X.A0, err = decodeFp(buf[fe : 2*fe]); err != nil {
		return nil, err
	}
	if p.Y.A1, err = decodeFp(buf[2*fe : 3*fe]); err != nil {
		return nil, err
	}
	if p.Y.A0, err = decodeFp(buf[3*fe:]); err != nil {
		return nil, err
	}
	if p.IsInfinity() {
		return &p, nil
	}
	if !p.IsOnCurve() {
		return nil, fmt.Errorf("%w: G2", ErrInvalidPoint)
	}
	if !p.IsInSubGroup() {
		return nil, fmt.Errorf("%w: G2 point outside the r-torsion subgroup", ErrInvalidPoint)
	}
	return &p, nil
}

// EncodeG1 serializes a G1 point to the 64-byte host wire layout.
func EncodeG1(p *bn254.G1Affine) types.HexBytes {
	out := make([]byte, types.G1Size)
	x := p.X.Bytes()
	y := p.Y.Bytes()
	copy(out[:types.FieldElementSize], x[:])
	copy(out[types.FieldElementSize:], y[:])
	return out
}

// EncodeG2 serializes a G2 point to the 128-byte host wire layout.
func EncodeG2(p *bn254.G2Affine) types.HexBytes {
	out := make([]byte, types.G2Size)
	const fe = types.FieldElementSize
	xa1 := p.X.A1.Bytes()
	xa0 := p.X.A0.Bytes()
	ya1 := p.Y.A1.Bytes()
	ya0 := p.Y.A0.Bytes()
	copy(out[0:fe], xa1[:])
	copy(out[fe:2*fe], xa0[:])
	copy(out[2*fe:3*fe], ya1[:])
	copy(out[3*fe:], ya0[:])
	return out
}

// NegateG1 returns (x, p-y mod p) for a valid point. The point at infinity
// negates to itself.
func NegateG1(p *bn254.G1Affine) (*bn254.G1Affine, error) {
	if !p.IsInfinity() && !p.IsOnCurve() {
		return nil, fmt.Errorf("%w: cannot negate", ErrInvalidPoint)
	}
	var neg bn254.G1Affine
	neg.Neg(p)
	return &neg, nil
}

// NegateG1Bytes negates a host wire G1 point without changing x.
func NegateG1Bytes(buf []byte) (types.HexBytes, error) {
	p, err := DecodeG1(buf)
	if err != nil {
		return nil, err
	}
	neg, err := NegateG1(p)
	if err != nil {
		return nil, err
	}
	return EncodeG1(neg), nil
}

// G1NativeToWire converts a 64-byte native (little-endian) G1 encoding to
// the host wire layout. G1 has no extension limbs, so this is a pure
// per-element endianness flip.
func G1NativeToWire(buf []byte) (types.HexBytes, error) {
	if len(buf) != types.G1Size {
		return nil, fmt.Errorf("%w: G1 point of %d bytes, expected %d", ErrFormat, len(buf), types.G1Size)
	}
	out, err := codec.SwapEndianness(buf)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// G1WireToNative is the inverse of G1NativeToWire.
func G1WireToNative(buf []byte) (types.HexBytes, error) {
	return G1NativeToWire(buf)
}

// G2NativeToWire converts a 128-byte native G2 encoding (real limb first,
// little-endian) to the host wire layout (imaginary limb first,
// big-endian). The endianness flip happens per 32-byte element; swapping
// the limb order of each coordinate is a separate, explicit step so that
// sub-element ordering is never corrupted by a whole-buffer reversal.
func G2NativeToWire(buf []byte) (types.HexBytes, error) {
	if len(buf) != types.G2Size {
		return nil, fmt.Errorf("%w: G2 point of %d bytes, expected %d", ErrFormat, len(buf), types.G2Size)
	}
	flipped, err := codec.SwapEndianness(buf)
	if err != nil {
		return nil, err
	}
	return swapG2Limbs(flipped), nil
}

// G2WireToNative is the inverse of G2NativeToWire.
func G2WireToNative(buf []byte) (types.HexBytes, error) {
	return G2NativeToWire(buf)
}

// swapG2Limbs swaps the two 32-byte limbs of each of the two 64-byte G2
// coordinates.
func swapG2Limbs(buf []byte) []byte {
	const fe = types.FieldElementSize
	out := make([]byte, len(buf))
	for coord := 0; coord < 2; coord++ {
		base := coord * 2 * fe
		copy(out[base:base+fe], buf[base+fe:base+2*fe])
		copy(out[base+fe:base+2*fe], buf[base:base+fe])
	}
	return out
}

// ProofNativeToWire converts a 256-byte native proof blob (A || B || C) to
// the host wire layout.
func ProofNativeToWire(buf []byte) (types.HexBytes, error) {
	if len(buf) != types.ProofSize {
		return nil, fmt.Errorf("%w: proof of %d bytes, expected %d", ErrFormat, len(buf), types.ProofSize)
	}
	a, err := G1NativeToWire(buf[:types.G1Size])
	if err != nil {
		return nil, err
	}
	b, err := G2NativeToWire(buf[types.G1Size : types.G1Size+types.G2Size])
	if err != nil {
		return nil, err
	}
	c, err := G1NativeToWire(buf[types.G1Size+types.G2Size:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, types.ProofSize)
	out = append(out, a...)
	out = append(out, b...)
	out = append(out, c...)
	return out, nil
}

// ProofWireToNative is the inverse of ProofNativeToWire.
func ProofWireToNative(buf []byte) (types.HexBytes, error) {
	return ProofNativeToWire(buf)
}
