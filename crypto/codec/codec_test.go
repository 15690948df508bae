package codec

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"

	"github.com/zkforge/proofhost/types"
)

func TestSwapEndiannessInvolution(t *testing.T) {
	c := qt.New(t)

	// Representative field elements, including the group-law edge values.
	elements := []*fr.Element{
		new(fr.Element).SetZero(),
		new(fr.Element).SetOne(),
		new(fr.Element).SetUint64(42),
	}
	pMinusOne := new(fr.Element).SetZero()
	pMinusOne.Sub(pMinusOne, new(fr.Element).SetOne()) // p-1
	elements = append(elements, pMinusOne)

	for _, e := range elements {
		be := e.Bytes() // big-endian by gnark-crypto convention
		le, err := SwapEndianness(be[:])
		c.Assert(err, qt.IsNil)
		c.Assert(le, qt.HasLen, types.FieldElementSize)

		back, err := SwapEndianness(le)
		c.Assert(err, qt.IsNil)
		c.Assert(back, qt.DeepEquals, be[:])

		// Round-tripping through the field element restores the value.
		var decoded fr.Element
		decoded.SetBytes(back)
		c.Assert(decoded.Equal(e), qt.IsTrue)
	}
}

func TestSwapEndiannessMultiElement(t *testing.T) {
	c := qt.New(t)

	// Two elements: conversion must never cross the 32-byte boundary.
	buf := make([]byte, 2*types.FieldElementSize)
	buf[0] = 0x01                         // first element, most significant byte
	buf[types.FieldElementSize] = 0x02    // second element, most significant byte
	buf[2*types.FieldElementSize-1] = 0x03

	out, err := SwapEndianness(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(out[types.FieldElementSize-1], qt.Equals, byte(0x01))
	c.Assert(out[2*types.FieldElementSize-1], qt.Equals, byte(0x02))
	c.Assert(out[types.FieldElementSize], qt.Equals, byte(0x03))
}

func TestSwapEndiannessBadLength(t *testing.T) {
	c := qt.New(t)
	for _, n := range []int{1, 31, 33, 63} {
		_, err := SwapEndianness(make([]byte, n))
		c.Assert(err, qt.ErrorIs, ErrFormat, qt.Commentf("length %d", n))
	}
	// Empty input is a zero-element buffer, not an error.
	out, err := SwapEndianness(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.HasLen, 0)
}
