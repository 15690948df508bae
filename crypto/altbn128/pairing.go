package altbn128

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/zkforge/proofhost/types"
)

// Engine is the pairing-check primitive the host invokes. The input is an
// ordered sequence of 192-byte (G1, G2) wire pairs; the result reports
// whether the product of the pairings equals the identity of the target
// group. Implementations must be deterministic and synchronous.
type Engine func(input []byte) (bool, error)

// PairingCheck is the default Engine, backed by gnark-crypto. It validates
// every point before the check and treats the curve library as a trusted
// oracle for the pairing math itself.
func PairingCheck(input []byte) (bool, error) {
	if len(input) == 0 || len(input)%types.PairingPairSize != 0 {
		return false, fmt.Errorf("%w: pairing input of %d bytes", ErrFormat, len(input))
	}
	n := len(input) / types.PairingPairSize
	g1s := make([]bn254.G1Affine, n)
	g2s := make([]bn254.G2Affine, n)
	for i := 0; i < n; i++ {
		off := i * types.PairingPairSize
		p, err := DecodeG1(input[off : off+types.G1Size])
		if err != nil {
			return false, fmt.Errorf("pair %d: %w", i, err)
		}
		q, err := DecodeG2(input[off+types.G1Size : off+types.PairingPairSize])
		if err != nil {
			return false, fmt.Errorf("pair %d: %w", i, err)
		}
		g1s[i] = *p
		g2s[i] = *q
	}
	return bn254.PairingCheck(g1s, g2s)
}

// VerifierPairs assembles the pairing-check input for the Groth16 relation
// in the fixed order the equation requires:
//
//	[(-A, B), (alpha, beta), (prepared, gamma), (C, delta)]
//
// All arguments are host wire encodings; negA must already be negated.
func VerifierPairs(vk *types.VerifyingKey, negA, b, prepared, c types.HexBytes) ([]byte, error) {
	for name, g1 := range map[string]types.HexBytes{"A": negA, "prepared inputs": prepared, "C": c} {
		if len(g1) != types.G1Size {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrFormat, name, len(g1))
		}
	}
	if len(b) != types.G2Size {
		return nil, fmt.Errorf("%w: B is %d bytes", ErrFormat, len(b))
	}
	input := make([]byte, 0, 4*types.PairingPairSize)
	input = append(input, negA...)
	input = append(input, b...)
	input = append(input, vk.Alpha...)
	input = append(input, vk.Beta...)
	input = append(input, prepared...)
	input = append(input, vk.Gamma...)
	input = append(input, c...)
	input = append(input, vk.Delta...)
	return input, nil
}
