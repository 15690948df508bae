package altbn128

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/zkforge/proofhost/types"
)

// PrepareInputs accumulates the public inputs against the verifying key:
// gammaABC[0] + Σ inputs[i]·gammaABC[i+1]. The result substitutes the
// per-input pairing terms in the verification equation.
func PrepareInputs(vk *types.VerifyingKey, publicInputs []types.HexBytes) (*bn254.G1Affine, error) {
	if len(publicInputs)+1 != len(vk.GammaABC) {
		return nil, fmt.Errorf("%w: %d inputs for %d key elements",
			ErrLengthMismatch, len(publicInputs), len(vk.GammaABC))
	}
	base, err := DecodeG1(vk.GammaABC[0])
	if err != nil {
		return nil, fmt.Errorf("gammaABC[0]: %w", err)
	}
	var acc bn254.G1Jac
	acc.FromAffine(base)

	var term bn254.G1Jac
	scalar := new(big.Int)
	for i, input := range publicInputs {
		s, err := DecodeScalar(input)
		if err != nil {
			return nil, fmt.Errorf("public input %d: %w", i, err)
		}
		point, err := DecodeG1(vk.GammaABC[i+1])
		if err != nil {
			return nil, fmt.Errorf("gammaABC[%d]: %w", i+1, err)
		}
		term.FromAffine(point)
		term.ScalarMultiplication(&term, s.BigInt(scalar))
		acc.AddAssign(&term)
	}
	return new(bn254.G1Affine).FromJacobian(&acc), nil
}

// PrepareInputsBytes is the wire-level form of PrepareInputs, returning the
// 64-byte host encoding of the accumulated point.
func PrepareInputsBytes(vk *types.VerifyingKey, publicInputs []types.HexBytes) (types.HexBytes, error) {
	p, err := PrepareInputs(vk, publicInputs)
	if err != nil {
		return nil, err
	}
	return EncodeG1(p), nil
}
