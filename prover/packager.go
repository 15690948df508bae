package prover

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"github.com/zkforge/proofhost/crypto/altbn128"
	"github.com/zkforge/proofhost/types"
)

// WireProof serializes a gnark proof to the 256-byte host wire blob
// A || B || C. Proofs carrying commitment terms do not fit the fixed layout
// and are rejected.
func WireProof(proof groth16.Proof) (types.HexBytes, error) {
	bproof, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("expected a bn254 proof, got %T", proof)
	}
	if len(bproof.Commitments) > 0 {
		return nil, fmt.Errorf("proofs with commitments are not supported by the host wire layout")
	}
	out := make(types.HexBytes, 0, types.ProofSize)
	out = append(out, altbn128.EncodeG1(&bproof.Ar)...)
	out = append(out, altbn128.EncodeG2(&bproof.Bs)...)
	out = append(out, altbn128.EncodeG1(&bproof.Krs)...)
	return out, nil
}

// NativeProof serializes a gnark proof to the off-host little-endian
// convention, the format proof artifacts are stored and exchanged in before
// submission.
func NativeProof(proof groth16.Proof) (types.HexBytes, error) {
	wire, err := WireProof(proof)
	if err != nil {
		return nil, err
	}
	return altbn128.ProofWireToNative(wire)
}

// Package converts a raw proof into one of the three submission encodings.
//
// Lite leaves all verifier work to the host. Standard pre-negates A.
// Prepared additionally precomputes the accumulated public-input point; the
// raw inputs stay attached so the host can re-derive and cross-check it.
func Package(proof groth16.Proof, vk *types.VerifyingKey, publicInputs []types.HexBytes, mode types.PackagingMode) (*types.ProofPackage, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown packaging mode %q", mode)
	}
	if len(publicInputs)+1 != len(vk.GammaABC) {
		return nil, fmt.Errorf("%w: %d inputs for %d key elements",
			altbn128.ErrLengthMismatch, len(publicInputs), len(vk.GammaABC))
	}
	wire, err := WireProof(proof)
	if err != nil {
		return nil, err
	}
	pkg := &types.ProofPackage{
		Mode:         mode,
		Proof:        wire,
		PublicInputs: make([]types.HexBytes, len(publicInputs)),
	}
	for i, input := range publicInputs {
		pkg.PublicInputs[i] = input.LeftPad(types.FieldElementSize)
	}
	if mode == types.PackagingLite {
		return pkg, nil
	}

	// Standard and prepared submit A already negated.
	negA, err := altbn128.NegateG1Bytes(wire[:types.G1Size])
	if err != nil {
		return nil, fmt.Errorf("negate A: %w", err)
	}
	negated := make(types.HexBytes, types.ProofSize)
	copy(negated, negA)
	copy(negated[types.G1Size:], wire[types.G1Size:])
	pkg.Proof = negated

	if mode == types.PackagingPrepared {
		prepared, err := altbn128.PrepareInputsBytes(vk, pkg.PublicInputs)
		if err != nil {
			return nil, fmt.Errorf("prepare inputs: %w", err)
		}
		pkg.PreparedInputs = prepared
	}
	return pkg, nil
}
