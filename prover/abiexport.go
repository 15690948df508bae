package prover

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/zkforge/proofhost/types"
)

// ABIEncodePackage encodes a packaged proof for EVM-style hosts as
// (uint256[8] proof, uint256[] inputs), the layout Solidity Groth16
// verifiers take: Ax, Ay, Bx1, Bx0, By1, By0, Cx, Cy followed by the raw
// public input scalars.
func ABIEncodePackage(pkg *types.ProofPackage) ([]byte, error) {
	if len(pkg.Proof) != types.ProofSize {
		return nil, fmt.Errorf("proof is %d bytes, expected %d", len(pkg.Proof), types.ProofSize)
	}
	var proofArr [8]*big.Int
	for i := range proofArr {
		off := i * types.FieldElementSize
		proofArr[i] = new(big.Int).SetBytes(pkg.Proof[off : off+types.FieldElementSize])
	}
	inputs := make([]*big.Int, len(pkg.PublicInputs))
	for i, in := range pkg.PublicInputs {
		inputs[i] = new(big.Int).SetBytes(in)
	}

	proofType, err := abi.NewType("uint256[8]", "", nil)
	if err != nil {
		return nil, err
	}
	inputsType, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		return nil, err
	}
	arguments := abi.Arguments{
		{Type: proofType},
		{Type: inputsType},
	}
	return arguments.Pack(proofArr, inputs)
}
