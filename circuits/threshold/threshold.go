// Package threshold defines the constraint circuit proven and verified by
// the pipeline: knowledge of a secret value greater than or equal to a
// public threshold, with both values range-limited to 32 bits.
package threshold

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/zkforge/proofhost/types"
)

// NumPublicInputs is the number of public inputs the circuit exposes.
const NumPublicInputs = 1

// rangeBits bounds both values to 32 bits so the difference cannot wrap
// around the scalar field.
const rangeBits = 32

// Circuit proves Secret >= Threshold without revealing Secret. Threshold is
// the single public input.
type Circuit struct {
	Secret    frontend.Variable
	Threshold frontend.Variable `gnark:",public"`
}

func (c *Circuit) Define(api frontend.API) error {
	// Binary decomposition constrains each value to rangeBits bits. The
	// plain decomposition is used on purpose: the commitment-backed range
	// checker would add extra elements to the proof, breaking the fixed
	// 256-byte wire layout.
	api.ToBinary(c.Secret, rangeBits)
	api.ToBinary(c.Threshold, rangeBits)

	// Secret - Threshold must fit the range too, which proves the
	// subtraction did not underflow below zero in the field.
	diff := api.Sub(c.Secret, c.Threshold)
	api.ToBinary(diff, rangeBits)
	return nil
}

// Compile compiles the circuit to an R1CS constraint system over the BN254
// scalar field.
func Compile() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Circuit{})
	if err != nil {
		return nil, fmt.Errorf("compile threshold circuit: %w", err)
	}
	return ccs, nil
}

// Assignment returns a fully assigned circuit for proving. Both values must
// fit the circuit's 32-bit range.
func Assignment(secret, thresholdValue uint64) (*Circuit, error) {
	if secret >= 1<<rangeBits || thresholdValue >= 1<<rangeBits {
		return nil, fmt.Errorf("values exceed the %d-bit circuit range", rangeBits)
	}
	return &Circuit{
		Secret:    secret,
		Threshold: thresholdValue,
	}, nil
}

// PublicInputs returns the circuit's public inputs as 32-byte big-endian
// scalars, in witness order.
func PublicInputs(thresholdValue uint64) []types.HexBytes {
	scalar := new(big.Int).SetUint64(thresholdValue)
	buf := make(types.HexBytes, types.FieldElementSize)
	scalar.FillBytes(buf)
	return []types.HexBytes{buf}
}
