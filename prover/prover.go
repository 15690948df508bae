// Package prover runs the off-host side of the pipeline: trusted setup,
// proof generation and packaging of proofs for host submission. All proving
// is delegated to gnark's Groth16 backend over BN254.
package prover

import (
	"errors"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	cs_bn254 "github.com/consensys/gnark/constraint/bn254"
	"github.com/consensys/gnark/frontend"

	"github.com/zkforge/proofhost/log"
)

// ErrConstraintUnsatisfied is returned by Prove when the witness does not
// satisfy the circuit's constraint relation.
var ErrConstraintUnsatisfied = errors.New("witness does not satisfy the circuit constraints")

// Setup runs the circuit-specific trusted setup and returns the matched
// proving and verifying keys. The toxic randomness is drawn from the
// cryptographic randomness source inside gnark and discarded; a single-party
// setup like this stands in for a real multi-party ceremony.
func Setup(ccs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	start := time.Now()
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	log.Debugw("trusted setup complete",
		"constraints", ccs.GetNbConstraints(),
		"took", time.Since(start).String())
	return pk, vk, nil
}

// Prove generates a Groth16 proof for the given assignment. An assignment
// that does not satisfy the constraints yields ErrConstraintUnsatisfied.
func Prove(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment frontend.Circuit) (groth16.Proof, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	start := time.Now()
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		// Only the solver rejecting the witness maps to the typed error;
		// infrastructure faults keep their original identity.
		var unsat *cs_bn254.UnsatisfiedConstraintError
		if errors.As(err, &unsat) {
			return nil, fmt.Errorf("%w: %v", ErrConstraintUnsatisfied, err)
		}
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	log.Debugw("proof generated", "took", time.Since(start).String())
	return proof, nil
}
