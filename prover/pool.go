package prover

import (
	"context"
	"runtime"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/sync/errgroup"

	"github.com/zkforge/proofhost/log"
)

// Pool proves independent assignments in parallel against one compiled
// circuit and proving key. Requests share no mutable state, so the only
// coordination needed is the concurrency cap.
type Pool struct {
	ccs         constraint.ConstraintSystem
	pk          groth16.ProvingKey
	concurrency int
}

// NewPool creates a proving pool. A concurrency of zero or less defaults to
// the number of CPUs.
func NewPool(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool{ccs: ccs, pk: pk, concurrency: concurrency}
}

// ProveAll proves every assignment, preserving order. It stops on the first
// failure or on context cancellation and returns that error.
func (p *Pool) ProveAll(ctx context.Context, assignments []frontend.Circuit) ([]groth16.Proof, error) {
	proofs := make([]groth16.Proof, len(assignments))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, assignment := range assignments {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			proof, err := Prove(p.ccs, p.pk, assignment)
			if err != nil {
				return err
			}
			proofs[i] = proof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debugw("batch proving complete", "proofs", len(proofs), "concurrency", p.concurrency)
	return proofs, nil
}
