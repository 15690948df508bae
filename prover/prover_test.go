package prover

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	qt "github.com/frankban/quicktest"

	"github.com/zkforge/proofhost/circuits/threshold"
	"github.com/zkforge/proofhost/crypto/altbn128"
	"github.com/zkforge/proofhost/types"
)

type fixture struct {
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	gvk    groth16.VerifyingKey
	vk     *types.VerifyingKey
	proof  groth16.Proof
	inputs []types.HexBytes
}

var (
	fixOnce sync.Once
	fix     *fixture
	fixErr  error
)

func testFixture(t *testing.T) *fixture {
	t.Helper()
	fixOnce.Do(func() {
		f := &fixture{}
		if f.ccs, fixErr = threshold.Compile(); fixErr != nil {
			return
		}
		if f.pk, f.gvk, fixErr = Setup(f.ccs); fixErr != nil {
			return
		}
		if f.vk, fixErr = WireVerifyingKey(f.gvk); fixErr != nil {
			return
		}
		var assignment *threshold.Circuit
		if assignment, fixErr = threshold.Assignment(42, 42); fixErr != nil {
			return
		}
		if f.proof, fixErr = Prove(f.ccs, f.pk, assignment); fixErr != nil {
			return
		}
		f.inputs = threshold.PublicInputs(42)
		fix = f
	})
	if fixErr != nil {
		t.Fatalf("building prover fixture: %v", fixErr)
	}
	return fix
}

// pairingAccepts runs the verifier equation on a packaged proof the way the
// host does.
func pairingAccepts(t *testing.T, f *fixture, pkg *types.ProofPackage) bool {
	t.Helper()
	c := qt.New(t)

	negA := types.HexBytes(pkg.Proof[:types.G1Size])
	if pkg.Mode == types.PackagingLite {
		var err error
		negA, err = altbn128.NegateG1Bytes(negA)
		c.Assert(err, qt.IsNil)
	}
	prepared, err := altbn128.PrepareInputsBytes(f.vk, pkg.PublicInputs)
	c.Assert(err, qt.IsNil)
	pairs, err := altbn128.VerifierPairs(f.vk, negA,
		types.HexBytes(pkg.Proof[types.G1Size:types.G1Size+types.G2Size]),
		prepared,
		types.HexBytes(pkg.Proof[types.G1Size+types.G2Size:]))
	c.Assert(err, qt.IsNil)
	ok, err := altbn128.PairingCheck(pairs)
	c.Assert(err, qt.IsNil)
	return ok
}

func TestSetupProveVerify(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	wire, err := WireProof(f.proof)
	c.Assert(err, qt.IsNil)
	c.Assert(wire, qt.HasLen, types.ProofSize)

	// Every component decodes to a valid curve point.
	_, err = altbn128.DecodeG1(wire[:types.G1Size])
	c.Assert(err, qt.IsNil)
	_, err = altbn128.DecodeG2(wire[types.G1Size : types.G1Size+types.G2Size])
	c.Assert(err, qt.IsNil)
	_, err = altbn128.DecodeG1(wire[types.G1Size+types.G2Size:])
	c.Assert(err, qt.IsNil)

	c.Assert(f.vk.NumPublicInputs(), qt.Equals, threshold.NumPublicInputs)

	pkg, err := Package(f.proof, f.vk, f.inputs, types.PackagingLite)
	c.Assert(err, qt.IsNil)
	c.Assert(pairingAccepts(t, f, pkg), qt.IsTrue)
}

func TestPackageModes(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	wire, err := WireProof(f.proof)
	c.Assert(err, qt.IsNil)

	lite, err := Package(f.proof, f.vk, f.inputs, types.PackagingLite)
	c.Assert(err, qt.IsNil)
	c.Assert(lite.Proof, qt.DeepEquals, wire)
	c.Assert(lite.PreparedInputs, qt.HasLen, 0)

	standard, err := Package(f.proof, f.vk, f.inputs, types.PackagingStandard)
	c.Assert(err, qt.IsNil)
	// A is negated, B and C are untouched.
	c.Assert([]byte(standard.Proof[:types.G1Size]), qt.Not(qt.DeepEquals), []byte(wire[:types.G1Size]))
	c.Assert([]byte(standard.Proof[types.G1Size:]), qt.DeepEquals, []byte(wire[types.G1Size:]))
	// Negation is an involution.
	again, err := altbn128.NegateG1Bytes(standard.Proof[:types.G1Size])
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(again), qt.DeepEquals, []byte(wire[:types.G1Size]))

	prepared, err := Package(f.proof, f.vk, f.inputs, types.PackagingPrepared)
	c.Assert(err, qt.IsNil)
	c.Assert(prepared.Proof, qt.DeepEquals, standard.Proof)
	c.Assert(prepared.PublicInputs, qt.DeepEquals, lite.PublicInputs)
	want, err := altbn128.PrepareInputsBytes(f.vk, f.inputs)
	c.Assert(err, qt.IsNil)
	c.Assert(prepared.PreparedInputs, qt.DeepEquals, want)

	// All three verify.
	for _, pkg := range []*types.ProofPackage{lite, standard, prepared} {
		c.Assert(pairingAccepts(t, f, pkg), qt.IsTrue, qt.Commentf("mode %s", pkg.Mode))
	}

	_, err = Package(f.proof, f.vk, nil, types.PackagingLite)
	c.Assert(err, qt.ErrorIs, altbn128.ErrLengthMismatch)
	_, err = Package(f.proof, f.vk, f.inputs, types.PackagingMode("compact"))
	c.Assert(err, qt.ErrorMatches, `unknown packaging mode .*`)
}

func TestPackagePadsShortInputs(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	short := []types.HexBytes{{0x2a}}
	pkg, err := Package(f.proof, f.vk, short, types.PackagingLite)
	c.Assert(err, qt.IsNil)
	c.Assert(pkg.PublicInputs[0], qt.HasLen, types.FieldElementSize)
	c.Assert(pkg.PublicInputs[0], qt.DeepEquals, threshold.PublicInputs(42)[0])
}

func TestNativeProofRoundTrip(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	wire, err := WireProof(f.proof)
	c.Assert(err, qt.IsNil)
	native, err := NativeProof(f.proof)
	c.Assert(err, qt.IsNil)
	c.Assert(native, qt.HasLen, types.ProofSize)
	c.Assert([]byte(native), qt.Not(qt.DeepEquals), []byte(wire))

	back, err := altbn128.ProofNativeToWire(native)
	c.Assert(err, qt.IsNil)
	c.Assert(back, qt.DeepEquals, wire)
}

func TestSaveAndLoadKeys(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)
	dir := t.TempDir()

	c.Assert(SaveKeys(f.pk, f.gvk, dir), qt.IsNil)
	pk, gvk, err := LoadKeys(dir)
	c.Assert(err, qt.IsNil)

	vk, err := WireVerifyingKey(gvk)
	c.Assert(err, qt.IsNil)
	c.Assert(vk, qt.DeepEquals, f.vk)

	// The reloaded proving key still produces verifiable proofs.
	assignment, err := threshold.Assignment(100, 42)
	c.Assert(err, qt.IsNil)
	proof, err := Prove(f.ccs, pk, assignment)
	c.Assert(err, qt.IsNil)
	pkg, err := Package(proof, vk, f.inputs, types.PackagingStandard)
	c.Assert(err, qt.IsNil)
	c.Assert(pairingAccepts(t, f, pkg), qt.IsTrue)

	_, _, err = LoadKeys(t.TempDir())
	c.Assert(err, qt.IsNotNil)
}

func TestProveUnsatisfiedWitness(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	assignment, err := threshold.Assignment(41, 42)
	c.Assert(err, qt.IsNil)
	_, err = Prove(f.ccs, f.pk, assignment)
	c.Assert(err, qt.ErrorIs, ErrConstraintUnsatisfied)
}

// wideAssignment carries one extra variable, so its witness never fits the
// threshold constraint system.
type wideAssignment struct {
	Secret    frontend.Variable
	Threshold frontend.Variable `gnark:",public"`
	Extra     frontend.Variable `gnark:",public"`
}

func (a *wideAssignment) Define(frontend.API) error { return nil }

func TestProveMismatchedWitnessIsNotUnsatisfied(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	// A wrong-shaped witness is an infrastructure fault, not a failed
	// constraint relation.
	_, err := Prove(f.ccs, f.pk, &wideAssignment{Secret: 42, Threshold: 42, Extra: 1})
	c.Assert(err, qt.IsNotNil)
	c.Assert(errors.Is(err, ErrConstraintUnsatisfied), qt.IsFalse)
}

func TestPoolProveAll(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	pool := NewPool(f.ccs, f.pk, 2)
	secrets := []uint64{42, 50, 1_000}
	assignments := make([]frontend.Circuit, len(secrets))
	for i, secret := range secrets {
		a, err := threshold.Assignment(secret, 42)
		c.Assert(err, qt.IsNil)
		assignments[i] = a
	}

	proofs, err := pool.ProveAll(context.Background(), assignments)
	c.Assert(err, qt.IsNil)
	c.Assert(proofs, qt.HasLen, len(secrets))
	for i, proof := range proofs {
		pkg, err := Package(proof, f.vk, f.inputs, types.PackagingPrepared)
		c.Assert(err, qt.IsNil)
		c.Assert(pairingAccepts(t, f, pkg), qt.IsTrue, qt.Commentf("proof %d", i))
	}

	// One bad witness fails the batch.
	badAssignment, err := threshold.Assignment(1, 42)
	c.Assert(err, qt.IsNil)
	_, err = pool.ProveAll(context.Background(), []frontend.Circuit{assignments[0], badAssignment})
	c.Assert(err, qt.ErrorIs, ErrConstraintUnsatisfied)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.ProveAll(ctx, assignments)
	c.Assert(err, qt.IsNotNil)
}

func TestABIEncodePackage(t *testing.T) {
	c := qt.New(t)
	f := testFixture(t)

	pkg, err := Package(f.proof, f.vk, f.inputs, types.PackagingStandard)
	c.Assert(err, qt.IsNil)
	data, err := ABIEncodePackage(pkg)
	c.Assert(err, qt.IsNil)

	// uint256[8] head, offset word, length word, one input word.
	c.Assert(data, qt.HasLen, (8+1+1+1)*32)
	for i := 0; i < 8; i++ {
		word := new(big.Int).SetBytes(data[i*32 : (i+1)*32])
		want := new(big.Int).SetBytes(pkg.Proof[i*32 : (i+1)*32])
		c.Assert(word.Cmp(want), qt.Equals, 0, qt.Commentf("word %d", i))
	}
	c.Assert(binary.BigEndian.Uint64(data[8*32+24:9*32]), qt.Equals, uint64(9*32))
	c.Assert(binary.BigEndian.Uint64(data[9*32+24:10*32]), qt.Equals, uint64(1))
	c.Assert(data[10*32:], qt.DeepEquals, []byte(pkg.PublicInputs[0]))

	bad := &types.ProofPackage{Proof: types.HexBytes{0x01}}
	_, err = ABIEncodePackage(bad)
	c.Assert(err, qt.ErrorMatches, "proof is .*")
}
