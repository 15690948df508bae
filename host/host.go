// Package host implements the on-host side of the proof pipeline: it
// executes verification instructions against a stored verifying key, charges
// deterministic compute units and persists one immutable record per
// (owner, index) pair.
package host

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/zkforge/proofhost/crypto/altbn128"
	"github.com/zkforge/proofhost/log"
	"github.com/zkforge/proofhost/storage"
	"github.com/zkforge/proofhost/types"
)

// ErrUnknownVerifyingKey is returned when the configured key id has no
// stored verifying key.
var ErrUnknownVerifyingKey = errors.New("no verifying key stored under the configured id")

// Options tune a Host. The zero value selects the defaults.
type Options struct {
	// ComputeBudget is the per-instruction budget in compute units.
	// Zero means DefaultComputeBudget.
	ComputeBudget uint64
	// TrustPreparedInputs makes the host use a submitted prepared-inputs
	// point as-is. By default it re-derives the point from the raw public
	// inputs and rejects on mismatch.
	TrustPreparedInputs bool
	// Engine overrides the pairing engine, mainly for tests. Nil means
	// altbn128.PairingCheck.
	Engine altbn128.Engine
}

// Host executes verification instructions. All instructions run serialized
// against the storage lock, so records and balances observe a single total
// order.
type Host struct {
	stg    *storage.Storage
	keyID  string
	budget uint64
	trust  bool
	engine altbn128.Engine
}

// New returns a host verifying against the key stored under keyID.
func New(stg *storage.Storage, keyID string, opts Options) *Host {
	h := &Host{
		stg:    stg,
		keyID:  keyID,
		budget: opts.ComputeBudget,
		trust:  opts.TrustPreparedInputs,
		engine: opts.Engine,
	}
	if h.budget == 0 {
		h.budget = DefaultComputeBudget
	}
	if h.engine == nil {
		h.engine = altbn128.PairingCheck
	}
	return h
}

// Execute runs one instruction to completion and returns the committed
// record. Verification failures are not errors: they commit a rejected
// record with a code. Errors mean the instruction as a whole was aborted
// and nothing was written, as on a malformed envelope, a duplicate index,
// an exhausted compute budget or a storage fault.
func (h *Host) Execute(ins *Instruction) (*types.VerificationRecord, error) {
	if err := ins.Validate(); err != nil {
		return nil, err
	}
	pkg, threshold, checkBalance, err := ins.pkg()
	if err != nil {
		return nil, err
	}

	vk, err := h.stg.VerifyingKey(h.keyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVerifyingKey, h.keyID)
		}
		return nil, fmt.Errorf("load verifying key: %w", err)
	}

	h.stg.Lock()
	defer h.stg.Unlock()

	tx := h.stg.WriteTx()
	defer tx.Discard()

	exists, err := h.stg.HasRecordTx(tx, ins.Owner, ins.Index)
	if err != nil {
		return nil, fmt.Errorf("check existing record: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: owner %s index %d", ErrDuplicateIndex, ins.Owner, ins.Index)
	}

	meter := NewMeter(h.budget)
	if err := meter.Consume(CostInstructionBase, "instruction"); err != nil {
		return nil, err
	}

	record := &types.VerificationRecord{
		Owner:        ins.Owner,
		Index:        ins.Index,
		Outcome:      types.OutcomePending,
		PublicInputs: pkg.PublicInputs,
		CreatedAt:    time.Now().UTC(),
	}

	code, err := h.verify(meter, vk, pkg)
	if err != nil {
		// Budget exhaustion and internal faults abort the whole
		// instruction; the discarded tx leaves no trace.
		return nil, err
	}

	if code == types.RejectNone && checkBalance {
		record.BalanceChecked = true
		balance, err := h.stg.BalanceTx(tx, ins.Owner)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		record.BalanceOK = balance >= threshold
		if !record.BalanceOK {
			code = types.RejectInsufficientBalance
		}
	}

	if code == types.RejectNone {
		record.Outcome = types.OutcomeAccepted
	} else {
		record.Outcome = types.OutcomeRejected
		record.Code = code
	}
	record.ComputeUsed = meter.Used()

	if err := h.stg.PutRecordTx(tx, record); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record: %w", err)
	}

	log.Debugw("instruction executed",
		"owner", record.Owner.String(),
		"index", record.Index,
		"outcome", string(record.Outcome),
		"code", string(record.Code),
		"computeUsed", record.ComputeUsed)
	return record, nil
}

// verify walks the package through shape validation, point decoding,
// prepared-input derivation and the pairing check. It returns a reject code
// for verification failures and an error only for fatal conditions.
func (h *Host) verify(meter *Meter, vk *types.VerifyingKey, pkg *types.ProofPackage) (types.RejectCode, error) {
	if err := vk.Validate(); err != nil {
		return types.RejectNone, fmt.Errorf("stored verifying key is invalid: %w", err)
	}

	if len(pkg.Proof) != types.ProofSize {
		return types.RejectFormat, nil
	}
	if len(pkg.PublicInputs) != vk.NumPublicInputs() {
		return types.RejectLengthMismatch, nil
	}
	for _, in := range pkg.PublicInputs {
		if len(in) != types.FieldElementSize {
			return types.RejectFormat, nil
		}
	}
	switch pkg.Mode {
	case types.PackagingPrepared:
		if len(pkg.PreparedInputs) != types.G1Size {
			return types.RejectFormat, nil
		}
	default:
		if len(pkg.PreparedInputs) != 0 {
			return types.RejectFormat, nil
		}
	}

	a := pkg.Proof[:types.G1Size]
	b := pkg.Proof[types.G1Size : types.G1Size+types.G2Size]
	c := pkg.Proof[types.G1Size+types.G2Size:]

	// Decode all proof points up front so that off-curve or non-canonical
	// encodings reject before any pairing work.
	if err := meter.Consume(3*CostPointCheck, "proof point checks"); err != nil {
		return types.RejectNone, err
	}
	if _, err := altbn128.DecodeG1(a); err != nil {
		return rejectCodeFor(err)
	}
	if _, err := altbn128.DecodeG2(b); err != nil {
		return rejectCodeFor(err)
	}
	if _, err := altbn128.DecodeG1(c); err != nil {
		return rejectCodeFor(err)
	}

	var negA types.HexBytes
	switch pkg.Mode {
	case types.PackagingLite:
		// Raw proof: the host flips A itself.
		if err := meter.Consume(CostPointCheck, "negate A"); err != nil {
			return types.RejectNone, err
		}
		flipped, err := altbn128.NegateG1Bytes(a)
		if err != nil {
			return rejectCodeFor(err)
		}
		negA = flipped
	default:
		// Standard and prepared packages carry A pre-negated.
		negA = types.HexBytes(a)
	}

	prepared, code, err := h.preparedPoint(meter, vk, pkg)
	if err != nil || code != types.RejectNone {
		return code, err
	}

	nPairs := uint64(4)
	if err := meter.Consume(CostPairingBase+nPairs*CostPerPairingPair, "pairing check"); err != nil {
		return types.RejectNone, err
	}
	pairs, err := altbn128.VerifierPairs(vk, negA, types.HexBytes(b), prepared, types.HexBytes(c))
	if err != nil {
		return rejectCodeFor(err)
	}
	ok, err := h.engine(pairs)
	if err != nil {
		if code, cerr := rejectCodeFor(err); cerr == nil {
			return code, nil
		}
		return types.RejectNone, fmt.Errorf("pairing engine: %w", err)
	}
	if !ok {
		return types.RejectPairingFailed, nil
	}
	return types.RejectNone, nil
}

// preparedPoint returns the prepared-inputs point for the pairing check. In
// prepared mode the submitted point is only taken as-is when the host is
// configured to trust it; otherwise it is re-derived and compared.
func (h *Host) preparedPoint(meter *Meter, vk *types.VerifyingKey, pkg *types.ProofPackage) (types.HexBytes, types.RejectCode, error) {
	if pkg.Mode == types.PackagingPrepared && h.trust {
		if err := meter.Consume(CostPointCheck, "prepared point check"); err != nil {
			return nil, types.RejectNone, err
		}
		if _, err := altbn128.DecodeG1(pkg.PreparedInputs); err != nil {
			code, cerr := rejectCodeFor(err)
			return nil, code, cerr
		}
		return pkg.PreparedInputs, types.RejectNone, nil
	}

	n := uint64(len(pkg.PublicInputs))
	if err := meter.Consume(n*(CostG1ScalarMul+CostG1Add), "prepare inputs"); err != nil {
		return nil, types.RejectNone, err
	}
	derived, err := altbn128.PrepareInputsBytes(vk, pkg.PublicInputs)
	if err != nil {
		code, cerr := rejectCodeFor(err)
		return nil, code, cerr
	}
	if pkg.Mode == types.PackagingPrepared && !bytes.Equal(derived, pkg.PreparedInputs) {
		// The submitted point does not match the raw inputs it claims
		// to accumulate.
		return nil, types.RejectInvalidPoint, nil
	}
	return derived, types.RejectNone, nil
}

// rejectCodeFor maps point and scalar decoding errors to reject codes.
// Unknown errors pass through as fatal.
func rejectCodeFor(err error) (types.RejectCode, error) {
	switch {
	case errors.Is(err, altbn128.ErrInvalidPoint):
		return types.RejectInvalidPoint, nil
	case errors.Is(err, altbn128.ErrFormat):
		return types.RejectFormat, nil
	case errors.Is(err, altbn128.ErrLengthMismatch):
		return types.RejectLengthMismatch, nil
	}
	return types.RejectNone, err
}
