package host

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zkforge/proofhost/types"
)

// Instruction decoding errors.
var (
	ErrMalformedInstruction = errors.New("malformed instruction")
	ErrDuplicateIndex       = errors.New("record already exists for this owner and index")
)

// VerifyProof asks the host to verify a packaged proof against its stored
// verifying key.
type VerifyProof struct {
	Package types.ProofPackage `json:"package" cbor:"0,keyasint"`
}

// VerifyProofWithBalance additionally requires the submitting account to
// hold at least BalanceThreshold units. The proof must still verify: an
// account cannot buy its way past a failing pairing check.
type VerifyProofWithBalance struct {
	Package          types.ProofPackage `json:"package" cbor:"0,keyasint"`
	BalanceThreshold uint64             `json:"balanceThreshold" cbor:"1,keyasint"`
}

// Instruction is the host's input envelope. Exactly one of the variant
// fields must be set; dispatch is by explicit matching in Execute, never by
// probing payload bytes.
type Instruction struct {
	Owner types.HexBytes `json:"owner" cbor:"0,keyasint"`
	Index uint64         `json:"index" cbor:"1,keyasint"`

	VerifyProof            *VerifyProof            `json:"verifyProof,omitempty" cbor:"2,keyasint,omitempty"`
	VerifyProofWithBalance *VerifyProofWithBalance `json:"verifyProofWithBalance,omitempty" cbor:"3,keyasint,omitempty"`
}

// pkg returns the variant's proof package, the balance threshold and whether
// a balance check applies. It fails unless exactly one variant is set.
func (ins *Instruction) pkg() (*types.ProofPackage, uint64, bool, error) {
	switch {
	case ins.VerifyProof != nil && ins.VerifyProofWithBalance != nil:
		return nil, 0, false, fmt.Errorf("%w: more than one variant set", ErrMalformedInstruction)
	case ins.VerifyProof != nil:
		return &ins.VerifyProof.Package, 0, false, nil
	case ins.VerifyProofWithBalance != nil:
		return &ins.VerifyProofWithBalance.Package, ins.VerifyProofWithBalance.BalanceThreshold, true, nil
	default:
		return nil, 0, false, fmt.Errorf("%w: no variant set", ErrMalformedInstruction)
	}
}

// Validate checks the envelope shape before any cryptographic work.
func (ins *Instruction) Validate() error {
	if len(ins.Owner) == 0 {
		return fmt.Errorf("%w: missing owner", ErrMalformedInstruction)
	}
	pkg, _, _, err := ins.pkg()
	if err != nil {
		return err
	}
	if !pkg.Mode.Valid() {
		return fmt.Errorf("%w: unknown packaging mode %q", ErrMalformedInstruction, pkg.Mode)
	}
	return nil
}

// DecodeInstruction parses a CBOR-encoded instruction envelope.
func DecodeInstruction(data []byte) (*Instruction, error) {
	var ins Instruction
	if err := cbor.Unmarshal(data, &ins); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	if err := ins.Validate(); err != nil {
		return nil, err
	}
	return &ins, nil
}

// EncodeInstruction serializes an instruction envelope to CBOR.
func EncodeInstruction(ins *Instruction) ([]byte, error) {
	if err := ins.Validate(); err != nil {
		return nil, err
	}
	return cbor.Marshal(ins)
}
