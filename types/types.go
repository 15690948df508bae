// Package types defines the shared wire types of the proofhost pipeline:
// curve point byte layouts, proof packages, the verifying key wire form and
// the verification record persisted by the host.
package types

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Byte widths of the wire encodings. Every field element is a fixed-width
// 32-byte buffer; curve points are concatenations of field elements.
const (
	FieldElementSize = 32
	G1Size           = 2 * FieldElementSize           // affine x || y
	G2Size           = 4 * FieldElementSize           // two Fp2 coordinates
	ProofSize        = G1Size + G2Size + G1Size       // A || B || C
	PairingPairSize  = G1Size + G2Size                // one (G1, G2) pairing input
)

// PackagingMode selects how much of the verification work is precomputed
// off-host before submission.
type PackagingMode string

const (
	// PackagingLite submits the raw proof and raw public inputs. The host
	// negates A and accumulates the inputs itself.
	PackagingLite PackagingMode = "lite"
	// PackagingStandard submits a proof with A already negated; the host
	// accumulates the raw public inputs.
	PackagingStandard PackagingMode = "standard"
	// PackagingPrepared submits a proof with A already negated plus the
	// accumulated prepared-inputs point.
	PackagingPrepared PackagingMode = "prepared"
)

// Valid reports whether m is one of the known packaging modes.
func (m PackagingMode) Valid() bool {
	switch m {
	case PackagingLite, PackagingStandard, PackagingPrepared:
		return true
	}
	return false
}

// ProofPackage is a packaged proof ready for submission to the host. All
// byte fields use the host wire convention (big-endian field elements).
type ProofPackage struct {
	Mode PackagingMode `json:"mode" cbor:"0,keyasint"`
	// Proof is the 256-byte A || B || C blob. In standard and prepared
	// mode A is already negated.
	Proof HexBytes `json:"proof" cbor:"1,keyasint"`
	// PublicInputs are the raw 32-byte big-endian scalars. Always present,
	// also in prepared mode, so the host can re-derive the prepared point.
	PublicInputs []HexBytes `json:"publicInputs" cbor:"2,keyasint"`
	// PreparedInputs is the accumulated 64-byte G1 point. Only set in
	// prepared mode.
	PreparedInputs HexBytes `json:"preparedInputs,omitempty" cbor:"3,keyasint,omitempty"`
}

// VerifyingKey is the wire form of a Groth16 verifying key as the host
// consumes it. All points use the host wire convention.
type VerifyingKey struct {
	Alpha    HexBytes   `json:"alpha" cbor:"0,keyasint"`    // G1, 64 bytes
	Beta     HexBytes   `json:"beta" cbor:"1,keyasint"`     // G2, 128 bytes
	Gamma    HexBytes   `json:"gamma" cbor:"2,keyasint"`    // G2, 128 bytes
	Delta    HexBytes   `json:"delta" cbor:"3,keyasint"`    // G2, 128 bytes
	GammaABC []HexBytes `json:"gammaABC" cbor:"4,keyasint"` // G1 each, len = nPublic+1
}

// NumPublicInputs returns the number of public inputs the key expects.
func (vk *VerifyingKey) NumPublicInputs() int {
	return len(vk.GammaABC) - 1
}

// Validate checks the byte widths of every key component.
func (vk *VerifyingKey) Validate() error {
	if len(vk.Alpha) != G1Size {
		return fmt.Errorf("alpha: expected %d bytes, got %d", G1Size, len(vk.Alpha))
	}
	for name, g2 := range map[string]HexBytes{"beta": vk.Beta, "gamma": vk.Gamma, "delta": vk.Delta} {
		if len(g2) != G2Size {
			return fmt.Errorf("%s: expected %d bytes, got %d", name, G2Size, len(g2))
		}
	}
	if len(vk.GammaABC) == 0 {
		return fmt.Errorf("gammaABC is empty")
	}
	for i, p := range vk.GammaABC {
		if len(p) != G1Size {
			return fmt.Errorf("gammaABC[%d]: expected %d bytes, got %d", i, G1Size, len(p))
		}
	}
	return nil
}

// Marshal serializes the verifying key to its stable binary layout:
// alpha || beta || gamma || delta || n(uint32 BE) || gammaABC[0..n-1].
func (vk *VerifyingKey) Marshal() ([]byte, error) {
	if err := vk.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, G1Size+3*G2Size+4+len(vk.GammaABC)*G1Size)
	buf = append(buf, vk.Alpha...)
	buf = append(buf, vk.Beta...)
	buf = append(buf, vk.Gamma...)
	buf = append(buf, vk.Delta...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(vk.GammaABC)))
	for _, p := range vk.GammaABC {
		buf = append(buf, p...)
	}
	return buf, nil
}

// Unmarshal parses the stable binary layout produced by Marshal.
func (vk *VerifyingKey) Unmarshal(data []byte) error {
	fixed := G1Size + 3*G2Size + 4
	if len(data) < fixed {
		return fmt.Errorf("verifying key too short: %d bytes", len(data))
	}
	off := 0
	next := func(n int) HexBytes {
		out := make(HexBytes, n)
		copy(out, data[off:off+n])
		off += n
		return out
	}
	vk.Alpha = next(G1Size)
	vk.Beta = next(G2Size)
	vk.Gamma = next(G2Size)
	vk.Delta = next(G2Size)
	n := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4
	if len(data) != fixed+n*G1Size {
		return fmt.Errorf("verifying key length mismatch: expected %d bytes, got %d", fixed+n*G1Size, len(data))
	}
	vk.GammaABC = make([]HexBytes, n)
	for i := range vk.GammaABC {
		vk.GammaABC[i] = next(G1Size)
	}
	return nil
}

// Outcome is the tri-state result of a verification instruction.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// RejectCode identifies why an instruction was rejected. Empty on accepted
// records.
type RejectCode string

const (
	RejectNone                RejectCode = ""
	RejectFormat              RejectCode = "format"
	RejectInvalidPoint        RejectCode = "invalid_point"
	RejectLengthMismatch      RejectCode = "length_mismatch"
	RejectPairingFailed       RejectCode = "pairing_failed"
	RejectInsufficientBalance RejectCode = "insufficient_balance"
)

// VerificationRecord is the persisted outcome of one verification
// instruction. It is created when the instruction commits and is immutable
// afterwards; resubmission requires a fresh (owner, index) pair.
type VerificationRecord struct {
	Owner          HexBytes   `json:"owner" cbor:"0,keyasint"`
	Index          uint64     `json:"index" cbor:"1,keyasint"`
	Outcome        Outcome    `json:"outcome" cbor:"2,keyasint"`
	Code           RejectCode `json:"code,omitempty" cbor:"3,keyasint,omitempty"`
	BalanceChecked bool       `json:"balanceChecked" cbor:"4,keyasint"`
	BalanceOK      bool       `json:"balanceOk" cbor:"5,keyasint"`
	ComputeUsed    uint64     `json:"computeUsed" cbor:"6,keyasint"`
	PublicInputs   []HexBytes `json:"publicInputs,omitempty" cbor:"7,keyasint,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" cbor:"8,keyasint"`
}

// Accepted reports whether the record finalized as accepted.
func (r *VerificationRecord) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}
