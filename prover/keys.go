package prover

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"github.com/zkforge/proofhost/crypto/altbn128"
	"github.com/zkforge/proofhost/log"
	"github.com/zkforge/proofhost/types"
)

const (
	provingKeyFile   = "pk.bin"
	verifyingKeyFile = "vk.bin"
)

// keyFileMu serializes key-file access within the process. Proving itself is
// freely parallel; only the files need single-writer discipline.
var keyFileMu sync.Mutex

// SaveKeys persists both keys under dir using gnark's binary encoding.
func SaveKeys(pk groth16.ProvingKey, vk groth16.VerifyingKey, dir string) error {
	keyFileMu.Lock()
	defer keyFileMu.Unlock()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := writeKey(filepath.Join(dir, provingKeyFile), pk); err != nil {
		return fmt.Errorf("save proving key: %w", err)
	}
	if err := writeKey(filepath.Join(dir, verifyingKeyFile), vk); err != nil {
		return fmt.Errorf("save verifying key: %w", err)
	}
	log.Infow("keys saved", "dir", dir)
	return nil
}

func writeKey(path string, key interface{ WriteTo(w io.Writer) (int64, error) }) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := key.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadKeys reads back the keys written by SaveKeys.
func LoadKeys(dir string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	keyFileMu.Lock()
	defer keyFileMu.Unlock()

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readKey(filepath.Join(dir, provingKeyFile), pk); err != nil {
		return nil, nil, fmt.Errorf("load proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readKey(filepath.Join(dir, verifyingKeyFile), vk); err != nil {
		return nil, nil, fmt.Errorf("load verifying key: %w", err)
	}
	return pk, vk, nil
}

func readKey(path string, key interface{ ReadFrom(r io.Reader) (int64, error) }) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = key.ReadFrom(f)
	return err
}

// WireVerifyingKey extracts the host wire form of a gnark verifying key:
// alpha, beta, gamma, delta and the gammaABC sequence, all in the big-endian
// host layout.
func WireVerifyingKey(vk groth16.VerifyingKey) (*types.VerifyingKey, error) {
	bvk, ok := vk.(*groth16_bn254.VerifyingKey)
	if !ok {
		return nil, fmt.Errorf("expected a bn254 verifying key, got %T", vk)
	}
	if len(bvk.PublicAndCommitmentCommitted) > 0 {
		return nil, fmt.Errorf("verifying keys with commitments are not supported by the host wire layout")
	}
	out := &types.VerifyingKey{
		Alpha:    altbn128.EncodeG1(&bvk.G1.Alpha),
		Beta:     altbn128.EncodeG2(&bvk.G2.Beta),
		Gamma:    altbn128.EncodeG2(&bvk.G2.Gamma),
		Delta:    altbn128.EncodeG2(&bvk.G2.Delta),
		GammaABC: make([]types.HexBytes, len(bvk.G1.K)),
	}
	for i := range bvk.G1.K {
		out.GammaABC[i] = altbn128.EncodeG1(&bvk.G1.K[i])
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("extracted verifying key: %w", err)
	}
	return out, nil
}
