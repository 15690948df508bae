package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/zkforge/proofhost/api"
	"github.com/zkforge/proofhost/circuits/threshold"
	"github.com/zkforge/proofhost/db"
	"github.com/zkforge/proofhost/db/pebbledb"
	"github.com/zkforge/proofhost/host"
	"github.com/zkforge/proofhost/log"
	"github.com/zkforge/proofhost/prover"
	"github.com/zkforge/proofhost/storage"
	"github.com/zkforge/proofhost/types"
)

func usage() {
	fmt.Fprintf(os.Stderr, "proofhost v%s\n\n", Version)
	fmt.Fprintf(os.Stderr, "Usage: proofhost <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  setup    compile the circuit, run the trusted setup and store the keys\n")
	fmt.Fprintf(os.Stderr, "  prove    produce a proof package for a secret and threshold\n")
	fmt.Fprintf(os.Stderr, "  verify   execute a verification instruction against the local store\n")
	fmt.Fprintf(os.Stderr, "  serve    start the verifier HTTP API\n\n")
	fmt.Fprintf(os.Stderr, "Run 'proofhost <command> --help' for command flags.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]
	cfg, err := loadConfig(command, os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level, cfg.Log.Output)

	switch command {
	case "setup":
		err = runSetup(cfg)
	case "prove":
		err = runProve(cfg)
	case "verify":
		err = runVerify(cfg)
	case "serve":
		err = runServe(cfg)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func keyDir(cfg *Config) string {
	return filepath.Join(cfg.Datadir, "keys")
}

func openStorage(cfg *Config) (*storage.Storage, error) {
	database, err := pebbledb.New(db.Options{Path: filepath.Join(cfg.Datadir, "db")})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return storage.New(database), nil
}

// runSetup compiles the circuit, runs the trusted setup, persists the keys
// and registers the wire verifying key in storage.
func runSetup(cfg *Config) error {
	log.Infow("compiling circuit")
	ccs, err := threshold.Compile()
	if err != nil {
		return err
	}
	log.Infow("running trusted setup", "constraints", ccs.GetNbConstraints())
	pk, gvk, err := prover.Setup(ccs)
	if err != nil {
		return err
	}
	if err := prover.SaveKeys(pk, gvk, keyDir(cfg)); err != nil {
		return err
	}
	vk, err := prover.WireVerifyingKey(gvk)
	if err != nil {
		return err
	}
	stg, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stg.Close()
	if err := stg.SetVerifyingKey(cfg.Verifier.KeyID, vk); err != nil {
		return err
	}
	log.Infow("setup complete", "keyId", cfg.Verifier.KeyID, "publicInputs", vk.NumPublicInputs())
	return nil
}

// runProve builds a proof package for the configured secret and threshold.
func runProve(cfg *Config) error {
	ccs, err := threshold.Compile()
	if err != nil {
		return err
	}
	pk, gvk, err := prover.LoadKeys(keyDir(cfg))
	if err != nil {
		return err
	}
	vk, err := prover.WireVerifyingKey(gvk)
	if err != nil {
		return err
	}
	assignment, err := threshold.Assignment(cfg.Prover.Secret, cfg.Prover.Threshold)
	if err != nil {
		return err
	}
	proof, err := prover.Prove(ccs, pk, assignment)
	if err != nil {
		return err
	}
	pkg, err := prover.Package(proof, vk, threshold.PublicInputs(cfg.Prover.Threshold),
		types.PackagingMode(cfg.Prover.Mode))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}
	if cfg.Prover.Out == "" {
		fmt.Println(string(data))
	} else if err := os.WriteFile(cfg.Prover.Out, append(data, '\n'), 0o640); err != nil {
		return err
	}
	if cfg.Prover.ABIOut != "" {
		abiData, err := prover.ABIEncodePackage(pkg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Prover.ABIOut, fmt.Appendf(nil, "0x%x\n", abiData), 0o640); err != nil {
			return err
		}
	}
	log.Infow("proof packaged", "mode", cfg.Prover.Mode, "threshold", cfg.Prover.Threshold)
	return nil
}

// runVerify executes one verification instruction against the local store
// and prints the committed record.
func runVerify(cfg *Config) error {
	if cfg.Package == "" || cfg.Owner == "" {
		return fmt.Errorf("--package and --owner are required")
	}
	data, err := os.ReadFile(cfg.Package)
	if err != nil {
		return err
	}
	var pkg types.ProofPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("parse proof package: %w", err)
	}
	owner, err := types.HexStringToHexBytes(cfg.Owner)
	if err != nil {
		return fmt.Errorf("parse owner address: %w", err)
	}

	stg, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stg.Close()
	verifier := host.New(stg, cfg.Verifier.KeyID, host.Options{
		ComputeBudget:       cfg.Verifier.Budget,
		TrustPreparedInputs: cfg.Verifier.TrustPrepared,
	})

	ins := &host.Instruction{Owner: owner, Index: cfg.Index}
	if cfg.Balance > 0 {
		ins.VerifyProofWithBalance = &host.VerifyProofWithBalance{
			Package:          pkg,
			BalanceThreshold: cfg.Balance,
		}
	} else {
		ins.VerifyProof = &host.VerifyProof{Package: pkg}
	}
	record, err := verifier.Execute(ins)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !record.Accepted() {
		os.Exit(1)
	}
	return nil
}

// runServe starts the verifier HTTP API and blocks until interrupted.
func runServe(cfg *Config) error {
	stg, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stg.Close()
	verifier := host.New(stg, cfg.Verifier.KeyID, host.Options{
		ComputeBudget:       cfg.Verifier.Budget,
		TrustPreparedInputs: cfg.Verifier.TrustPrepared,
	})
	if _, err := api.New(&api.APIConfig{
		Host:     cfg.API.Host,
		Port:     cfg.API.Port,
		Storage:  stg,
		Verifier: verifier,
		KeyID:    cfg.Verifier.KeyID,
	}); err != nil {
		return err
	}
	log.Infow("proofhost serving", "version", Version, "keyId", cfg.Verifier.KeyID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
	return nil
}
