package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/zkforge/proofhost/db"
	"github.com/zkforge/proofhost/db/inmemory"
	"github.com/zkforge/proofhost/host"
	stg "github.com/zkforge/proofhost/storage"
	"github.com/zkforge/proofhost/types"
)

const testKeyID = "test-key"

// newTestAPI builds an API around an in-memory storage and a verifier whose
// pairing engine always accepts, so handler behavior can be tested without
// running a prover.
func newTestAPI(t *testing.T) (*httptest.Server, *stg.Storage) {
	t.Helper()
	database, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	storage := stg.New(database)
	t.Cleanup(storage.Close)

	// The all-zero encodings decode to points at infinity, which are
	// valid pairing inputs.
	vk := &types.VerifyingKey{
		Alpha: make(types.HexBytes, types.G1Size),
		Beta:  make(types.HexBytes, types.G2Size),
		Gamma: make(types.HexBytes, types.G2Size),
		Delta: make(types.HexBytes, types.G2Size),
		GammaABC: []types.HexBytes{
			make(types.HexBytes, types.G1Size),
			make(types.HexBytes, types.G1Size),
		},
	}
	qt.Assert(t, storage.SetVerifyingKey(testKeyID, vk), qt.IsNil)

	verifier := host.New(storage, testKeyID, host.Options{
		Engine: func([]byte) (bool, error) { return true, nil },
	})
	a := &API{storage: storage, verifier: verifier, keyID: testKeyID}
	a.initRouter()
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	return server, storage
}

func testInstruction(owner types.HexBytes, index uint64) *host.Instruction {
	return &host.Instruction{
		Owner: owner,
		Index: index,
		VerifyProof: &host.VerifyProof{
			Package: types.ProofPackage{
				Mode:         types.PackagingLite,
				Proof:        make(types.HexBytes, types.ProofSize),
				PublicInputs: []types.HexBytes{make(types.HexBytes, types.FieldElementSize)},
			},
		},
	}
}

func doJSON(t *testing.T, method, url string, body, out any) int {
	t.Helper()
	c := qt.New(t)
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	c.Assert(err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		c.Assert(json.NewDecoder(resp.Body).Decode(out), qt.IsNil)
	}
	return resp.StatusCode
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	server, _ := newTestAPI(t)
	resp, err := http.Get(server.URL + PingEndpoint)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(resp.Header.Get("X-Request-Id"), qt.Not(qt.Equals), "")
}

func TestSubmitAndFetchRecord(t *testing.T) {
	c := qt.New(t)
	server, _ := newTestAPI(t)
	owner := types.HexBytes{0xab, 0xcd}

	var record types.VerificationRecord
	status := doJSON(t, http.MethodPost, server.URL+VerifyEndpoint, testInstruction(owner, 0), &record)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(record.Outcome, qt.Equals, types.OutcomeAccepted)
	c.Assert(record.Owner, qt.DeepEquals, owner)

	// Resubmitting the same slot conflicts.
	var apiErr struct {
		Code int `json:"code"`
	}
	status = doJSON(t, http.MethodPost, server.URL+VerifyEndpoint, testInstruction(owner, 0), &apiErr)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(apiErr.Code, qt.Equals, ErrRecordAlreadyExists.Code)

	// Fetch the single record and the owner listing.
	var fetched types.VerificationRecord
	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/records/%s/0", server.URL, owner.String()), nil, &fetched)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(fetched.Outcome, qt.Equals, types.OutcomeAccepted)

	var records []*types.VerificationRecord
	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/records/%s", server.URL, owner.String()), nil, &records)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(records, qt.HasLen, 1)

	// Missing record and malformed parameters.
	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/records/%s/99", server.URL, owner.String()), nil, &apiErr)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, ErrResourceNotFound.Code)

	status = doJSON(t, http.MethodGet, server.URL+"/records/nothex/0", nil, &apiErr)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedAddress.Code)

	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/records/%s/notanumber", server.URL, owner.String()), nil, &apiErr)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedParam.Code)
}

func TestSubmitMalformedInstruction(t *testing.T) {
	c := qt.New(t)
	server, _ := newTestAPI(t)

	var apiErr struct {
		Code int `json:"code"`
	}
	// No variant set.
	status := doJSON(t, http.MethodPost, server.URL+VerifyEndpoint,
		&host.Instruction{Owner: types.HexBytes{0x01}}, &apiErr)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedInstruction.Code)

	// Not JSON at all.
	resp, err := http.Post(server.URL+VerifyEndpoint, "application/json", bytes.NewReader([]byte("not json")))
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestAccountEndpoints(t *testing.T) {
	c := qt.New(t)
	server, _ := newTestAPI(t)
	owner := types.HexBytes{0x11, 0x22}

	// Unknown accounts hold zero.
	var account AccountResponse
	status := doJSON(t, http.MethodGet, fmt.Sprintf("%s/accounts/%s", server.URL, owner.String()), nil, &account)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(account.Balance, qt.Equals, uint64(0))

	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/accounts/%s/credit", server.URL, owner.String()),
		&CreditRequest{Amount: 500}, &account)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(account.Balance, qt.Equals, uint64(500))

	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/accounts/%s", server.URL, owner.String()), nil, &account)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(account.Balance, qt.Equals, uint64(500))
}

func TestVerifyingKeyEndpoint(t *testing.T) {
	c := qt.New(t)
	server, _ := newTestAPI(t)

	var vk types.VerifyingKey
	status := doJSON(t, http.MethodGet, server.URL+VerifyingKeyEndpoint, nil, &vk)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(vk.NumPublicInputs(), qt.Equals, 1)
}
