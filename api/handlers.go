package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zkforge/proofhost/host"
	stg "github.com/zkforge/proofhost/storage"
	"github.com/zkforge/proofhost/types"
)

// CreditRequest is the body of a POST to the account credit endpoint.
type CreditRequest struct {
	Amount uint64 `json:"amount"`
}

// AccountResponse reports an account's balance.
type AccountResponse struct {
	Address types.HexBytes `json:"address"`
	Balance uint64         `json:"balance"`
}

// submitInstruction decodes a verification instruction from the request
// body, executes it and returns the committed record. Rejected proofs are
// not HTTP errors: the record carries the outcome.
func (a *API) submitInstruction(w http.ResponseWriter, r *http.Request) {
	ins := &host.Instruction{}
	if err := json.NewDecoder(r.Body).Decode(ins); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	record, err := a.verifier.Execute(ins)
	if err != nil {
		switch {
		case errors.Is(err, host.ErrMalformedInstruction):
			ErrMalformedInstruction.WithErr(err).Write(w)
		case errors.Is(err, host.ErrDuplicateIndex):
			ErrRecordAlreadyExists.WithErr(err).Write(w)
		case errors.Is(err, host.ErrBudgetExceeded):
			ErrComputeBudgetExhausted.WithErr(err).Write(w)
		case errors.Is(err, host.ErrUnknownVerifyingKey):
			ErrVerifyingKeyNotFound.WithErr(err).Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}
	httpWriteJSON(w, record)
}

// urlAddress parses the owner address URL parameter.
func urlAddress(r *http.Request) (types.HexBytes, error) {
	return types.HexStringToHexBytes(chi.URLParam(r, AddressURLParam))
}

// record returns one committed verification record.
func (a *API) record(w http.ResponseWriter, r *http.Request) {
	owner, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, IndexURLParam), 10, 64)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	record, err := a.storage.Record(owner, index)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrResourceNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, record)
}

// listRecords returns all records of one owner, ordered by index.
func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	owner, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	records, err := a.storage.ListRecords(owner)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if records == nil {
		records = []*types.VerificationRecord{}
	}
	httpWriteJSON(w, records)
}

// account returns an account's balance. Unknown accounts hold zero.
func (a *API) account(w http.ResponseWriter, r *http.Request) {
	owner, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	balance, err := a.storage.Balance(owner)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &AccountResponse{Address: owner, Balance: balance})
}

// creditAccount adds funds to an account and returns the new balance.
func (a *API) creditAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	balance, err := a.storage.CreditAccount(owner, req.Amount)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &AccountResponse{Address: owner, Balance: balance})
}

// verifyingKey returns the active wire verifying key.
func (a *API) verifyingKey(w http.ResponseWriter, _ *http.Request) {
	vk, err := a.storage.VerifyingKey(a.keyID)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrVerifyingKeyNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, vk)
}
