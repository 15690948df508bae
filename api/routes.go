package api

// Route constants for the API endpoints.
const (
	// Health endpoint
	PingEndpoint = "/ping" // GET: Health check

	// Verification endpoints
	VerifyEndpoint = "/verify" // POST: Execute a verification instruction

	// Record endpoints
	AddressURLParam = "address"                                                    // URL parameter for an owner address
	IndexURLParam   = "index"                                                      // URL parameter for a record index
	RecordsEndpoint = "/records/{" + AddressURLParam + "}"                         // GET: List an owner's records
	RecordEndpoint  = "/records/{" + AddressURLParam + "}/{" + IndexURLParam + "}" // GET: Get one record

	// Account endpoints
	AccountEndpoint       = "/accounts/{" + AddressURLParam + "}" // GET: Get account balance
	AccountCreditEndpoint = AccountEndpoint + "/credit"           // POST: Credit an account

	// Verifying key endpoint
	VerifyingKeyEndpoint = "/verifyingkey" // GET: The active verifying key
)
