package plaid

import (
	"log"

	"github.com/plaid/plaid-go/v41/plaid"
)

// NewPlaidClient builds the upstream API client for the configured
// environment. Development is not offered: Plaid retired it, so only
// sandbox and production are valid.
func NewPlaidClient(clientID, secret, env string) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.UserAgent = "pennywise-server"

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		log.Fatalf("Invalid Plaid environment %q, want sandbox or production", env)
	}

	return plaid.NewAPIClient(configuration)
}
