package auth_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginRateLimit verifies the default login bucket (5 per minute per
// peer and identifier) rejects a password guessing burst.
func TestLoginRateLimit(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.baseURL)

	var limited bool
	for i := range 10 {
		_, err := client.Login(t.Context(), farmerIdentifier, "wrong")
		if errors.Is(err, authsdk.ErrRateLimited) {
			t.Logf("rate limited after %d attempts", i)
			limited = true
			break
		}
		assertAPIError(t, err, authsdk.ErrInvalidCredentials, "wrong password")
	}
	require.True(t, limited, "login should be rate limited")

	// Other identifiers from the same peer have their own bucket.
	_, err := client.Login(t.Context(), "other@example.com", "wrong")
	assertAPIError(t, err, authsdk.ErrInvalidCredentials, "separate bucket")
}
