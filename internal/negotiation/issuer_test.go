package negotiation

import (
	"strings"
	"testing"
	"time"

	"negotiation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintTokenShape(t *testing.T) {
	issuer := NewIssuer(newMemStore(), 7*24*time.Hour)
	n := testNegotiation()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	code, err := issuer.Mint(n, 800, now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code.Code, "NEGO-"))
	// 16 random bytes in unpadded base32 is 26 characters.
	assert.Len(t, strings.TrimPrefix(code.Code, "NEGO-"), 26)
	assert.Equal(t, int64(800), code.FinalPrice)
	assert.Equal(t, models.CodeStatusIssued, code.Status)
	assert.Equal(t, now.Add(7*24*time.Hour), code.ExpiresAt)
	assert.Equal(t, n.BuyerID, code.BuyerID)
	assert.Equal(t, n.ProjectID, code.ProjectID)
}

func TestMintTokensAreUnique(t *testing.T) {
	issuer := NewIssuer(newMemStore(), time.Hour)
	n := testNegotiation()
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := issuer.Mint(n, 800, now)
		require.NoError(t, err)
		assert.False(t, seen[code.Code], "token collision")
		seen[code.Code] = true
	}
}
