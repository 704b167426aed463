package cryptox_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("test-master-key-for-sealing-12345"))
	require.NoError(t, err)

	secret := []byte("JBSWY3DPEHPK3PXP")

	sealed, err := s.Seal(secret)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sealed, "v1."))
	require.NotContains(t, sealed, string(secret))

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, secret, opened)
}

func TestSealUsesFreshNonce(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("test-master-key-multiple-times-xyz"))
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)

	require.NotEqual(t, a, b, "each seal should use a new nonce")
}

func TestOpenRejects(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("test-master-key-rejects"))
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("original-data"))
	require.NoError(t, err)

	t.Run("missing prefix", func(t *testing.T) {
		_, err := s.Open(strings.TrimPrefix(sealed, "v1."))
		require.ErrorIs(t, err, cryptox.ErrSealedMalformed)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := s.Open("v1.!!!")
		require.ErrorIs(t, err, cryptox.ErrSealedMalformed)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := s.Open("v1.c2hvcnQ")
		require.ErrorIs(t, err, cryptox.ErrSealedMalformed)
	})

	t.Run("tampered", func(t *testing.T) {
		b := []byte(sealed)
		mid := len(b) / 2
		if b[mid] == 'A' {
			b[mid] = 'B'
		} else {
			b[mid] = 'A'
		}
		_, err := s.Open(string(b))
		require.Error(t, err)
	})

	t.Run("different key", func(t *testing.T) {
		other, err := cryptox.NewSealer([]byte("another-master-key"))
		require.NoError(t, err)
		_, err = other.Open(sealed)
		require.Error(t, err)
	})
}

func TestNewSealerEmptyKey(t *testing.T) {
	_, err := cryptox.NewSealer(nil)
	require.Error(t, err)
}

func TestLoadSealer(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("file-based-master-key-content-xyz\n"), 0o600))

		s, ephemeral, err := cryptox.LoadSealer(path)
		require.NoError(t, err)
		require.False(t, ephemeral)

		// Trailing newline in the file must not change the derived key.
		same, err := cryptox.NewSealer([]byte("file-based-master-key-content-xyz"))
		require.NoError(t, err)

		sealed, err := s.Seal([]byte("data"))
		require.NoError(t, err)
		opened, err := same.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, []byte("data"), opened)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cryptox.LoadSealer(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("AUTH_MASTER_KEY", "env-master-key")

		_, ephemeral, err := cryptox.LoadSealer("")
		require.NoError(t, err)
		require.False(t, ephemeral)
	})

	t.Run("ephemeral fallback", func(t *testing.T) {
		t.Setenv("AUTH_MASTER_KEY", "")

		s, ephemeral, err := cryptox.LoadSealer("")
		require.NoError(t, err)
		require.True(t, ephemeral)
		require.NotNil(t, s)
	})
}
