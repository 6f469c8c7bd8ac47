package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE="

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	ok, err := VerifyPassword("secret1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("secret2", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ per hash")
}

func TestVerifyPassword_BadHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=18$m=65536,t=3,p=2$AAAA$AAAA"} {
		_, err := VerifyPassword("x", h)
		assert.ErrorIs(t, err, ErrInvalidHash, h)
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	require.NotNil(t, c)

	enc, err := c.Encrypt("take with food")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, encryptedPrefix))
	assert.NotContains(t, enc, "food")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "take with food", dec)

	// Values stored before encryption was enabled read back unchanged.
	plain, err := c.Decrypt("legacy note")
	require.NoError(t, err)
	assert.Equal(t, "legacy note", plain)

	empty, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCipher_NilPassesThrough(t *testing.T) {
	c, err := NewCipher("")
	require.NoError(t, err)
	assert.Nil(t, c)

	out, err := c.Encrypt("note")
	require.NoError(t, err)
	assert.Equal(t, "note", out)

	out, err = c.Decrypt("note")
	require.NoError(t, err)
	assert.Equal(t, "note", out)
}

func TestNewCipher_BadKeys(t *testing.T) {
	_, err := NewCipher("!!!")
	assert.ErrorIs(t, err, ErrKeyNotBase64)

	_, err = NewCipher("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrKeyLength)
}

func TestCipher_TamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt(encryptedPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrCiphertextShort)

	enc, err := c.Encrypt("note")
	require.NoError(t, err)
	tampered := enc[:len(enc)-2] + "AA"
	if tampered == enc {
		tampered = enc[:len(enc)-2] + "BB"
	}
	_, err = c.Decrypt(tampered)
	assert.Error(t, err)
}

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name                 string
		email, pass, display string
		wantKey              string
	}{
		{"ok", "ana@example.com", "secret1", "Ana", ""},
		{"missing name", "ana@example.com", "secret1", " ", "error.fill_all_fields"},
		{"missing email", "", "secret1", "Ana", "error.fill_all_fields"},
		{"short password", "ana@example.com", "12345", "Ana", "error.password_too_short"},
		{"bad email", "ana-at-example", "secret1", "Ana", "error.email_invalid"},
		{"display name with email", "Ana <ana@example.com>", "secret1", "Ana", "error.email_invalid"},
		{"long name", "ana@example.com", "secret1", strings.Repeat("a", 101), "error.display_name_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignup(tt.email, tt.pass, tt.display)
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantKey, ve.Key)
		})
	}
}

func TestValidateTimeOfDay(t *testing.T) {
	for _, ok := range []string{"00:00", "08:00", "23:59"} {
		assert.NoError(t, ValidateTimeOfDay(ok), ok)
	}
	for _, bad := range []string{"", "8:00", "24:00", "12:60", "noon"} {
		assert.Error(t, ValidateTimeOfDay(bad), bad)
	}
}

func TestRequired(t *testing.T) {
	err := Required(map[string]string{"name": "Aspirin", "dosage": ""}, "name", "dosage")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "dosage", ve.Field)

	assert.NoError(t, Required(map[string]string{"name": "Aspirin"}, "name"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}
