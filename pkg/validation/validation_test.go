package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("dealer@example.com"))
	assert.True(t, ValidateEmail("  Dealer@Example.COM  "))
	assert.False(t, ValidateEmail("not-an-email"))
	assert.False(t, ValidateEmail("missing@tld"))
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Str0ng!Pass"))
	assert.False(t, ValidatePassword("Sh0rt!A"))
	assert.False(t, ValidatePassword("alllowercase1!"))
	assert.False(t, ValidatePassword("NoNumbers!!"))
	assert.False(t, ValidatePassword("NoSpecial123"))
}

func TestValidateUsername(t *testing.T) {
	assert.True(t, ValidateUsername("dealer_01"))
	assert.True(t, ValidateUsername("a-b-c"))
	assert.False(t, ValidateUsername("ab"))
	assert.False(t, ValidateUsername("has space"))
}

func TestValidateVehicleYear(t *testing.T) {
	assert.True(t, ValidateVehicleYear(1990))
	assert.True(t, ValidateVehicleYear(time.Now().Year()+1))
	assert.False(t, ValidateVehicleYear(1885))
	assert.False(t, ValidateVehicleYear(time.Now().Year()+2))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Volvo", SanitizeString("  Volvo  "))
	assert.Equal(t, "ab", SanitizeString("a\x00b"))
}
