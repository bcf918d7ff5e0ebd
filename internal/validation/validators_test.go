package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every validator is total: any input is classified as normalized-success
// or a FieldError with a non-empty error type.

func TestName(t *testing.T) {
	v := Name("company_name")

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{"plain", "Acme", "Acme", ""},
		{"collapses whitespace", "  Acme   Corp  ", "Acme Corp", ""},
		{"empty", "", "", ErrRequired},
		{"only spaces", "   \t ", "", ErrRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fieldErr := v(tt.raw)
			if tt.wantErr != "" {
				require.NotNil(t, fieldErr)
				assert.Equal(t, tt.wantErr, fieldErr.ErrorType)
				assert.Equal(t, tt.raw, fieldErr.RawValue)
				assert.NotEmpty(t, fieldErr.ExpectedFormat)
				return
			}
			require.Nil(t, fieldErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmail(t *testing.T) {
	v := Email("email")

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "Sales@Acme.com", "sales@acme.com", false},
		{"trims", "  ops@acme.io ", "ops@acme.io", false},
		{"no domain dot", "user@localhost", "", true},
		{"display name form", "Jane <jane@acme.com>", "", true},
		{"garbage", "not-an-email", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fieldErr := v(tt.raw)
			if tt.wantErr {
				require.NotNil(t, fieldErr)
				assert.Equal(t, ErrInvalidEmail, fieldErr.ErrorType)
				return
			}
			require.Nil(t, fieldErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhone(t *testing.T) {
	v := Phone("phone")

	t.Run("national format normalizes to E164", func(t *testing.T) {
		got, fieldErr := v("(415) 555-2671")
		require.Nil(t, fieldErr)
		assert.Equal(t, "+14155552671", got)
	})

	t.Run("already E164", func(t *testing.T) {
		got, fieldErr := v("+14155552671")
		require.Nil(t, fieldErr)
		assert.Equal(t, "+14155552671", got)
	})

	for _, raw := range []string{"", "123", "not a phone", "+1 (999) 000"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, fieldErr := v(raw)
			require.NotNil(t, fieldErr)
			assert.Equal(t, ErrInvalidPhone, fieldErr.ErrorType)
		})
	}
}

func TestState(t *testing.T) {
	v := State("state")

	t.Run("uppercases code", func(t *testing.T) {
		got, fieldErr := v("ca")
		require.Nil(t, fieldErr)
		assert.Equal(t, "CA", got)
	})

	t.Run("full name is remediation's job, not validation's", func(t *testing.T) {
		_, fieldErr := v("california")
		require.NotNil(t, fieldErr)
		assert.Equal(t, ErrInvalidState, fieldErr.ErrorType)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, fieldErr := v("ZZ")
		require.NotNil(t, fieldErr)
	})
}

func TestWebsite(t *testing.T) {
	v := Website("website")

	t.Run("lowercases host", func(t *testing.T) {
		got, fieldErr := v("https://ACME.com/About")
		require.Nil(t, fieldErr)
		assert.Equal(t, "https://acme.com/About", got)
	})

	for _, raw := range []string{"", "acme.com", "ftp://acme.com", "https://localhost"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, fieldErr := v(raw)
			require.NotNil(t, fieldErr)
			assert.Equal(t, ErrInvalidWebsite, fieldErr.ErrorType)
		})
	}
}

func TestEmployeeCount(t *testing.T) {
	v := EmployeeCount("employee_count")

	t.Run("strips thousands separators", func(t *testing.T) {
		got, fieldErr := v("1,200")
		require.Nil(t, fieldErr)
		assert.Equal(t, "1200", got)
	})

	for _, raw := range []string{"0", "-5", "1000001", "many", ""} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, fieldErr := v(raw)
			require.NotNil(t, fieldErr)
			assert.Equal(t, ErrInvalidCount, fieldErr.ErrorType)
		})
	}
}

func TestIndustry(t *testing.T) {
	v := Industry("industry")

	t.Run("normalizes spacing and case", func(t *testing.T) {
		got, fieldErr := v("Real Estate")
		require.Nil(t, fieldErr)
		assert.Equal(t, "real_estate", got)
	})

	t.Run("unknown vertical", func(t *testing.T) {
		_, fieldErr := v("alchemy")
		require.NotNil(t, fieldErr)
		assert.Equal(t, ErrUnknownIndustry, fieldErr.ErrorType)
	})
}

func TestOptional(t *testing.T) {
	v := Optional(Email("email"))

	t.Run("empty passes through", func(t *testing.T) {
		got, fieldErr := v("  ")
		require.Nil(t, fieldErr)
		assert.Empty(t, got)
	})

	t.Run("non-empty still validated", func(t *testing.T) {
		_, fieldErr := v("junk")
		require.NotNil(t, fieldErr)
	})
}

func TestValidators_TotalOnHostileInput(t *testing.T) {
	hostile := []string{
		"", " ", "\x00", strings.Repeat("a", 10000), "%%%", "\n\r\t",
		"'; DROP TABLE intake_records; --",
	}
	validators := map[string]Validator{
		"name":     Name("f"),
		"email":    Email("f"),
		"phone":    Phone("f"),
		"state":    State("f"),
		"website":  Website("f"),
		"count":    EmployeeCount("f"),
		"industry": Industry("f"),
	}
	for name, v := range validators {
		for _, raw := range hostile {
			t.Run(name, func(t *testing.T) {
				_, fieldErr := v(raw)
				if fieldErr != nil {
					assert.NotEmpty(t, fieldErr.ErrorType)
				}
			})
		}
	}
}
