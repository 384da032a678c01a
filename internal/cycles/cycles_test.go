package cycles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseString(t *testing.T) {
	assert.Equal(t, "cancel", Cancel.String())
	assert.Equal(t, "panic", Panic.String())
	assert.Equal(t, "unknown", Response(9).String())
}

func TestCycle(t *testing.T) {
	c := Cycle{Path: []string{"A", "B", "A"}}
	assert.Equal(t, "A", c.Root())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "A -> B -> A", c.String())

	assert.Equal(t, "", Cycle{}.Root())
	assert.Equal(t, 0, Cycle{}.Len())
}

func TestParsePolicy(t *testing.T) {
	c := Cycle{Path: []string{"A", "A"}}

	testCases := []struct {
		name     string
		expected Response
	}{
		{"panic", Panic},
		{"Cancel", Cancel},
		{"", DefaultResponse()},
		{"default", DefaultResponse()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			policy, err := ParsePolicy(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, policy(c))
		})
	}

	_, err := ParsePolicy("ignore")
	assert.Error(t, err)
}

func TestDefaultPolicyMatchesBuild(t *testing.T) {
	assert.Equal(t, defaultResponse, Default()(Cycle{Path: []string{"A", "A"}}))
}
