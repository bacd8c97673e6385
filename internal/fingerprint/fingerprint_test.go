package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_Deterministic(t *testing.T) {
	hi1, lo1 := Sum("A", 8.5, 47.6, []byte(`{"name":"Shop","ref":"A"}`))
	hi2, lo2 := Sum("A", 8.5, 47.6, []byte(`{"name":"Shop","ref":"A"}`))
	assert.Equal(t, hi1, hi2)
	assert.Equal(t, lo1, lo2)
}

func TestSum_KeyOrderIndependentViaJSONMarshal(t *testing.T) {
	// Property bags are maps; encoding/json sorts keys on marshal, so two
	// logically equal bags always produce the same preimage.
	a, err := json.Marshal(map[string]string{"name": "Shop", "ref": "A"})
	require.NoError(t, err)
	b, err := json.Marshal(map[string]string{"ref": "A", "name": "Shop"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	hiA, loA := Sum("A", 8.5, 47.6, a)
	hiB, loB := Sum("A", 8.5, 47.6, b)
	assert.Equal(t, hiA, hiB)
	assert.Equal(t, loA, loB)
}

func TestSum_SensitiveToEachInput(t *testing.T) {
	base := [2]int64{}
	base[0], base[1] = Sum("A", 8.5, 47.6, []byte(`{"ref":"A"}`))

	for name, other := range map[string][2]any{
		"id":    {"B", [3]any{8.5, 47.6, `{"ref":"A"}`}},
		"lng":   {"A", [3]any{8.6, 47.6, `{"ref":"A"}`}},
		"lat":   {"A", [3]any{8.5, 47.7, `{"ref":"A"}`}},
		"props": {"A", [3]any{8.5, 47.6, `{"ref":"A","x":"1"}`}},
	} {
		args := other[1].([3]any)
		hi, lo := Sum(other[0].(string), args[0].(float64), args[1].(float64), []byte(args[2].(string)))
		changed := hi != base[0] || lo != base[1]
		assert.True(t, changed, "changing %s must change the fingerprint", name)
	}
}

func TestSum_NoTrivialFieldConcatenationCollisions(t *testing.T) {
	// "ab" + "c" vs "a" + "bc" must not collide thanks to separators.
	hi1, lo1 := Sum("ab", 1, 2, []byte(`{}`))
	hi2, lo2 := Sum("a", 1, 2, []byte(`{}`))
	assert.False(t, hi1 == hi2 && lo1 == lo2)
}
