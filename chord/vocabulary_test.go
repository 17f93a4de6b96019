package chord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMajMinVocabulary(t *testing.T) {
	labels := MajMin()
	require.Len(t, labels, 25)
	assert.Equal(t, "C:maj", labels[0])
	assert.Equal(t, "B:maj", labels[11])
	assert.Equal(t, "C:min", labels[12])
	assert.Equal(t, "N", labels[24])
}

func TestVocabularyIndexAndSequence(t *testing.T) {
	v, err := NewVocabulary([]string{"C:maj", "A:min", "N"})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())

	i, ok := v.Index("A:min")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = v.Index("G:maj")
	assert.False(t, ok)

	assert.Equal(t, []string{"N", "C:maj", "C:maj"}, v.Sequence([]int{2, 0, 0}))
}

func TestVocabularyRejectsBadInput(t *testing.T) {
	_, err := NewVocabulary(nil)
	assert.Error(t, err)
	_, err = NewVocabulary([]string{"C:maj", "C:maj"})
	assert.EqualError(t, err, `duplicate vocabulary entry "C:maj"`)
	_, err = NewVocabulary([]string{"C:maj", ""})
	assert.EqualError(t, err, "vocabulary entry 1 is empty")
}

func TestVocabularyLabelsIsACopy(t *testing.T) {
	v, err := NewVocabulary([]string{"C:maj", "N"})
	require.NoError(t, err)
	labels := v.Labels()
	labels[0] = "changed"
	assert.Equal(t, "C:maj", v.Label(0))
}
