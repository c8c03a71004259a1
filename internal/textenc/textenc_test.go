package textenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestForCodePage(t *testing.T) {
	for _, cpg := range []string{"1252", "ANSI 1252", "UTF-8", "utf8", "ISO-8859-1", " windows-1252\n"} {
		enc, ok := ForCodePage(cpg)
		assert.True(t, ok, cpg)
		assert.NotNil(t, enc, cpg)
	}

	_, ok := ForCodePage("")
	assert.False(t, ok)
	_, ok = ForCodePage("klingon")
	assert.False(t, ok)
}

func TestDecode_Windows1252Fallback(t *testing.T) {
	raw, err := charmap.Windows1252.NewEncoder().String("Dernier_Dépôt")
	require.NoError(t, err)

	assert.Equal(t, "Dernier_Dépôt", Decode(raw, nil))
	assert.Equal(t, "déjà", Decode("déjà", nil))
}

func TestDecode_ExplicitEncoding(t *testing.T) {
	enc, ok := ForCodePage("1252")
	require.True(t, ok)

	raw, err := charmap.Windows1252.NewEncoder().String("Résolution")
	require.NoError(t, err)
	assert.Equal(t, "Résolution", Decode(raw, enc))
	assert.Equal(t, []byte("Résolution"), DecodeBytes([]byte(raw), nil))
}

func TestNormalize(t *testing.T) {
	decomposed := "Date_d_entre\u0301e_en_vigeur"
	assert.Equal(t, "Date_d_entr\u00e9e_en_vigeur", Normalize(" "+decomposed+" "))
}
