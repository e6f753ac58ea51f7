package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedLocales(t *testing.T) {
	require.NoError(t, Initialize())
	assert.Equal(t, []string{"en", "hi"}, GetSupportedLanguages())
	assert.True(t, IsSupported("hi"))
	assert.False(t, IsSupported("fr"))
}

func TestTranslate(t *testing.T) {
	assert.Equal(t, "Application not found", T("en", KeyErrNotFound, "Application"))
	assert.Equal(t, `Your application for "Go Intern" has been accepted.`, T("en", KeyNotifyAccepted, "Go Intern"))

	// unknown locale falls back to the default
	assert.Equal(t, T("en", KeyAuthRequired), T("fr", KeyAuthRequired))
	assert.NotEqual(t, T("en", KeyAuthRequired), T("hi", KeyAuthRequired))

	assert.Equal(t, "no.such.key", T("en", "no.such.key"))
}

func TestLocalesHaveSameKeys(t *testing.T) {
	require.NoError(t, Initialize())
	en := instance.translations["en"]
	hi := instance.translations["hi"]
	for key := range en {
		_, ok := hi[key]
		assert.True(t, ok, "hi is missing %s", key)
	}
	assert.Len(t, hi, len(en))
}
