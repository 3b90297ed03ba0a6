package artifact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		key      string
		wantBase string
		wantExt  string
		wantErr  error
	}{
		{"simple", "photo.jpg", "photo", "jpg", nil},
		{"namespaced", "42/ab12_photo.jpg", "42/ab12_photo", "jpg", nil},
		{"uppercase extension normalized", "42/PHOTO.JPG", "42/PHOTO", "jpg", nil},
		{"multiple dots split on last", "42/archive.2024.photo.png", "42/archive.2024.photo", "png", nil},
		{"dotted directory ignored", "v1.2/photo.png", "v1.2/photo", "png", nil},
		{"no extension", "42/photo", "", "", ErrNoExtension},
		{"trailing dot", "42/photo.", "", "", ErrNoExtension},
		{"hidden file style", "42/.gitignore", "", "", ErrNoExtension},
		{"empty key", "", "", "", ErrEmptyKey},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			key, err := ParseKey(tc.key)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBase, key.Base)
			assert.Equal(t, tc.wantExt, key.Ext)
		})
	}
}

func TestKeyValidate(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{"jpg", "jpeg", "png"} {
		assert.NoError(t, Key{Base: "a", Ext: ext}.Validate())
	}

	err := Key{Base: "a", Ext: "gif"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedExtension))
}

func TestDerivedKeysAreDeterministic(t *testing.T) {
	t.Parallel()

	key, err := ParseKey("7/c0ffee_cat.jpg")
	require.NoError(t, err)

	assert.Equal(t, "7/c0ffee_cat_overlay.jpg", key.OverlayKey())
	assert.Equal(t, "7/c0ffee_cat_results.csv", key.ResultsKey())

	// Derivation is pure: parsing the same key again yields the same outputs.
	again, err := ParseKey("7/c0ffee_cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, key.OverlayKey(), again.OverlayKey())
	assert.Equal(t, key.ResultsKey(), again.ResultsKey())

	assert.Equal(t, "7/c0ffee_cat.jpg", key.String())
}

func TestSupportedContentType(t *testing.T) {
	t.Parallel()

	assert.True(t, SupportedContentType("image/jpeg"))
	assert.True(t, SupportedContentType("image/png"))
	assert.False(t, SupportedContentType("image/gif"))
	assert.False(t, SupportedContentType("application/pdf"))
	assert.False(t, SupportedContentType(""))
}
