package gcsuploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserObjectName(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 5, 0, time.UTC)

	assert.Equal(t, "users/u1/20240615T100005_enel.pdf", UserObjectName("u1", "enel.pdf", now))
	assert.Equal(t, "users/u1/20240615T100005_bolletta.pdf", UserObjectName("u1", `C:\tmp\bolletta.pdf`, now))
	assert.Equal(t, "users/u1/20240615T100005_document.pdf", UserObjectName("u1", "", now))
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://bills/users/u1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "bills", bucket)
	assert.Equal(t, "users/u1/a.pdf", object)

	for _, uri := range []string{"s3://bills/a.pdf", "gs://bills", "gs://bills/", "gs:///a.pdf"} {
		_, _, err := ParseGCSURI(uri)
		assert.Error(t, err, uri)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bills/users/u1/20240615T100000_enel.pdf":     "enel.pdf",
		"gs://bills/users/u1/20240615T100000_gas_marzo.pdf": "gas_marzo.pdf",
		"gs://bills/folder/my_file.pdf":                     "my_file.pdf",
		"gs://bills":                                        "bills",
	}
	for uri, want := range tests {
		t.Run(uri, func(t *testing.T) {
			assert.Equal(t, want, ExtractFilenameFromGCSURI(uri))
		})
	}
}

func TestGCSURI(t *testing.T) {
	assert.Equal(t, "gs://b/users/u/x.pdf", GCSURI("b", "users/u/x.pdf"))
}
