package gdrive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/amiezra1/mrg/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name  string
		input error
		want  error
	}{
		{"404 not found", &googleapi.Error{Code: 404}, domain.ErrNotFound},
		{"403 permission denied", &googleapi.Error{Code: 403}, domain.ErrPermissionDenied},
		{"409 already exists", &googleapi.Error{Code: 409}, domain.ErrAlreadyExists},
		{"429 rate limited", &googleapi.Error{Code: 429}, domain.ErrRemoteUnavailable},
		{"500 server error", &googleapi.Error{Code: 500, Message: "boom"}, domain.ErrRemoteUnavailable},
		{"503 unavailable", &googleapi.Error{Code: 503}, domain.ErrRemoteUnavailable},
		{"string fallback notFound", errors.New("file notFound in drive"), domain.ErrNotFound},
		{"string fallback connection refused", errors.New("dial tcp: connection refused"), domain.ErrRemoteUnavailable},
		{"string fallback no such host", errors.New("lookup drive.example: no such host"), domain.ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.input)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, mapError(nil))
}

func TestMapErrorPassesThroughUnknownErrors(t *testing.T) {
	original := errors.New("something unexpected")
	assert.Equal(t, original, mapError(original))
}

func TestNormalizeRoot(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/", ""},
		{"  ", ""},
		{"FileManager", "/FileManager"},
		{"/FileManager", "/FileManager"},
		{"/FileManager/", "/FileManager"},
		{"Shared Documents/FileManager", "/Shared Documents/FileManager"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRoot(tt.input), "input %q", tt.input)
	}
}

func TestHiddenName(t *testing.T) {
	assert.True(t, hiddenName("_internal"))
	assert.True(t, hiddenName(".hidden"))
	assert.False(t, hiddenName("visible.txt"))
	assert.False(t, hiddenName("a_b"))
}

func TestEscapeQueryString(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQueryString("it's"))
	assert.Equal(t, `a\\b`, escapeQueryString(`a\b`))
	assert.Equal(t, "plain", escapeQueryString("plain"))
}

func TestEntryFromFile(t *testing.T) {
	s := &Storage{}

	folder := s.entryFromFile("", &drive.File{
		Id:          "abc",
		Name:        "Projects",
		MimeType:    MimeTypeFolder,
		CreatedTime: "2026-01-15T10:00:00Z",
	})
	assert.True(t, folder.IsFolder())
	assert.Equal(t, "abc", folder.ID)
	assert.True(t, folder.IsRootLevel())
	assert.Empty(t, folder.SizeLabel, "folders carry no size label")
	assert.Equal(t, 2026, folder.CreatedAt.Year())

	file := s.entryFromFile("abc", &drive.File{
		Id:       "def",
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Size:     2048,
	})
	assert.True(t, file.IsFile())
	assert.Equal(t, "abc", file.ParentID)
	assert.Equal(t, "2.0 KB", file.SizeLabel)
	assert.True(t, file.CreatedAt.IsZero(), "missing created time stays zero")
}
