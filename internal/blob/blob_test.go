package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	ref, err := s.Put(ctx, "ementas/pdf/", "Act 12.PDF", strings.NewReader("%PDF-1.4"), AttachmentExtensions)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "ementas/pdf/"))
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	rc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Open(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, ref), "deleting twice is fine")
}

func TestPutRejectsExtension(t *testing.T) {
	s := NewMemStore()
	_, err := s.Put(context.Background(), "usuarios/documentos/", "id.exe", strings.NewReader("x"), DocumentExtensions)
	assert.ErrorIs(t, err, ErrExtensionNotAllowed)
}

func TestNamesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	a, err := s.Put(ctx, "usuarios/documentos/", "rg.png", strings.NewReader("a"), DocumentExtensions)
	require.NoError(t, err)
	b, err := s.Put(ctx, "usuarios/documentos/", "rg.png", strings.NewReader("b"), DocumentExtensions)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsEscapingRefs(t *testing.T) {
	s := NewMemStore()
	_, err := s.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}
