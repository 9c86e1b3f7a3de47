package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

const importCSV = `number,title,type,status,summary,publication_date,published,confidential
12,Fee schedule,ordinance,in-force,Sets the 2024 fees,2024-01-10,yes,no
7,,Plenary Decision,Revoked,Internal matter,15/02/2024,true,true
,,ordinance,,,,,
3,Bad row,decree,,,,,
9,Bad date,ordinance,,,2024-31-31,,

`

func TestParserReadsRows(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(importCSV))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 5)
	assert.Len(t, parsed.Checksum, 32)

	first := parsed.Rows[0]
	require.NoError(t, first.Err)
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "12", first.Ementa.Number)
	assert.Equal(t, model.EmentaStatusInForce, first.Ementa.Status)
	assert.True(t, first.Ementa.Published)
	assert.False(t, first.Ementa.Confidential)
	assert.Equal(t, "2024-01-10", first.Ementa.PublicationDate.Time.Format("2006-01-02"))

	second := parsed.Rows[1]
	require.NoError(t, second.Err)
	assert.Equal(t, model.EmentaTypePlenaryDecision, second.Ementa.Type)
	assert.Equal(t, model.EmentaStatusRevoked, second.Ementa.Status)
	assert.True(t, second.Ementa.Confidential)
	assert.Equal(t, "2024-02-15", second.Ementa.PublicationDate.Time.Format("2006-01-02"))

	assert.NoError(t, parsed.Rows[2].Err, "row without title parses; the write path rejects it")
	assert.Error(t, parsed.Rows[3].Err)
	assert.Error(t, parsed.Rows[4].Err)
}

func TestParserNeedsTitleOrNumberColumn(t *testing.T) {
	_, err := NewParser().Parse([]byte("summary,type\nx,ordinance\n"))
	assert.Error(t, err)

	_, err = NewParser().Parse(nil)
	assert.Error(t, err)
}

func TestImporterUsesWritePath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	importer := NewImporter(NewParser(), f.ementas, zap.NewNop())

	stats, err := importer.Import(ctx, strings.NewReader(importCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 1, stats.Confidential)
	assert.Equal(t, 3, stats.Failed)

	page, err := f.ementas.List(ctx, confidentialReader(1), listing.Criteria{Query: "plenary"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	secret := page.Items[0]
	assert.Equal(t, "Plenary Decision 7", secret.Title)
	assert.Empty(t, secret.Summary, "imported confidential rows are scrubbed")

	page, err = f.ementas.List(ctx, policy.Anonymous(), listing.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	var out bytes.Buffer
	importer.PrintSummary(&out, stats)
	assert.Contains(t, out.String(), "=== Import Summary ===")
	assert.Contains(t, out.String(), "Imported:        2")
	assert.Contains(t, out.String(), "Success rate:    40.0%")
}
