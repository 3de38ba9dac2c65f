package detector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/identifiers"
	"github.com/dativo-io/lethe/internal/testutil"
)

func fixedExtractor(t *testing.T) *identifiers.Extractor {
	t.Helper()
	e, err := identifiers.NewExtractor(identifiers.WithClock(func() time.Time {
		return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return e
}

func TestNew_NilPersonDetector(t *testing.T) {
	_, err := detector.New(nil)
	assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
}

func TestDetectAll(t *testing.T) {
	stub := &testutil.StubPersonDetector{Names: []string{"Maria Silva", "João"}}
	d, err := detector.New(stub, detector.WithExtractor(fixedExtractor(t)))
	require.NoError(t, err)

	text := "Maria Silva, CPF 529.982.247-25, RG 12.345.678-X, nascida em 15/03/1990. " +
		"João assinou. Maria Silva confirmou."

	res, err := d.DetectAll(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, res.Persons, 2, "duplicate names are collapsed")
	assert.Equal(t, "Maria Silva", res.Persons[0].Text)
	assert.Equal(t, 0, res.Persons[0].Start)
	assert.Equal(t, detector.KindPerson, res.Persons[0].Kind)
	assert.Equal(t, "João", res.Persons[1].Text)

	require.Len(t, res.TaxIDs, 1)
	assert.Equal(t, "529.982.247-25", res.TaxIDs[0].Text)
	assert.Equal(t, detector.KindTaxID, res.TaxIDs[0].Kind)

	require.NotEmpty(t, res.DocIDs)
	assert.Equal(t, "12.345.678-X", res.DocIDs[0].Text)
	assert.Equal(t, detector.KindDocID, res.DocIDs[0].Kind)

	require.Len(t, res.Dates, 1)
	assert.Equal(t, "15/03/1990", res.Dates[0].Text)
	require.NotNil(t, res.Dates[0].Date)
	assert.Equal(t, 1990, res.Dates[0].Date.Year())

	assert.Equal(t, len(res.Persons)+len(res.TaxIDs)+len(res.DocIDs)+len(res.Dates), res.Count())
}

func TestDetectAll_TrimsAndDropsBlankNames(t *testing.T) {
	stub := &testutil.StubPersonDetector{Names: []string{" Ana ", "   "}}
	d, err := detector.New(stub)
	require.NoError(t, err)

	res, err := d.DetectAll(context.Background(), "Conversa com Ana e  Ana  depois.    ")
	require.NoError(t, err)
	require.Len(t, res.Persons, 1)
	assert.Equal(t, "Ana", res.Persons[0].Text)
}

func TestDetectAll_UnavailableBeforeDetection(t *testing.T) {
	stub := &testutil.StubPersonDetector{
		Names:    []string{"Maria"},
		ReadyErr: errors.New("model pt_core_news_lg not installed"),
	}
	d, err := detector.New(stub)
	require.NoError(t, err)

	res, err := d.DetectAll(context.Background(), "Maria, CPF 529.982.247-25")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
	assert.Contains(t, err.Error(), "pt_core_news_lg")
	assert.Equal(t, 0, stub.Calls, "no detection may run when the capability is unavailable")
}

func TestDetectAll_PersonFailureAborts(t *testing.T) {
	stub := &testutil.StubPersonDetector{Err: errors.New("boom")}
	d, err := detector.New(stub)
	require.NoError(t, err)

	res, err := d.DetectAll(context.Background(), "CPF 529.982.247-25")
	assert.Nil(t, res)
	assert.Error(t, err)
}

func TestDetectAll_EmptyCategories(t *testing.T) {
	d := testutil.NewDetector()
	res, err := d.DetectAll(context.Background(), "nada sensível aqui")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())
	assert.NotNil(t, res.Persons)
	assert.NotNil(t, res.TaxIDs)
}
