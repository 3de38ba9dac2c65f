package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/testutil"
	"github.com/dativo-io/lethe/internal/vault"
)

const sampleText = "A paciente Maria Silva, CPF 529.982.247-25, RG 12.345.678-X, " +
	"nascida em 15/03/1990, foi atendida. Maria Silva retorna em breve."

func seed(v int64) *int64 { return &v }

func TestAnonymize(t *testing.T) {
	e := New(testutil.NewDetector("Maria Silva"))
	res, err := e.Anonymize(context.Background(), sampleText, "pw", seed(42))
	require.NoError(t, err)

	assert.NotContains(t, res.Text, "Maria Silva")
	assert.NotContains(t, res.Text, "529.982.247-25")
	assert.NotContains(t, res.Text, "12.345.678-X")
	assert.NotContains(t, res.Text, "15/03/1990")
	assert.Contains(t, res.Text, "A paciente ")
	assert.Nil(t, res.Mapping, "mapping is not disclosed by default")

	assert.Equal(t, 1, res.Summary.Persons)
	assert.Equal(t, 1, res.Summary.TaxIDs)
	assert.GreaterOrEqual(t, res.Summary.DocIDs, 1)
	assert.Equal(t, 1, res.Summary.Dates)

	m, err := vault.Decrypt(context.Background(), res.Encrypted, "pw")
	require.NoError(t, err)
	assert.Contains(t, m.Persons, "Maria Silva")
}

func TestAnonymize_SeedIsReproducible(t *testing.T) {
	e := New(testutil.NewDetector("Maria Silva"))
	a, err := e.Anonymize(context.Background(), sampleText, "pw", seed(7))
	require.NoError(t, err)
	b, err := e.Anonymize(context.Background(), sampleText, "other", seed(7))
	require.NoError(t, err)
	assert.Equal(t, a.Text, b.Text)
	assert.NotEqual(t, a.Encrypted, b.Encrypted)
}

func TestAnonymize_Disclosure(t *testing.T) {
	e := New(testutil.NewDetector("Maria Silva"))
	res, err := e.Anonymize(context.Background(), sampleText, "pw", nil, WithMappingDisclosure())
	require.NoError(t, err)
	require.NotNil(t, res.Mapping)
	assert.Equal(t, res.Summary, res.Mapping.Summary())
}

func TestAnonymize_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		e := New(testutil.NewDetector())
		for _, text := range []string{"", "   \n\t"} {
			res, err := e.Anonymize(ctx, text, "pw", nil)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrEmptyInput)
		}
	})

	t.Run("empty password", func(t *testing.T) {
		e := New(testutil.NewDetector())
		_, err := e.Anonymize(ctx, sampleText, "", nil)
		assert.ErrorIs(t, err, vault.ErrEmptyPassword)
	})

	t.Run("detector unavailable", func(t *testing.T) {
		stub := &testutil.StubPersonDetector{ReadyErr: errors.New("sidecar down")}
		d, err := detector.New(stub)
		require.NoError(t, err)

		res, err := New(d).Anonymize(ctx, sampleText, "pw", nil)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
	})
}

func TestReverse(t *testing.T) {
	ctx := context.Background()
	e := New(testutil.NewDetector("Maria Silva"))
	res, err := e.Anonymize(ctx, sampleText, "pw", seed(1))
	require.NoError(t, err)

	restored, err := e.Reverse(ctx, res.Text, res.Encrypted, "pw")
	require.NoError(t, err)
	assert.Equal(t, sampleText, restored)

	_, err = e.Reverse(ctx, res.Text, res.Encrypted, "wrong")
	assert.ErrorIs(t, err, vault.ErrAuthentication)

	_, err = e.Reverse(ctx, "", res.Encrypted, "pw")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestReverse_NoEntities(t *testing.T) {
	ctx := context.Background()
	e := New(testutil.NewDetector())
	text := "Nenhum dado pessoal neste texto."

	res, err := e.Anonymize(ctx, text, "pw", nil)
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)
	assert.Equal(t, 0, res.Summary.Total())

	restored, err := e.Reverse(ctx, res.Text, res.Encrypted, "pw")
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}
