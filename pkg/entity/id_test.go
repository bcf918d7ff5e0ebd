package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/pkg/pipeerrors"
)

func TestBuild_ShapeAndKind(t *testing.T) {
	at := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	for _, kind := range []Kind{KindCompany, KindPerson, KindSlot, KindSignal} {
		t.Run(string(kind), func(t *testing.T) {
			id, err := Build(kind, at, 12345, 7)
			require.NoError(t, err)

			assert.True(t, id.Valid())
			got, err := id.Kind()
			require.NoError(t, err)
			assert.Equal(t, kind, got)

			re, err := PatternFor(kind)
			require.NoError(t, err)
			assert.Regexp(t, re, id.String())
		})
	}
}

func TestBuild_SegmentWidths(t *testing.T) {
	at := time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC)
	id, err := Build(KindCompany, at, 7, 7)
	require.NoError(t, err)
	// Random and sequence are zero-padded to their fixed widths.
	assert.Equal(t, "10.01.01.02.00007.007", id.String())
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build(Kind("warehouse"), time.Now(), 1, 1)
	require.Error(t, err)
	assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBadRequest))
}

func TestParse_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"10.01.01",
		"10.01.01.02.00007",
		"10.1.01.02.00007.007",    // wrong width
		"10.01.01.02.00007.0070",  // wrong width
		"aa.01.01.02.00007.007",   // non-numeric
		"10.09.09.02.00007.007",   // unknown kind code
		"10.01.01.02.00007.007 ",  // trailing space
		"x10.01.01.02.00007.007",  // prefix garbage
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw, "")
			require.Error(t, err)
			assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBadRequest))
		})
	}
}

func TestParse_KindPinning(t *testing.T) {
	companyID, err := Build(KindCompany, time.Now(), 1, 1)
	require.NoError(t, err)

	t.Run("matching kind accepted", func(t *testing.T) {
		id, err := Parse(companyID.String(), KindCompany)
		require.NoError(t, err)
		assert.Equal(t, companyID, id)
	})

	t.Run("cross-kind reference rejected", func(t *testing.T) {
		_, err := Parse(companyID.String(), KindPerson)
		require.Error(t, err)
		assert.True(t, pipeerrors.HasCode(err, pipeerrors.CodeBadRequest))
	})
}

func TestBuild_BucketWraps(t *testing.T) {
	// 150 days after epoch start lands in bucket 50.
	at := epochStart.Add(150 * 24 * time.Hour)
	id, err := Build(KindPerson, at, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "10.01.02.50.00000.000", id.String())
}
