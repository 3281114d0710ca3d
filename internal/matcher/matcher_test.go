package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
)

var keys = KeyFields{
	Code:    []string{"code"},
	AltCode: []string{"altCode"},
	Name:    []string{"name"},
}

func TestMatch_CodeBeatsEarlierNameMatch(t *testing.T) {
	refs := []record.Record{
		record.New("name", "WidgetX", "price", 10.0),
		record.New("code", "A1", "price", 500.0),
	}
	target := record.New("code", "A1", "name", "WidgetX")

	ref, ok := Match(target, refs, keys)
	require.True(t, ok)
	price, _ := ref.Get("price")
	assert.Equal(t, 500.0, price)
}

func TestMatch_CodeNormalization(t *testing.T) {
	refs := []record.Record{record.New("code", " ab-100 ", "price", 7.0)}
	ref, ok := Match(record.New("code", "AB-100"), refs, keys)
	require.True(t, ok)
	price, _ := ref.Get("price")
	assert.Equal(t, 7.0, price)
}

func TestMatch_AltCodeFallback(t *testing.T) {
	refs := []record.Record{
		record.New("code", "NEW-1", "altCode", "OLD-1", "price", 30.0),
		record.New("code", "OLD-2", "price", 40.0),
	}
	idx := NewIndex(refs, keys, nil)

	ref, by, ok := idx.Lookup(record.New("code", "ZZZ", "altCode", "OLD-1"))
	require.True(t, ok)
	assert.Equal(t, ByAltCode, by)
	price, _ := ref.Get("price")
	assert.Equal(t, 30.0, price)

	// target alternate against reference primary
	ref, by, ok = idx.Lookup(record.New("altCode", "OLD-2"))
	require.True(t, ok)
	assert.Equal(t, ByAltCode, by)
	price, _ = ref.Get("price")
	assert.Equal(t, 40.0, price)

	// target primary against reference alternate
	_, by, ok = idx.Lookup(record.New("code", "old-1"))
	require.True(t, ok)
	assert.Equal(t, ByAltCode, by)
}

func TestMatch_NameFallbackAndNone(t *testing.T) {
	refs := []record.Record{record.New("code", "B2", "name", "Bracket L", "price", 12.0)}
	idx := NewIndex(refs, keys, nil)

	_, by, ok := idx.Lookup(record.New("code", "nope", "name", "bracket l"))
	require.True(t, ok)
	assert.Equal(t, ByName, by)

	ref, by, ok := idx.Lookup(record.New("code", "nope"))
	assert.False(t, ok)
	assert.Equal(t, ByNone, by)
	assert.Equal(t, 0, ref.Len())

	_, _, ok = idx.Lookup(record.New())
	assert.False(t, ok, "empty target never matches")
}

func TestMatch_FirstReferenceWinsWithinStep(t *testing.T) {
	refs := []record.Record{
		record.New("code", "C3", "price", 1.0),
		record.New("code", "C3", "price", 2.0),
	}
	ref, ok := Match(record.New("code", "C3"), refs, keys)
	require.True(t, ok)
	price, _ := ref.Get("price")
	assert.Equal(t, 1.0, price)
}

func TestExtractValue(t *testing.T) {
	rec := record.New("판매단가", "1,500", "품번", "A1")
	v, ok := ExtractValue(rec, []string{"단가"}, resolver.PriceMarker)
	require.True(t, ok)
	assert.Equal(t, 1500.0, v)

	// candidate present but zero, marker column holds the real price
	rec = record.New("price", 0.0, "최종 단가(원)", "250")
	v, ok = ExtractValue(rec, []string{"price"}, resolver.PriceMarker)
	require.True(t, ok)
	assert.Equal(t, 250.0, v)

	rec = record.New("price", "-3", "memo", "x")
	_, ok = ExtractValue(rec, []string{"price"}, resolver.PriceMarker)
	assert.False(t, ok)

	_, ok = ExtractValue(rec, []string{"price"}, "")
	assert.False(t, ok)
}

func TestJoinStats(t *testing.T) {
	var s JoinStats
	s.Observe(true)
	s.Observe(false)
	s.Observe(false)
	assert.Equal(t, JoinStats{Total: 3, Matched: 1, Unmatched: 2}, s)
}

func TestItemKeys(t *testing.T) {
	k := ItemKeys(resolver.DefaultAliases())
	assert.Contains(t, k.Code, "품번")
	assert.Contains(t, k.AltCode, "고객사품번")
	assert.Contains(t, k.Name, "품명")
}

func TestMatch_PrimaryCodeNotClaimedByAltColumn(t *testing.T) {
	k := ItemKeys(resolver.DefaultAliases())
	refs := []record.Record{
		record.New("고객사품번", "A1", "단가", 1.0),
		record.New("품번", "A1", "단가", 500.0),
	}
	idx := NewIndex(refs, k, resolver.New(nil))

	ref, by, ok := idx.Lookup(record.New("품번", "A1"))
	require.True(t, ok)
	assert.Equal(t, ByCode, by)
	price, _ := ref.Get("단가")
	assert.Equal(t, 500.0, price)

	ref, by, ok = idx.Lookup(record.New("고객사품번", "a1"))
	require.True(t, ok)
	assert.Equal(t, ByAltCode, by)
	price, _ = ref.Get("단가")
	assert.Equal(t, 1.0, price)
}
