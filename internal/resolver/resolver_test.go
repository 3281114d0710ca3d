package resolver

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfg-report-go/internal/record"
)

func TestResolve_ExactFirstNonEmpty(t *testing.T) {
	rec := record.New("설비명", "", "설비", "IM-01", "equipment", "IM-99")

	v, ok := Resolve(rec, []string{"설비명", "설비", "equipment"})
	require.True(t, ok)
	assert.Equal(t, "IM-01", v)
}

func TestResolve_CandidatePriorityBeatsColumnOrder(t *testing.T) {
	rec := record.New("equipment", "E-late", "설비명", "E-first")

	v, ok := Resolve(rec, []string{"설비명", "equipment"})
	require.True(t, ok)
	assert.Equal(t, "E-first", v)
}

func TestResolve_NormalizedMatch(t *testing.T) {
	rec := record.New(" 생산 수량 ", "120", "Process Name", "사출")

	v, ok := Resolve(rec, []string{"생산수량"})
	require.True(t, ok)
	assert.Equal(t, "120", v)

	v, ok = Resolve(rec, []string{"processname"})
	require.True(t, ok)
	assert.Equal(t, "사출", v)
}

func TestResolve_ContainsAndContainedBy(t *testing.T) {
	rec := record.New("총생산수량(EA)", 300.0)
	v, ok := Resolve(rec, []string{"생산수량"})
	require.True(t, ok)
	assert.Equal(t, 300.0, v)

	rec = record.New("CT", 42.0)
	v, ok = Resolve(rec, []string{"표준CT"})
	require.True(t, ok, "key contained by candidate matches")
	assert.Equal(t, 42.0, v)
}

func TestResolve_FullWidthAndCase(t *testing.T) {
	rec := record.New("ＥＱＵＩＰＭＥＮＴ", "IM-07")
	v, ok := Resolve(rec, []string{"equipment"})
	require.True(t, ok)
	assert.Equal(t, "IM-07", v)
}

func TestResolve_Absent(t *testing.T) {
	rec := record.New("foo", "bar")
	v, ok := Resolve(rec, []string{"설비"})
	assert.False(t, ok)
	assert.Nil(t, v)

	_, ok = Resolve(record.Record{}, []string{"x"})
	assert.False(t, ok)

	_, ok = Resolve(rec, nil)
	assert.False(t, ok)

	_, ok = Resolve(rec, []string{"   "})
	assert.False(t, ok, "blank candidate must not match every key")
}

func TestResolve_Idempotent(t *testing.T) {
	rec := record.New("시간 가동율(%)", "87.5", "설비 가동율(%)", "91")
	cands := []string{"시간가동율", "가동율"}

	first, ok1 := Resolve(rec, cands)
	second, ok2 := Resolve(rec, cands)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestResolveDetail_FlagsAmbiguity(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	r := New(logrus.NewEntry(base))

	rec := record.New("시간가동율", "", "시간 가동율(%)", "87.5", "설비 가동율(%)", "91")
	res, ok := r.ResolveDetail(rec, []string{"가동율"})
	require.True(t, ok)
	assert.False(t, res.Exact)
	assert.Equal(t, "시간 가동율(%)", res.Key)
	assert.Equal(t, "87.5", res.Value)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, []string{"설비 가동율(%)"}, res.Alternatives)
	assert.Contains(t, buf.String(), "ambiguous field resolution")
}

func TestResolver_NumberAndString(t *testing.T) {
	r := New(nil)
	rec := record.New("생산수량", "1,200", "공정", "사출")

	n, ok := r.Number(rec, []string{"생산수량"})
	require.True(t, ok)
	assert.Equal(t, 1200.0, n)
	assert.Equal(t, "사출", r.String(rec, []string{"공정"}))
	assert.Equal(t, "", r.String(rec, []string{"설비"}))
}

func TestAliases_ExpandAndMerge(t *testing.T) {
	a := DefaultAliases()
	assert.Equal(t, []string{"custom col"}, a.Expand("custom col"))

	exp := a.Expand(string(FieldProcess))
	require.NotEmpty(t, exp)
	assert.Equal(t, "process", exp[0])
	assert.Contains(t, exp, "공정")

	merged := a.Merge(Aliases{FieldProcess: {"라인"}, FieldEquipment: nil})
	assert.Equal(t, []string{"라인"}, merged.Candidates(FieldProcess))
	assert.Equal(t, a.Candidates(FieldEquipment), merged.Candidates(FieldEquipment))
	assert.Contains(t, a.Candidates(FieldProcess), "공정", "merge must not mutate the receiver")
}

func TestResolver_KeyStringIgnoresSubstrings(t *testing.T) {
	var r Resolver
	rec := record.New("고객사품번", "C-9", " ITEM code ", "A1")

	assert.Equal(t, "C-9", r.KeyString(rec, []string{"고객사품번"}))
	assert.Equal(t, "A1", r.KeyString(rec, []string{"itemcode"}), "normalized equal")
	assert.Equal(t, "", r.KeyString(rec, []string{"품번"}), "substring of another key")
	assert.Equal(t, "", r.KeyString(record.New("code", "  "), []string{"code"}))
}
