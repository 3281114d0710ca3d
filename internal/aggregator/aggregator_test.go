package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfg-report-go/internal/logger"
	"mfg-report-go/internal/matcher"
	"mfg-report-go/internal/record"
)

func sampleInput() Input {
	return Input{
		Production: []record.Record{
			record.New("공정", "사출", "설비명", "IM-01", "품번", "A1", "생산수량", "200", "양품수량", "185"),
			record.New("공정", "사출", "설비명", "IM-01", "품번", "X9", "생산수량", 100.0, "불량수량", 5.0),
			record.New("공정", "도장", "설비명", "PT-01", "품번", "B2", "생산수량", 50.0),
		},
		Availability: []record.Record{
			record.New("공정", "사출", "설비명", "IM-01", "가동시간", 360.0, "계획시간", 480.0),
			record.New("설비명", "PT-01", "시간가동율", "88%"),
		},
		PriceList: []record.Record{
			record.New("품번", "A1", "판매단가", "1,000"),
			record.New("품번", "B2", "단가", 300.0),
		},
		CycleTime: []record.Record{
			record.New("공정", "사출", "설비명", "IM-01", "표준CT", 30.0, "실적CT", 33.0),
			record.New("공정", "사출", "설비명", "IM-01", "표준CT", 30.0, "실적CT", 39.0),
			record.New("공정", "사출", "설비명", "IM-01", "표준CT", 30.0, "실적CT", 0.0),
		},
		MaterialDefect: []record.Record{
			record.New("자재명", "PP수지", "불량수량", 7.0),
			record.New("자재명", "PP수지", "불량수량", 3.0),
			record.New("품명", "Cover", "불량수량", 4.0),
		},
	}
}

func TestAggregate_GroupsAndRollup(t *testing.T) {
	ins := New(nil, nil, logger.Discard().Entry).Aggregate(sampleInput())

	require.Len(t, ins.Groups, 2)
	paint, mold := ins.Groups[0], ins.Groups[1]
	assert.Equal(t, "도장", paint.Process)
	assert.Equal(t, "사출", mold.Process)

	assert.Equal(t, 300.0, mold.Production)
	assert.Equal(t, 280.0, mold.Good)
	assert.Equal(t, 20.0, mold.Defect)
	assert.Equal(t, 15000.0, mold.DefectAmount)
	assert.InDelta(t, 75.0, mold.TimeAvailability, 1e-9)
	assert.InDelta(t, 70.0, mold.OEE, 1e-9)

	assert.InDelta(t, 88.0, paint.TimeAvailability, 1e-9, "equipment-only availability fallback")
	assert.InDelta(t, 100.0, paint.QualityRate, 1e-9)

	assert.Equal(t, 350.0, ins.Overall.Production)
	assert.InDelta(t, (75*300+88*50)/350.0, ins.Overall.TimeAvailability, 1e-9)
	assert.InDelta(t, 330/350.0*100, ins.Overall.QualityRate, 1e-9)
}

func TestAggregate_UnmatchedDefectCountsButAddsZero(t *testing.T) {
	ins := New(nil, nil, nil).Aggregate(sampleInput())

	assert.Equal(t, matcher.JoinStats{Total: 2, Matched: 1, Unmatched: 1}, ins.PriceJoin)
	assert.Equal(t, 20.0, ins.TotalDefect, "unmatched defects stay in the defect total")
	assert.Equal(t, 15000.0, ins.Overall.DefectAmount)
}

func TestAggregate_AllUnmatched(t *testing.T) {
	in := Input{Production: []record.Record{
		record.New("품번", "NOPE", "생산수량", 10.0, "불량수량", 2.0),
	}}
	ins := New(nil, nil, nil).Aggregate(in)

	assert.Equal(t, 1, ins.PriceJoin.Unmatched)
	assert.Zero(t, ins.Overall.DefectAmount)
	assert.Equal(t, 2.0, ins.TotalDefect)
	require.Len(t, ins.Groups, 1)
	assert.Equal(t, "(empty)", ins.Groups[0].Process)
	assert.Equal(t, 100.0, ins.Groups[0].TimeAvailability)
	assert.False(t, ins.Groups[0].AvailabilityMeasured)
}

func TestAggregate_CycleTime(t *testing.T) {
	ins := New(nil, nil, nil).Aggregate(sampleInput())

	require.Len(t, ins.CycleTime, 1)
	ct := ins.CycleTime[0]
	assert.Equal(t, 2, ct.Samples, "zero actual CT rows are skipped")
	assert.InDelta(t, 30.0, ct.StandardCT, 1e-9)
	assert.InDelta(t, 36.0, ct.ActualCT, 1e-9)
	assert.InDelta(t, 20.0, ct.ExcessPct, 1e-9)
	assert.InDelta(t, 30/36.0*100, ct.EfficiencyPct, 1e-9)
}

func TestAggregate_MaterialDefects(t *testing.T) {
	ins := New(nil, nil, nil).Aggregate(sampleInput())
	assert.Equal(t, []MaterialDefect{{Material: "PP수지", Qty: 10}, {Material: "Cover", Qty: 4}}, ins.MaterialDefects)
}

func TestAggregate_Empty(t *testing.T) {
	ins := New(nil, nil, nil).Aggregate(Input{})
	assert.Empty(t, ins.Groups)
	assert.Equal(t, 100.0, ins.Overall.TimeAvailability)
	assert.Zero(t, ins.Overall.OEE)
	assert.Empty(t, ins.CycleTime)
}

func TestAggregate_MinutesWithoutOperatingTimeDefaultTo100(t *testing.T) {
	for name, avail := range map[string]record.Record{
		"scheduled and downtime": record.New("설비명", "IM-01", "계획시간", 480.0, "정지시간", 60.0),
		"scheduled only":         record.New("설비명", "IM-01", "계획시간", 480.0),
	} {
		t.Run(name, func(t *testing.T) {
			in := Input{
				Production:   []record.Record{record.New("설비명", "IM-01", "생산수량", 200.0, "양품수량", 185.0)},
				Availability: []record.Record{avail},
			}
			ins := New(nil, nil, nil).Aggregate(in)

			require.Len(t, ins.Groups, 1)
			g := ins.Groups[0]
			assert.False(t, g.AvailabilityMeasured)
			assert.Equal(t, 100.0, g.TimeAvailability)
			assert.InDelta(t, 92.5, g.OEE, 1e-9)
		})
	}
}
