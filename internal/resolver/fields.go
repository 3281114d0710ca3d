package resolver

// Field is a logical column that different exports name differently.
type Field string

const (
	FieldDate              Field = "date"
	FieldProcess           Field = "process"
	FieldEquipment         Field = "equipment"
	FieldItemCode          Field = "itemCode"
	FieldAltCode           Field = "altCode"
	FieldItemName          Field = "itemName"
	FieldProduction        Field = "production"
	FieldGood              Field = "good"
	FieldDefect            Field = "defect"
	FieldTimeAvailability  Field = "timeAvailability"
	FieldOperatingMinutes  Field = "operatingMinutes"
	FieldScheduledMinutes  Field = "scheduledMinutes"
	FieldDowntimeMinutes   Field = "downtimeMinutes"
	FieldStandardCycleTime Field = "standardCycleTime"
	FieldActualCycleTime   Field = "actualCycleTime"
	FieldUnitPrice         Field = "unitPrice"
	FieldMaterial          Field = "material"
	FieldDefectQty         Field = "defectQty"
)

// PriceMarker is the last-resort substring for price columns.
const PriceMarker = "단가"

// Aliases maps each logical field to its candidate list. Order is priority.
type Aliases map[Field][]string

// DefaultAliases returns the built-in candidate lists for the known export formats.
func DefaultAliases() Aliases {
	return Aliases{
		FieldDate:              {"일자", "생산일자", "작업일자", "날짜", "date", "workDate"},
		FieldProcess:           {"공정", "공정명", "process", "processName"},
		FieldEquipment:         {"설비명", "설비", "호기", "equipment", "machine"},
		FieldItemCode:          {"품번", "품목코드", "제품코드", "itemCode", "code"},
		FieldAltCode:           {"고객사품번", "대체품번", "구품번", "altCode"},
		FieldItemName:          {"품명", "품목명", "제품명", "itemName", "productName"},
		FieldProduction:        {"생산수량", "총생산수량", "생산량", "production", "output"},
		FieldGood:              {"양품수량", "양품", "good", "goodQty"},
		FieldDefect:            {"불량수량", "불량", "defect", "defectQty"},
		FieldTimeAvailability:  {"시간가동율", "시간가동률", "timeAvailability", "availability"},
		FieldOperatingMinutes:  {"가동시간", "실가동시간", "operatingMinutes", "runTime"},
		FieldScheduledMinutes:  {"계획시간", "부하시간", "scheduledMinutes", "plannedTime"},
		FieldDowntimeMinutes:   {"비가동시간", "정지시간", "downtimeMinutes", "downtime"},
		FieldStandardCycleTime: {"표준CT", "표준C/T", "기준CT", "standardCT"},
		FieldActualCycleTime:   {"실적CT", "실제CT", "실C/T", "actualCT"},
		FieldUnitPrice:         {"단가", "판매단가", "unitPrice", "price"},
		FieldMaterial:          {"자재명", "자재", "원자재", "material"},
		FieldDefectQty:         {"불량수량", "불량", "defectQty", "qty"},
	}
}

// Candidates returns the list for f, or nil when f is unknown.
func (a Aliases) Candidates(f Field) []string {
	return a[f]
}

// Expand turns a user supplied field name into a candidate list. A logical
// field name expands to its aliases, preceded by the literal name.
func (a Aliases) Expand(name string) []string {
	list, ok := a[Field(name)]
	if !ok {
		return []string{name}
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, name)
	return append(out, list...)
}

// Merge overlays override lists on top of a copy of a.
func (a Aliases) Merge(override Aliases) Aliases {
	out := make(Aliases, len(a)+len(override))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range override {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}
