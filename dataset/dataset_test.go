package dataset

import "testing"

func TestOptionalZeroValueIsAbsent(t *testing.T) {
	var o Optional[History]
	if o.Present() {
		t.Fatalf("expected zero Optional to be absent")
	}
	if _, ok := o.Get(); ok {
		t.Fatalf("expected Get to report absence")
	}
}

func TestOptionalSome(t *testing.T) {
	o := Some(BacktestMetrics{MAPEPercent: 4.2})
	got, ok := o.Get()
	if !ok || got.MAPEPercent != 4.2 {
		t.Fatalf("unexpected Get result: %+v %v", got, ok)
	}
}

func TestTableHasAndRenamed(t *testing.T) {
	tbl := Table{
		Columns: []string{ColSemester, ColPredicted, "Lower"},
		Rows:    [][]string{{"Fall 2025", "120", "100"}},
	}
	if !tbl.Has(ColSemester, ColPredicted) {
		t.Fatalf("expected both columns present")
	}
	if tbl.Has(ColYear) {
		t.Fatalf("did not expect %s", ColYear)
	}
	renamed := tbl.Renamed(map[string]string{ColSemester: "Admit Semester"})
	if renamed.Columns[0] != "Admit Semester" || renamed.Columns[2] != "Lower" {
		t.Fatalf("unexpected renamed columns: %v", renamed.Columns)
	}
	if tbl.Columns[0] != ColSemester {
		t.Fatalf("rename mutated the receiver: %v", tbl.Columns)
	}
}
