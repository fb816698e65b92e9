package issue

import "testing"

func TestCategoryPrecedence_OrdersRepairs(t *testing.T) {
	t.Parallel()
	order := []Category{
		CategorySyntaxError,
		CategoryRuntimeError,
		CategorySecurity,
		CategoryConfiguration,
		CategoryPerformance,
		CategoryStyle,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Precedence() >= order[i].Precedence() {
			t.Errorf("%s (%d) should precede %s (%d)",
				order[i-1], order[i-1].Precedence(), order[i], order[i].Precedence())
		}
	}
	if CategoryRuntimeError.Precedence() != CategoryDependency.Precedence() {
		t.Error("RUNTIME_ERROR and DEPENDENCY should share a rank")
	}
}

func TestSeverityBump(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want Severity
	}{
		{SeverityLow, SeverityMedium},
		{SeverityMedium, SeverityHigh},
		{SeverityHigh, SeverityCritical},
		{SeverityCritical, SeverityCritical},
	}
	for _, tt := range tests {
		if got := tt.in.Bump(); got != tt.want {
			t.Errorf("Bump(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewID_Deterministic(t *testing.T) {
	t.Parallel()
	a := NewID("app.py", 3, CategoryPerformance, "debug print")
	b := NewID("app.py", 3, CategoryPerformance, "  debug print  ")
	if a != b {
		t.Errorf("IDs differ for trimmed descriptions: %s vs %s", a, b)
	}
	if c := NewID("app.py", 4, CategoryPerformance, "debug print"); c == a {
		t.Error("ID should change with the line")
	}
}

func TestResolved_SetDifferenceByKey(t *testing.T) {
	t.Parallel()
	before := []Issue{
		{File: "a.py", Line: 1, Category: CategoryDependency, Description: "missing import"},
		{File: "a.py", Line: 3, Category: CategoryPerformance, Description: "print"},
	}
	after := []Issue{
		// Same defect, drifted description.
		{File: "a.py", Line: 3, Category: CategoryPerformance, Description: "debug print statement"},
	}

	resolved := Resolved(before, after)
	if len(resolved) != 1 {
		t.Fatalf("resolved = %+v, want exactly the import issue", resolved)
	}
	if resolved[0].Category != CategoryDependency {
		t.Errorf("resolved = %+v, want the DEPENDENCY issue", resolved[0])
	}
}

func TestCountByFile(t *testing.T) {
	t.Parallel()
	counts := CountByFile([]Issue{
		{File: "a.py"}, {File: "a.py"}, {File: "b.py"},
	})
	if counts["a.py"] != 2 || counts["b.py"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
