package repository

import "testing"

func TestBuildLikeConditionByDialect(t *testing.T) {
	cond, n := buildLikeConditionByDialect("postgres", "order_no", " customer_phone ", "")
	if cond != "(order_no ILIKE ? OR customer_phone ILIKE ?)" || n != 2 {
		t.Fatalf("unexpected postgres condition: %s %d", cond, n)
	}
	cond, n = buildLikeConditionByDialect("sqlite", "name")
	if cond != "(name LIKE ?)" || n != 1 {
		t.Fatalf("unexpected sqlite condition: %s %d", cond, n)
	}
	if cond, n = buildLikeConditionByDialect("sqlite"); cond != "" || n != 0 {
		t.Fatalf("expected empty condition")
	}
	if got := repeatLikeArgs("%a%", 3); len(got) != 3 {
		t.Fatalf("unexpected args: %v", got)
	}
}
