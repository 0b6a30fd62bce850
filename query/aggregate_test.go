package query

import (
	"testing"

	"igloo/component"
)

func TestAggregateSumMeanMaxMin(t *testing.T) {
	vals := []component.Component{component.Int(1), component.Int(2), component.Int(3)}

	sum, err := Aggregate(AggSum, component.TypeInt, vals)
	if err != nil || sum.Number != 6 {
		t.Fatalf("Sum = %v, err = %v", sum, err)
	}
	mean, err := Aggregate(AggMean, component.TypeInt, vals)
	if err != nil || mean.Number != 2 {
		t.Fatalf("Mean = %v, err = %v", mean, err)
	}
	max, err := Aggregate(AggMax, component.TypeInt, vals)
	if err != nil || max.Number != 3 {
		t.Fatalf("Max = %v, err = %v", max, err)
	}
	min, err := Aggregate(AggMin, component.TypeInt, vals)
	if err != nil || min.Number != 1 {
		t.Fatalf("Min = %v, err = %v", min, err)
	}
}

func TestAggregateAnyAll(t *testing.T) {
	vals := []component.Component{component.Bool(true), component.Bool(false)}

	any, err := Aggregate(AggAny, component.TypeBool, vals)
	if err != nil || !any.Bool {
		t.Fatalf("Any = %v, err = %v", any, err)
	}
	all, err := Aggregate(AggAll, component.TypeBool, vals)
	if err != nil || all.Bool {
		t.Fatalf("All = %v, err = %v", all, err)
	}
}

func TestAggregateUndefinedCombinationRejected(t *testing.T) {
	vals := []component.Component{component.Text("abc")}
	_, err := Aggregate(AggMean, component.TypeText, vals)
	if err == nil {
		t.Fatal("expected error for Mean of Text")
	}
	if _, ok := err.(*ErrUnsupportedAggregate); !ok {
		t.Fatalf("got %T, want *ErrUnsupportedAggregate", err)
	}
}
