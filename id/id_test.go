package id_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/tally/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"GroupID", id.NewGroupID, "grp_"},
		{"ExpenseID", id.NewExpenseID, "exp_"},
		{"SettlementID", id.NewSettlementID, "stl_"},
		{"SimplificationID", id.NewSimplificationID, "smp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseGroupID(t *testing.T) {
	g := id.NewGroupID()
	parsed, err := id.ParseGroupID(g.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != g.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), g.String())
	}

	if _, err := id.ParseGroupID(id.NewExpenseID().String()); err == nil {
		t.Error("expected error parsing an expense id as a group id")
	}
}

func TestParseEntryID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"expense", id.NewExpenseID().String(), false},
		{"settlement", id.NewSettlementID().String(), false},
		{"simplification", id.NewSimplificationID().String(), false},
		{"group rejected", id.NewGroupID().String(), true},
		{"garbage rejected", "not-an-id", true},
		{"empty rejected", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := id.ParseEntryID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseEntryID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCompareFollowsCreationOrder(t *testing.T) {
	first := id.NewSettlementID()
	time.Sleep(2 * time.Millisecond)
	second := id.NewExpenseID()

	if first.Compare(second) >= 0 {
		t.Errorf("expected %s to sort before %s", first, second)
	}
	if second.Compare(first) <= 0 {
		t.Errorf("expected %s to sort after %s", second, first)
	}
	if first.Compare(first) != 0 {
		t.Error("expected an id to compare equal to itself")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" || i.Suffix() != "" {
		t.Errorf("expected empty components, got %q %q %q", i.String(), i.Prefix(), i.Suffix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewGroupID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewSimplificationID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}

	if err := scanned2.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
