package bigfloat

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNew_NarrowRoundTrip(t *testing.T) {
	tests := []struct {
		prec uint
		x    float64
	}{
		{53, -0.5},
		{53, 0.0},
		{128, 1.75},
		{256, -1.749},
		{53, 1e10},
	}
	for _, tt := range tests {
		f := New(tt.prec, tt.x)
		if got := f.Float64(); got != tt.x {
			t.Errorf("New(%d, %v).Float64() = %v, want %v", tt.prec, tt.x, got, tt.x)
		}
	}
}

func TestNew_ClampsPrecision(t *testing.T) {
	f := New(8, 1.0)
	if f.Prec() != MinPrecision {
		t.Errorf("Prec() = %d, want %d", f.Prec(), MinPrecision)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, prec := range []uint{53, 96, 200} {
		f := New(prec, 0)
		// A value with structure in the low bits.
		g, err := Parse(prec, "-1.74992840901243076916354806336974")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		parsed, err := Parse(prec, g.String())
		if err != nil {
			t.Fatalf("Parse(String()): %v", err)
		}
		if !parsed.Equal(g) {
			t.Errorf("prec %d: String round-trip lost bits: %s != %s", prec, parsed, g)
		}
		_ = f
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse(53, "not a number"); err == nil {
		t.Error("Parse of garbage succeeded, want error")
	}
}

func TestPow2(t *testing.T) {
	tests := []struct {
		exp  float64
		want float64
	}{
		{0, 1},
		{1, 2},
		{-1, 0.5},
		{-30, math.Exp2(-30)},
		{13, 8192},
		{100, math.Exp2(100)},
	}
	for _, tt := range tests {
		got := Pow2(96, tt.exp).Float64()
		if got != tt.want {
			t.Errorf("Pow2(96, %v) = %v, want %v", tt.exp, got, tt.want)
		}
	}
}

func TestPow2_FractionalExponent(t *testing.T) {
	got := Pow2(96, -2.5).Float64()
	want := math.Exp2(-2.5)
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("Pow2(96, -2.5) = %v, want %v", got, want)
	}
}

func TestPow2_DeepZoomScale(t *testing.T) {
	// 2^-100 underflows nothing at 200 bits; the value must stay exact.
	f := Pow2(200, -100)
	back := f.Mul(Pow2(200, 100))
	if back.Float64() != 1.0 {
		t.Errorf("2^-100 * 2^100 = %v, want 1", back.Float64())
	}
}

func TestArithmetic(t *testing.T) {
	a := New(96, 1.5)
	b := New(96, 0.25)

	if got := a.Add(b).Float64(); got != 1.75 {
		t.Errorf("Add = %v, want 1.75", got)
	}
	if got := a.Sub(b).Float64(); got != 1.25 {
		t.Errorf("Sub = %v, want 1.25", got)
	}
	if got := a.Mul(b).Float64(); got != 0.375 {
		t.Errorf("Mul = %v, want 0.375", got)
	}
	if got := a.Quo(b).Float64(); got != 6 {
		t.Errorf("Quo = %v, want 6", got)
	}
	if got := a.Neg().Float64(); got != -1.5 {
		t.Errorf("Neg = %v, want -1.5", got)
	}
}

func TestArithmetic_Immutable(t *testing.T) {
	a := New(53, 2)
	b := New(53, 3)
	_ = a.Add(b)
	if a.Float64() != 2 || b.Float64() != 3 {
		t.Errorf("operands mutated: a=%v b=%v", a.Float64(), b.Float64())
	}
}

func TestZeroValue(t *testing.T) {
	var f Float
	if f.Float64() != 0 {
		t.Errorf("zero value Float64() = %v, want 0", f.Float64())
	}
	if f.Prec() != MinPrecision {
		t.Errorf("zero value Prec() = %d, want %d", f.Prec(), MinPrecision)
	}
	if got := f.Add(New(53, 1)).Float64(); got != 1 {
		t.Errorf("zero value Add = %v, want 1", got)
	}
}

func TestEqual_PrecisionSensitive(t *testing.T) {
	a := New(53, 0.5)
	b := New(54, 0.5)
	if a.Equal(b) {
		t.Error("values at different precisions compare Equal")
	}
	if a.Cmp(b) != 0 {
		t.Error("Cmp should ignore precision")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	for _, prec := range []uint{53, 150} {
		orig, err := Parse(prec, "-0.74992840901243076916354806336974")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		data, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var back Float
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if !back.Equal(orig) {
			t.Errorf("prec %d: JSON round-trip changed value: %s -> %s", prec, orig, back)
		}
	}
}

func TestJSON_Shape(t *testing.T) {
	data, err := json.Marshal(New(53, -0.5))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if _, ok := m["value"].(string); !ok {
		t.Errorf("missing string field %q in %s", "value", data)
	}
	if p, ok := m["precision"].(float64); !ok || p != 53 {
		t.Errorf("precision = %v, want 53", m["precision"])
	}
}
