package value_test

import (
	"testing"
	"time"

	"github.com/flowcore-run/flowcore/pkg/value"
)

func TestAsBool(t *testing.T) {
	cases := []struct {
		raw     interface{}
		want    bool
		wantErr bool
	}{
		{true, true, false},
		{false, false, false},
		{float64(0), false, false},
		{float64(3), true, false},
		{"yes", true, false},
		{"off", false, false},
		{"banana", false, true},
	}
	for _, c := range cases {
		v := value.New(value.Boolean, value.Normal, c.raw)
		got, err := v.AsBool()
		if c.wantErr {
			if err == nil {
				t.Errorf("AsBool(%v): expected error", c.raw)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("AsBool(%v) = %v, %v; want %v, nil", c.raw, got, err, c.want)
		}
	}
}

func TestAsIntFloorsFloats(t *testing.T) {
	v := value.New(value.Float, value.Normal, 3.9)
	got, err := v.AsInt()
	if err != nil || got != 3 {
		t.Fatalf("AsInt(3.9) = %v, %v; want 3, nil", got, err)
	}
}

func TestAsTimeEpochDisambiguation(t *testing.T) {
	seconds := value.New(value.Date, value.Normal, float64(1_000_000_000))
	got, err := seconds.AsTime()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Unix(1_000_000_000, 0).UTC()
	if !got.Equal(want) {
		t.Errorf("seconds interpretation: got %v want %v", got, want)
	}

	millis := value.New(value.Date, value.Normal, float64(1_700_000_000_000))
	got, err = millis.AsTime()
	if err != nil {
		t.Fatal(err)
	}
	want = time.Unix(1_700_000_000, 0).UTC()
	if !got.Equal(want) {
		t.Errorf("millis interpretation: got %v want %v", got, want)
	}
}

func TestAsByteOutOfRange(t *testing.T) {
	v := value.New(value.Byte, value.Normal, float64(300))
	if _, err := v.AsByte(); err == nil {
		t.Fatal("expected TypeError for out-of-range byte")
	}
}

func TestAsArrayParsesJSONString(t *testing.T) {
	v := value.New(value.String, value.Array, `[1,2,3]`)
	arr, err := v.AsArray()
	if err != nil {
		t.Fatal(err)
	}
	if len(arr) != 3 {
		t.Fatalf("got %d elements, want 3", len(arr))
	}
}

func TestFromDefaultBytesRoundTrip(t *testing.T) {
	b, err := value.ToDefaultBytes(value.New(value.String, value.Normal, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := value.FromDefaultBytes(value.String, value.Normal, b)
	if err != nil {
		t.Fatal(err)
	}
	if v.RawValue != "hello" {
		t.Errorf("got %v, want hello", v.RawValue)
	}
}

func TestFromDefaultBytesEmpty(t *testing.T) {
	v, err := value.FromDefaultBytes(value.String, value.Normal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNull() {
		t.Errorf("expected null value for empty default bytes")
	}
}
