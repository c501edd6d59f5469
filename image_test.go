package corgi

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestImage_JSONRoundTrip(t *testing.T) {
	orig := DefaultImage()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	back, err := ParseImage(data)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}
	if !back.Equal(&orig) {
		t.Errorf("round-trip changed the image:\n%s", data)
	}
}

func TestImage_JSONRoundTrip_DeepZoom(t *testing.T) {
	lm, ok := FindLandmark("needle-minibrot")
	if !ok {
		t.Fatal("missing needle-minibrot landmark")
	}
	orig, err := lm.Image(512, 512)
	if err != nil {
		t.Fatalf("landmark image: %v", err)
	}
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	back, err := ParseImage(data)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}
	if !back.Equal(&orig) {
		t.Error("deep-zoom round-trip lost precision")
	}
	if back.Viewport.Center.X.Prec() != Precision(lm.Zoom) {
		t.Errorf("center precision = %d, want %d", back.Viewport.Center.X.Prec(), Precision(lm.Zoom))
	}
}

func TestImage_JSONShape(t *testing.T) {
	img := DefaultImage()
	data, err := img.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	for _, field := range []string{
		`"viewport"`, `"max_iter"`, `"probe_location"`,
		`"external_coloring"`, `"internal_coloring"`, `"value"`, `"precision"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialised image missing %s:\n%s", field, data)
		}
	}
}

func TestParseImage_DefaultsProbeToCenter(t *testing.T) {
	img := DefaultImage()
	data, err := img.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	delete(doc, "probe_location")
	data, err = json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := ParseImage(data)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}
	if !back.ProbeLocation.Equal(back.Viewport.Center) {
		t.Error("missing probe location did not default to the view center")
	}
}

func TestParseImage_RejectsInvalid(t *testing.T) {
	if _, err := ParseImage([]byte(`{"max_iter": 0}`)); err == nil {
		t.Error("ParseImage accepted an invalid request")
	}
	if _, err := ParseImage([]byte(`not json`)); err == nil {
		t.Error("ParseImage accepted garbage")
	}
}

func TestImage_Validate(t *testing.T) {
	img := DefaultImage()
	if err := img.Validate(); err != nil {
		t.Errorf("default image invalid: %v", err)
	}
	img.MaxIter = 0
	if err := img.Validate(); err == nil {
		t.Error("zero max_iter accepted")
	}
}

func TestFindLandmark(t *testing.T) {
	for _, l := range Landmarks {
		img, err := l.Image(128, 128)
		if err != nil {
			t.Errorf("landmark %s does not build: %v", l.Name, err)
			continue
		}
		if got, want := img.Viewport.Center.X.Prec(), Precision(l.Zoom); got != want {
			t.Errorf("landmark %s center precision = %d, want %d", l.Name, got, want)
		}
	}
	if _, ok := FindLandmark("nowhere"); ok {
		t.Error("found a landmark that does not exist")
	}
}
