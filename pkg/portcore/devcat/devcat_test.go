package devcat

import "testing"

func TestAnyIsDistinctFromNone(t *testing.T) {
	if Any == None {
		t.Fatalf("Any must not equal None: wildcard accessors would reject a disconnected port instead of accepting anything")
	}
}

func TestReleasePinCoversEveryCategory(t *testing.T) {
	cases := []struct {
		cat  DeviceCategory
		want ReleasePin
	}{
		{None, ReleasePinNone},
		{Lump, ReleasePinNone},
		{Ev3Analog, ReleasePinP5},
		{NxtColor, ReleasePinP2},
		{NxtI2c, ReleasePinP2},
		{NxtTemperature, ReleasePinP2},
		{NxtLight, ReleasePinP2},
		{NxtTouch1Pressed, ReleasePinP2},
		{NxtAnalogOther, ReleasePinP2},
	}
	for _, c := range cases {
		if got := c.cat.ReleasePin(); got != c.want {
			t.Errorf("%v.ReleasePin() = %v, want %v", c.cat, got, c.want)
		}
	}
}

func TestIsNxtPassive(t *testing.T) {
	passive := map[DeviceCategory]bool{
		NxtColor: true,
		NxtLight: true,
	}
	for c := None; c <= NxtAnalogOther; c++ {
		if got, want := c.IsNxtPassive(), passive[c]; got != want {
			t.Errorf("%v.IsNxtPassive() = %v, want %v", c, got, want)
		}
	}
}

func TestStringNeverUnknownForDefinedCategories(t *testing.T) {
	for c := None; c <= NxtAnalogOther; c++ {
		if c.String() == "Unknown" {
			t.Errorf("category %d stringified to Unknown", c)
		}
	}
}
