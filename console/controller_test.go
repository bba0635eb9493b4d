package console

import "testing"

func TestControllerReadShiftsOutButtonState(t *testing.T) {
	c := newController(player1Keys)
	c.buttons = 0x09 // A (0x01) + Start (0x08)

	want := []uint8{1, 0, 0, 1, 0, 0, 0, 0}
	for i, w := range want {
		if got := c.read(); got != w {
			t.Errorf("%d: read() = %d, want %d", i, got, w)
		}
	}

	// Past the 8th bit, real hardware returns 1 continuously.
	for i := 0; i < 3; i++ {
		if got := c.read(); got != 1 {
			t.Errorf("read() past bit 7 = %d, want 1", got)
		}
	}
}

func TestControllerWriteStrobeLatchesAndResetsIndex(t *testing.T) {
	c := newController(player1Keys)
	c.buttons = 0xFF
	c.idx = 5

	c.write(1) // strobe high
	if !c.strobe {
		t.Errorf("write(1) should set strobe")
	}
	if c.idx != 0 {
		t.Errorf("write(1) should reset idx, got %d", c.idx)
	}

	c.buttons = 0
	c.write(0) // strobe low: re-polls buttons from input state
	if c.strobe {
		t.Errorf("write(0) should clear strobe")
	}
}
