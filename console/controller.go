package console

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Buttons, as bits:
// 0 - A
// 1 - B
// 2 - Select
// 3 - Start
// 4 - Up
// 5 - Down
// 6 - Left
// 7 - Right

// player1Keys and player2Keys are the default bindings; they're
// configuration, not a hardware contract, so nothing else in this
// package depends on the specific keys chosen.
var player1Keys = []ebiten.Key{
	ebiten.KeyX,          // A
	ebiten.KeyZ,          // B
	ebiten.KeyShiftRight, // Select
	ebiten.KeyEnter,      // Start
	ebiten.KeyUp,         // Up
	ebiten.KeyDown,       // Down
	ebiten.KeyLeft,       // Left
	ebiten.KeyRight,      // Right
}

var player2Keys = []ebiten.Key{
	ebiten.KeyL, // A
	ebiten.KeyK, // B
	ebiten.KeyG, // Select
	ebiten.KeyH, // Start
	ebiten.KeyW, // Up
	ebiten.KeyS, // Down
	ebiten.KeyA, // Left
	ebiten.KeyD, // Right
}

type controller struct {
	keys    []ebiten.Key
	strobe  bool
	buttons uint8
	idx     uint8
}

func newController(keys []ebiten.Key) *controller {
	return &controller{keys: keys}
}

func (c *controller) write(val uint8) {
	switch val & 0x01 {
	case 0:
		c.strobe = false
		c.buttons = 0
		c.poll()

	case 1:
		c.strobe = true
		c.idx = 0
	}
}

func (c *controller) read() uint8 {
	if c.idx > 7 {
		return 1
	}

	ret := c.buttons & (1 << c.idx) >> c.idx
	c.idx++
	return ret
}

func (c *controller) poll() {
	for i, key := range c.keys {
		var pressed uint8
		if ebiten.IsKeyPressed(key) {
			pressed = 1
		}
		c.buttons |= (pressed << i)
	}
}
