package mappers

import (
	"math"

	"github.com/nes-emu/nescore/nesrom"
)

// dummyMapper is a flat-memory stand-in for a real mapper, used by the
// console package's tests, which need a Mapper without caring
// about bank switching.
type dummyMapper struct {
	memory [math.MaxUint16 + 1]uint8
	MM     int // mirroring mode - tests can set as needed
	irq    bool
}

func (dm *dummyMapper) ID() uint16         { return 0xFFFF }
func (dm *dummyMapper) Init(r *nesrom.ROM) {}
func (dm *dummyMapper) Name() string       { return "dummy mapper" }
func (dm *dummyMapper) HasSaveRAM() bool   { return true }
func (dm *dummyMapper) ScanlineTick()      {}
func (dm *dummyMapper) IRQLine() bool      { return dm.irq }
func (dm *dummyMapper) SaveRAM() error     { return nil }

func (dm *dummyMapper) CpuRead(addr uint16) uint8       { return dm.memory[addr] }
func (dm *dummyMapper) CpuWrite(addr uint16, val uint8) { dm.memory[addr] = val }
func (dm *dummyMapper) PpuRead(addr uint16) uint8       { return dm.memory[addr] }
func (dm *dummyMapper) PpuWrite(addr uint16, val uint8) { dm.memory[addr] = val }

func (dm *dummyMapper) NametableMirror(addr uint16) (int, uint16) {
	return headerMirror(uint8(dm.MM), addr)
}

// Dummy is a package-level instance for tests that just need any Mapper.
var Dummy *dummyMapper = &dummyMapper{}
