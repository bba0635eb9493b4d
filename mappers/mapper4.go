package mappers

import "github.com/nes-emu/nescore/nesrom"

// mapper4 implements iNES mapper 4 (MMC3): two 8 KiB switchable PRG banks
// plus two fixed to the second-last/last bank, six switchable CHR banks
// (two 2 KiB + four 1 KiB), and a scanline-driven IRQ counter. Grounded on
// a reference MMC3 implementation in the example pack (bank-select/R0-R7
// register layout, even/odd $8000/$A000/$C000/$E000 semantics, and the
// latch/reload/enable IRQ counter), re-expressed against this repo's
// Mapper interface and nametable-mirror model.
func init() {
	RegisterMapper(4, func() Mapper {
		return &mapper4{baseMapper: newBaseMapper(4, "MMC3")}
	})
}

type mapper4 struct {
	*baseMapper

	bankSelect uint8
	prgMode    uint8
	chrMode    uint8
	registers  [8]uint8

	mirroring uint8

	prgRAMEnabled      bool
	prgRAMWriteProtect bool

	irqLatch      uint8
	irqCounter    uint8
	irqEnabled    bool
	irqPending    bool
	irqReloadFlag bool
}

func (m *mapper4) Init(r *nesrom.ROM) {
	m.baseMapper.Init(r)
	m.prgRAMEnabled = true
}

func (m *mapper4) prgBanks() uint8 {
	return uint8(m.rom.PrgSize() / 0x2000)
}

func (m *mapper4) CpuRead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMEnabled {
			return m.rom.PrgRAMRead(addr - 0x6000)
		}
		return 0

	case addr >= 0x8000 && addr < 0xA000:
		bank := m.prgBanks() - 2
		if m.prgMode == 0 {
			bank = m.registers[6]
		}
		return m.rom.PrgRead(int(bank)*0x2000 + int(addr-0x8000))

	case addr >= 0xA000 && addr < 0xC000:
		return m.rom.PrgRead(int(m.registers[7])*0x2000 + int(addr-0xA000))

	case addr >= 0xC000 && addr < 0xE000:
		bank := m.registers[6]
		if m.prgMode == 0 {
			bank = m.prgBanks() - 2
		}
		return m.rom.PrgRead(int(bank)*0x2000 + int(addr-0xC000))

	default: // addr >= 0xE000
		bank := m.prgBanks() - 1
		return m.rom.PrgRead(int(bank)*0x2000 + int(addr-0xE000))
	}
}

func (m *mapper4) CpuWrite(addr uint16, val uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMEnabled && !m.prgRAMWriteProtect {
			m.rom.PrgRAMWrite(addr-0x6000, val)
		}

	case addr >= 0x8000 && addr < 0xA000:
		if addr&1 == 0 {
			m.bankSelect = val & 0x07
			m.prgMode = (val >> 6) & 0x01
			m.chrMode = (val >> 7) & 0x01
		} else {
			m.registers[m.bankSelect] = val
		}

	case addr >= 0xA000 && addr < 0xC000:
		if addr&1 == 0 {
			if val&1 == 0 {
				m.mirroring = MirrorVertical
			} else {
				m.mirroring = MirrorHorizontal
			}
		} else {
			m.prgRAMWriteProtect = val&0x40 != 0
			m.prgRAMEnabled = val&0x80 != 0
		}

	case addr >= 0xC000 && addr < 0xE000:
		if addr&1 == 0 {
			m.irqLatch = val
		} else {
			m.irqCounter = 0
			m.irqReloadFlag = true
		}

	default: // addr >= 0xE000
		if addr&1 == 0 {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mapper4) PpuRead(addr uint16) uint8 {
	return m.rom.ChrRead(m.chrOffset(addr))
}

func (m *mapper4) PpuWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(m.chrOffset(addr), val)
}

func (m *mapper4) chrOffset(addr uint16) int {
	if m.chrMode == 0 {
		switch {
		case addr < 0x0800:
			return int(m.registers[0]&0xFE)*0x400 + int(addr)
		case addr < 0x1000:
			return int(m.registers[1]&0xFE)*0x400 + int(addr-0x0800)
		case addr < 0x1400:
			return int(m.registers[2])*0x400 + int(addr-0x1000)
		case addr < 0x1800:
			return int(m.registers[3])*0x400 + int(addr-0x1400)
		case addr < 0x1C00:
			return int(m.registers[4])*0x400 + int(addr-0x1800)
		default:
			return int(m.registers[5])*0x400 + int(addr-0x1C00)
		}
	}

	switch {
	case addr < 0x0400:
		return int(m.registers[2])*0x400 + int(addr)
	case addr < 0x0800:
		return int(m.registers[3])*0x400 + int(addr-0x0400)
	case addr < 0x0C00:
		return int(m.registers[4])*0x400 + int(addr-0x0800)
	case addr < 0x1000:
		return int(m.registers[5])*0x400 + int(addr-0x0C00)
	case addr < 0x1800:
		return int(m.registers[0]&0xFE)*0x400 + int(addr-0x1000)
	default:
		return int(m.registers[1]&0xFE)*0x400 + int(addr-0x1800)
	}
}

func (m *mapper4) NametableMirror(addr uint16) (int, uint16) {
	return headerMirror(m.mirroring, addr)
}

func (m *mapper4) ScanlineTick() {
	if m.irqCounter == 0 || m.irqReloadFlag {
		m.irqCounter = m.irqLatch
		m.irqReloadFlag = false
	} else {
		m.irqCounter--
	}

	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mapper4) IRQLine() bool {
	return m.irqPending
}
