package mappers

// mapper0 implements iNES mapper 0 (NROM): fixed 16 or 32 KiB PRG-ROM, 8
// KiB CHR-ROM or CHR-RAM, no bank switching. Header-declared mirroring
// only.
func init() {
	RegisterMapper(0, func() Mapper {
		return &mapper0{baseMapper: newBaseMapper(0, "NROM")}
	})
}

type mapper0 struct {
	*baseMapper
}

func (m *mapper0) CpuRead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.rom.PrgRAMRead(addr - 0x6000)
	case addr >= 0x8000:
		return m.rom.PrgRead(int(addr - 0x8000))
	}
	return 0
}

func (m *mapper0) CpuWrite(addr uint16, val uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.rom.PrgRAMWrite(addr-0x6000, val)
	}
	// Writes to $8000-$FFFF hit ROM; silently dropped (MapperWriteIgnored).
}

func (m *mapper0) PpuRead(addr uint16) uint8 {
	return m.rom.ChrRead(int(addr))
}

func (m *mapper0) PpuWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(int(addr), val)
}

func (m *mapper0) NametableMirror(addr uint16) (int, uint16) {
	return headerMirror(m.rom.MirroringMode(), addr)
}
