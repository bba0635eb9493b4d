// Command nescore runs the NES emulator against a given iNES ROM image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/nes-emu/nescore/console"
	"github.com/nes-emu/nescore/mappers"
	"github.com/nes-emu/nescore/nesrom"
)

var (
	debug     = flag.Bool("debug", false, "Enable verbose diagnostics and audio WAV recording.")
	pt        = flag.Bool("pt", false, "Show the CHR pattern-table viewer panel.")
	breakAddr = flag.String("break", "", "Pause emulation and drop into the debug REPL once PC reaches this hex address (eg: c000).")
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: nescore <rom.nes> [--debug] [--pt] [--break <hex-addr>]")
		os.Exit(1)
	}
	romPath := flag.Arg(0)

	rom, err := nesrom.New(romPath)
	if err != nil {
		glog.Errorf("couldn't load ROM: %v", err)
		os.Exit(1)
	}

	m, err := mappers.Get(rom)
	if err != nil {
		glog.Errorf("couldn't get mapper: %v", err)
		os.Exit(1)
	}

	nes := console.New(m)

	if *pt {
		nes.EnablePatternTableViewer()
	}

	if *debug {
		flag.Set("v", "2")
		wavPath := romPath + ".wav"
		if err := nes.EnableAudioRecording(wavPath); err != nil {
			glog.Warningf("couldn't enable audio recording: %v", err)
		} else {
			defer nes.DisableAudioRecording()
			glog.V(2).Infof("recording mixed audio to %s", wavPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	if *breakAddr != "" {
		addr, err := strconv.ParseUint(*breakAddr, 16, 16)
		if err != nil {
			glog.Errorf("invalid --break address %q: %v", *breakAddr, err)
			cancel()
			os.Exit(1)
		}

		go func(target uint16) {
			if nes.RunUntilBreak(stop, target) {
				glog.V(2).Infof("hit breakpoint at %04x, entering REPL", target)
				nes.REPL(stop)
			}
		}(uint16(addr))
	} else {
		go nes.Run(stop)
	}

	runErr := ebiten.RunGame(nes)
	cancel()

	if err := nes.SaveRAM(); err != nil {
		glog.Errorf("couldn't write save RAM: %v", err)
	}

	if runErr != nil {
		glog.Errorf("ebiten exited with error: %v", runErr)
		os.Exit(1)
	}
	os.Exit(0)
}
