package console

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
)

func readAddress(prompt string) uint16 {
	var a uint16
	fmt.Print(prompt)
	fmt.Scanf("%04x\n", &a)
	return a
}

// REPL runs the console's interactive debug shell, entered by the
// --break flag once PC reaches the requested address. It's a
// developer tool, not part of the emulated hardware.
func (b *Bus) REPL(stop <-chan struct{}) {
	sigQuit := make(chan os.Signal, 1)
	signal.Notify(sigQuit, syscall.SIGINT, syscall.SIGTERM)

	breaks := make(map[uint16]struct{})

	for {
		fmt.Printf("%s\n\n", b.cpu)
		fmt.Println("(B)reak - add breakpoint")
		fmt.Println("(C)lear - clear breakpoints")
		fmt.Println("(R)un - run to completion")
		fmt.Println("(S)tep - step the cpu one instruction")
		fmt.Println("R(e)set - hit the reset button")
		fmt.Println("(M)emory - show a memory range")
		fmt.Println("S(t)ack - show the top of the stack")
		fmt.Println("(P)C - set program counter")
		fmt.Println("(Q)uit - shut down")
		fmt.Print("Choice: ")

		var in rune
		fmt.Scanf("%c\n", &in)

		switch in {
		case 'b', 'B':
			breaks[readAddress("Breakpoint (eg: ff15): ")] = struct{}{}
		case 'c', 'C':
			breaks = make(map[uint16]struct{})
		case 'p', 'P':
			b.cpu.PC = readAddress("Set PC to what address (eg: 0400)?: ")
		case 'q', 'Q':
			return
		case 'r', 'R':
			for {
				select {
				case <-stop:
					return
				case <-sigQuit:
					return
				default:
				}
				b.Step()
				if _, ok := breaks[b.cpu.PC]; ok {
					break
				}
			}
		case 's', 'S':
			// Advance one full instruction: Step() returns true only on
			// the cycle where the next instruction is fetched.
			for !b.Step() {
			}
		case 't', 'T':
			fmt.Println()
			sp := uint16(0x0100) | uint16(b.cpu.SP)
			for i := 0; i < 3; i++ {
				m := sp + uint16(i)
				fmt.Printf("0x%04x: 0x%02x ", m, b.Read(m))
				if m == 0x01ff {
					break
				}
			}
			fmt.Printf("\n\n")
		case 'e', 'E':
			b.cpu.Reset()
		case 'm', 'M':
			fmt.Println()
			low := readAddress("Low address (eg f00d): ")
			high := readAddress("High address (eg beef): ")
			fmt.Println()

			x := 1
			i := low
			for {
				fmt.Printf("0x%04x: 0x%02x ", i, b.Read(i))
				if x%5 == 0 {
					fmt.Println()
				}
				if i == high || i == math.MaxUint16 {
					break
				}
				x++
				i++
			}
			fmt.Printf("\n\n")
		}
	}
}
