package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/0xcafed00d/joystick"
)

const monitorRate = time.Second / 33

// findJoystick probes the first few joystick ids and opens the first one
// that answers.
func findJoystick() (joystick.Joystick, int, error) {
	for i := 0; i < 4; i++ {
		js, err := joystick.Open(i)
		if err == nil {
			return js, i, nil
		}
	}
	return nil, 0, fmt.Errorf("no joystick found")
}

// axisToByte folds a signed 16-bit axis reading into the 0..255 display range.
func axisToByte(v int) uint8 {
	return uint8((int32(v) + 32768) >> 8)
}

// pressedButtons expands a button bitmask into labels for the set bits.
func pressedButtons(mask uint32, count int) []string {
	var pressed []string
	for i := 0; i < count && i < 32; i++ {
		if mask&(1<<uint(i)) != 0 {
			pressed = append(pressed, fmt.Sprintf("B%d", i))
		}
	}
	return pressed
}

// formatJoystickState renders one status line for the monitor.
func formatJoystickState(state joystick.State, axes, buttons int) string {
	var parts []string

	vals := make([]string, 0, axes)
	for i := 0; i < axes && i < len(state.AxisData); i++ {
		vals = append(vals, fmt.Sprintf("%3d", axisToByte(state.AxisData[i])))
	}
	if len(vals) > 0 {
		parts = append(parts, "Axes: "+strings.Join(vals, " "))
	}
	if pressed := pressedButtons(state.Buttons, buttons); len(pressed) > 0 {
		parts = append(parts, "Pressed: "+strings.Join(pressed, " + "))
	}
	if len(parts) == 0 {
		return "Ready..."
	}
	return strings.Join(parts, " | ")
}

// runMonitor shows live joystick input on a single status line. Useful to
// verify a controller delivers data before driving feedback through it.
func runMonitor() int {
	js, id, err := findJoystick()
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	defer js.Close()

	log.Printf("📡 Monitoring %s (id %d): %d axes, %d buttons",
		js.Name(), id, js.AxisCount(), js.ButtonCount())
	log.Println("Press CTRL+C to quit.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(monitorRate)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println()
			log.Println("👋 Monitor stopped")
			return 0
		case <-ticker.C:
			state, err := js.Read()
			if err != nil {
				fmt.Println()
				log.Printf("❌ Reading joystick: %v", err)
				return 1
			}
			fmt.Printf("\r\033[K%s", formatJoystickState(state, js.AxisCount(), js.ButtonCount()))
		}
	}
}
