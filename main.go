package main

import (
	"flag"
	"log"
	"os"
	"time"
)

func main() {
	listMode := flag.Bool("list", false, "List input devices and their force feedback support")
	monitorMode := flag.Bool("monitor", false, "Show live joystick input")
	bridgeMode := flag.Bool("bridge", false, "Relay between the robot serial link and operator UDP")
	daemonMode := flag.Bool("daemon", false, "Run as daemon (stderr log)")
	devicePath := flag.String("device", "", "Event node to use instead of scanning (e.g. /dev/input/event7)")
	duration := flag.Duration("duration", 300*time.Millisecond, "Total length of the feedback pattern")
	serialPort := flag.String("serial", "/dev/ttyACM0", "Robot serial port for bridge mode")
	baudRate := flag.Int("baud", 115200, "Robot serial baud rate")
	listenAddr := flag.String("listen", ":5005", "UDP listen address for joystick packets in bridge mode")
	sensorTarget := flag.String("sensor-target", "127.0.0.1:5055", "UDP target for forwarded sensor data")
	flag.Parse()

	if *daemonMode {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
	} else {
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	switch {
	case *listMode:
		os.Exit(runList(defaultInputDir))
	case *monitorMode:
		os.Exit(runMonitor())
	case *bridgeMode:
		os.Exit(runBridge(BridgeConfig{
			SerialPort:   *serialPort,
			BaudRate:     *baudRate,
			ListenAddr:   *listenAddr,
			SensorTarget: *sensorTarget,
		}))
	}

	category := ParseCategory(flag.Arg(0))
	log.Printf("🎮 Minimal force feedback, category: %s", category)
	os.Exit(runFeedback(NewSession(*devicePath), category, *duration))
}

// runFeedback performs one feedback run: establish the device session, play
// the category pattern, tear down. The return value is the process exit
// code; only session establishment failures make it nonzero.
func runFeedback(sess *Session, category Category, total time.Duration) int {
	defer sess.Release()

	if err := sess.Open(); err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	if err := sess.FindDevice(); err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	if err := sess.Setup(); err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	log.Printf("✅ %s acquired and ready", sess.DeviceName())

	if category == CategoryNone {
		log.Println("No feedback requested")
		return 0
	}

	log.Printf("Applying %s feedback pattern...", category)
	osc := NewOscillator(sess)
	if err := osc.Run(category.Params(), total); err != nil {
		log.Printf("❌ %v", err)
	}
	return 0
}
