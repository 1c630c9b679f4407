package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.bug.st/serial"
)

const (
	serialAttempts    = 5
	serialRetryDelay  = 2 * time.Second
	serialSettleDelay = 2 * time.Second
	serialReadTimeout = 100 * time.Millisecond
	ackTimeout        = 100 * time.Millisecond
	reversalPause     = 100 * time.Millisecond
	maxSensorErrors   = 20
	statusInterval    = 5 * time.Second
)

// BridgeConfig carries the relay endpoints.
type BridgeConfig struct {
	SerialPort   string
	BaudRate     int
	ListenAddr   string
	SensorTarget string
}

// joystickPacket is the operator's wire format. Buttons ride along in the
// packet but the bridge only steers on the stick position.
type joystickPacket struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Buttons []int   `json:"buttons"`
}

// translateDrive converts a stick deflection into the drive and steering
// commands the robot firmware understands. The Y deadband keeps stick noise
// from toggling the motors.
func translateDrive(x, y float64) (drive string, servo int) {
	pwm := int(math.Abs(y) * 255)
	switch {
	case y < -0.1:
		drive = fmt.Sprintf("backward:%d", pwm)
	case y > 0.1:
		drive = fmt.Sprintf("forward:%d", pwm)
	default:
		drive = "stop"
	}
	return drive, int(85 + x*15)
}

// needsSafetyStop reports whether the drive direction reverses between two
// commands. The firmware must see a stop between reversals.
func needsSafetyStop(prev, next string) bool {
	return (strings.HasPrefix(next, "forward") && strings.HasPrefix(prev, "backward")) ||
		(strings.HasPrefix(next, "backward") && strings.HasPrefix(prev, "forward"))
}

func isDriveCommand(cmd string) bool {
	return !strings.HasPrefix(cmd, "servo:")
}

var requiredSensorFields = []string{"ax", "ay", "az", "gx", "gy", "gz", "distance"}

// parseSensorReading validates one telemetry line and stamps it with the
// relay time in float seconds. Extra fields the firmware adds ride along
// untouched.
func parseSensorReading(line string, now time.Time) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return nil, err
	}
	for _, field := range requiredSensorFields {
		if _, ok := data[field]; !ok {
			return nil, fmt.Errorf("missing field %q", field)
		}
	}
	data["timestamp"] = float64(now.UnixNano()) / float64(time.Second)
	return data, nil
}

// lineBuffer assembles newline-delimited frames from arbitrary read chunks.
type lineBuffer struct {
	buf []byte
}

func (l *lineBuffer) feed(chunk []byte) []string {
	l.buf = append(l.buf, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			return lines
		}
		line := strings.TrimSpace(string(l.buf[:i]))
		l.buf = l.buf[i+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}
}

// openRobotLink opens the firmware serial port, retrying a few times since
// the adapter can take a moment to enumerate. The settle delay lets the
// microcontroller finish its reset after the port toggles DTR.
func openRobotLink(portName string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	var lastErr error
	for attempt := 1; attempt <= serialAttempts; attempt++ {
		port, err := serial.Open(portName, mode)
		if err == nil {
			port.SetReadTimeout(serialReadTimeout)
			time.Sleep(serialSettleDelay)
			log.Printf("✅ Connected to robot on %s", portName)
			return port, nil
		}
		lastErr = err
		log.Printf("❌ Attempt %d/%d: opening %s: %v", attempt, serialAttempts, portName, err)
		if attempt < serialAttempts {
			time.Sleep(serialRetryDelay)
		}
	}
	return nil, fmt.Errorf("connecting to robot after %d attempts: %w", serialAttempts, lastErr)
}

// robotLink is the slice of the serial port the relay uses. serial.Port
// satisfies it.
type robotLink interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}

// Bridge relays between the robot's serial firmware link and the operator's
// UDP sockets: joystick packets in, drive commands out, telemetry back.
type Bridge struct {
	port       robotLink
	listenAddr string
	target     string

	cmdSock    net.PacketConn
	sensorSock net.Conn

	cmds     chan string
	acks     chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewBridge(port robotLink, listenAddr, sensorTarget string) *Bridge {
	return &Bridge{
		port:       port,
		listenAddr: listenAddr,
		target:     sensorTarget,
		cmds:       make(chan string, 32),
		acks:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
}

// Start binds the sockets and launches the relay goroutines.
func (b *Bridge) Start() error {
	cmdSock, err := net.ListenPacket("udp", b.listenAddr)
	if err != nil {
		return fmt.Errorf("listening for joystick packets: %w", err)
	}
	sensorSock, err := net.Dial("udp", b.target)
	if err != nil {
		cmdSock.Close()
		return fmt.Errorf("opening sensor target: %w", err)
	}
	b.cmdSock = cmdSock
	b.sensorSock = sensorSock

	log.Printf("🎮 Listening for joystick commands on %s", b.listenAddr)
	log.Printf("📡 Forwarding sensor data to %s", b.target)

	b.wg.Add(3)
	go b.serialReader()
	go b.commandReceiver()
	go b.commandSender()
	return nil
}

// Stop shuts the relay down and releases every resource. Safe to call twice.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.port.Close()
		if b.cmdSock != nil {
			b.cmdSock.Close()
		}
		b.wg.Wait()
		if b.sensorSock != nil {
			b.sensorSock.Close()
		}
		log.Println("✅ Serial connection closed")
		log.Println("✅ Sockets closed")
		log.Println("✅ Cleanup complete")
	})
}

// serialReader owns every read on the serial link. Telemetry lines are
// validated and forwarded over UDP, ack lines are handed to the command
// sender. After too many consecutive bad lines the telemetry path shuts off
// while ack handling stays alive.
func (b *Bridge) serialReader() {
	defer b.wg.Done()
	log.Println("🔄 Sensor reader started")

	var lb lineBuffer
	buf := make([]byte, 256)
	forwarding := true
	errorCount := 0
	packetCount := 0
	lastReport := time.Now()

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		n, err := b.port.Read(buf)
		if err != nil {
			select {
			case <-b.stop:
				return
			default:
			}
			errorCount++
			log.Printf("❌ Serial read error: %v", err)
			time.Sleep(10 * time.Millisecond)
		} else if n > 0 {
			for _, line := range lb.feed(buf[:n]) {
				if line == "ack" {
					select {
					case b.acks <- struct{}{}:
					default:
					}
					continue
				}
				if strings.HasPrefix(line, "ack") || !forwarding {
					continue
				}
				data, err := parseSensorReading(line, time.Now())
				if err != nil {
					errorCount++
					log.Printf("⚠️ Dropping sensor line: %v", err)
					continue
				}
				errorCount = 0
				packetCount++
				payload, _ := json.Marshal(data)
				if _, err := b.sensorSock.Write(payload); err != nil {
					log.Printf("⚠️ Forwarding sensor packet: %v", err)
				}
				if time.Since(lastReport) >= statusInterval {
					log.Printf("📊 Sent %d sensor packets, last distance: %v cm",
						packetCount, data["distance"])
					lastReport = time.Now()
				}
			}
		}

		if forwarding && errorCount > maxSensorErrors {
			forwarding = false
			log.Printf("❌ Too many sensor errors (%d), telemetry forwarding disabled", errorCount)
		}
	}
}

// commandReceiver turns operator joystick packets into firmware commands,
// queueing only changes.
func (b *Bridge) commandReceiver() {
	defer b.wg.Done()
	log.Println("🎮 Joystick receiver started")

	buf := make([]byte, 1024)
	prevDrive := ""
	prevServo := -1

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		b.cmdSock.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := b.cmdSock.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-b.stop:
				return
			default:
			}
			log.Printf("⚠️ Joystick receiver: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		var pkt joystickPacket
		if err := json.Unmarshal(buf[:n], &pkt); err != nil {
			log.Printf("⚠️ Bad joystick packet: %v", err)
			continue
		}

		drive, servo := translateDrive(pkt.X, pkt.Y)
		if drive != prevDrive {
			b.enqueue(drive)
			prevDrive = drive
		}
		if servo != prevServo {
			b.enqueue(fmt.Sprintf("servo:%d", servo))
			prevServo = servo
		}
	}
}

func (b *Bridge) enqueue(cmd string) {
	select {
	case b.cmds <- cmd:
	default:
		log.Printf("⚠️ Command queue full, dropping %s", cmd)
	}
}

// commandSender drains the queue to the firmware, inserting a stop plus a
// short pause between drive reversals and waiting briefly for each ack.
func (b *Bridge) commandSender() {
	defer b.wg.Done()
	log.Println("🎯 Command sender started")

	lastDrive := ""
	for {
		var cmd string
		select {
		case <-b.stop:
			return
		case cmd = <-b.cmds:
		}

		if needsSafetyStop(lastDrive, cmd) {
			if err := b.writeCommand("stop"); err != nil {
				log.Printf("❌ Writing stop: %v", err)
				continue
			}
			log.Println("🛑 Sent stop for direction switch")
			lastDrive = "stop"
			time.Sleep(reversalPause)
		}

		// drop any ack left over from a previous exchange
		select {
		case <-b.acks:
		default:
		}

		if err := b.writeCommand(cmd); err != nil {
			log.Printf("❌ Sending %q: %v", cmd, err)
			continue
		}
		log.Printf("🧭 Sent to robot: %s", cmd)
		if isDriveCommand(cmd) {
			lastDrive = cmd
		}

		if b.waitAck(ackTimeout) {
			log.Println("✅ Ack received")
		} else {
			log.Printf("⚠️ No ack for %s", cmd)
		}
	}
}

func (b *Bridge) writeCommand(cmd string) error {
	_, err := b.port.Write([]byte(cmd + "\n"))
	return err
}

func (b *Bridge) waitAck(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-b.acks:
		return true
	case <-t.C:
		return false
	case <-b.stop:
		return false
	}
}

// runBridge relays until interrupted. Serial connect failure is the one
// fatal error; once established, the relay rides out everything else.
func runBridge(cfg BridgeConfig) int {
	log.Println("🤖 Bidirectional robot control bridge")

	port, err := openRobotLink(cfg.SerialPort, cfg.BaudRate)
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	bridge := NewBridge(port, cfg.ListenAddr, cfg.SensorTarget)
	if err := bridge.Start(); err != nil {
		port.Close()
		log.Printf("❌ %v", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("\n🛑 Shutdown signal received. Cleaning up...")
	bridge.Stop()
	return 0
}
