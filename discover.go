package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

const sysfsInputClass = "/sys/class/input"

// eventNodes filters a directory listing down to the eventN entries, ordered
// by node number so enumeration is deterministic.
func eventNodes(names []string) []string {
	type node struct {
		name string
		num  int
	}
	var nodes []node
	for _, name := range names {
		num, ok := eventNumber(name)
		if !ok {
			continue
		}
		nodes = append(nodes, node{name, num})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.name
	}
	return out
}

func eventNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "event") {
		return 0, false
	}
	num, err := strconv.Atoi(name[len("event"):])
	if err != nil || num < 0 {
		return 0, false
	}
	return num, true
}

func hasEventCode(dev *evdev.InputDevice, evType int, typeName string, code int) bool {
	for _, c := range dev.Capabilities[evdev.CapabilityType{Type: evType, Name: typeName}] {
		if c.Code == code {
			return true
		}
	}
	return false
}

// isFeedbackController reports whether a device can serve a feedback run:
// constant force output plus an absolute X axis.
func isFeedbackController(dev *evdev.InputDevice) bool {
	return hasEventCode(dev, evFF, "EV_FF", ffConstant) &&
		hasEventCode(dev, evAbs, "EV_ABS", absX)
}

// openForceDevice binds an event node and verifies it can serve a feedback
// run. Unsuitable nodes are closed and rejected.
func openForceDevice(path string) (*evdev.InputDevice, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	if !isFeedbackController(dev) {
		dev.File.Close()
		return nil, fmt.Errorf("%s: no constant force support", path)
	}
	return dev, nil
}

func forceFlavors(dev *evdev.InputDevice) []string {
	var flavors []string
	for _, f := range []struct {
		code int
		name string
	}{{ffConstant, "constant"}, {ffRumble, "rumble"}, {ffPeriodic, "periodic"}} {
		if hasEventCode(dev, evFF, "EV_FF", f.code) {
			flavors = append(flavors, f.name)
		}
	}
	return flavors
}

// readDeviceName reads a node name from sysfs, for nodes we cannot open.
func readDeviceName(base, node string) string {
	data, err := ioutil.ReadFile(filepath.Join(base, node, "device", "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// runList prints every event node with its identity and force feedback
// capabilities, marking the ones a feedback run could bind.
func runList(inputDir string) int {
	entries, err := ioutil.ReadDir(inputDir)
	if err != nil {
		log.Printf("❌ Reading %s: %v", inputDir, err)
		return 1
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	nodes := eventNodes(names)
	if len(nodes) == 0 {
		log.Printf("No event devices under %s", inputDir)
		return 0
	}

	log.Printf("🔍 Scanning %d event nodes under %s", len(nodes), inputDir)
	capable := 0
	for _, node := range nodes {
		dev, err := evdev.Open(filepath.Join(inputDir, node))
		if err != nil {
			name := readDeviceName(sysfsInputClass, node)
			if name == "" {
				name = "(unknown)"
			}
			log.Printf("   %-9s %s: %v", node, name, err)
			continue
		}

		extras := ""
		if flavors := forceFlavors(dev); len(flavors) > 0 {
			extras += fmt.Sprintf("  [force: %s]", strings.Join(flavors, " "))
		}
		if dev.Bustype == busUsb {
			if desc := usbProductString(dev.Vendor, dev.Product); desc != "" {
				extras += fmt.Sprintf("  (%s)", desc)
			}
		}
		mark := "  "
		if isFeedbackController(dev) {
			mark = "🎮"
			capable++
		}
		ids := fmt.Sprintf("%04x:%04x:%04x", dev.Bustype, dev.Vendor, dev.Product)
		if dev.Phys != "" {
			ids += " " + dev.Phys
		}
		log.Printf("%s %-9s %s [%s]%s", mark, node, dev.Name, ids, extras)
		dev.File.Close()
	}
	log.Printf("✅ %d node(s), %d usable for force feedback", len(nodes), capable)
	return 0
}
