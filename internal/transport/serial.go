// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport opens the byte channels a dobot.Conn runs over: a local
// serial port, a WebSocket serial bridge or a raw TCP serial server.
package transport

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// OpenSerial opens portName at baudRate, 8N1. The returned port satisfies
// dobot.Transport without wrapping.
func OpenSerial(portName string, baudRate int) (dobot.Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return port, nil
}

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name         string `json:"name" yaml:"name"`
	IsUSB        bool   `json:"usb" yaml:"usb"`
	VID          string `json:"vid,omitempty" yaml:"vid,omitempty"`
	PID          string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

// Known USB-UART bridges fitted to Dobot controllers
var dobotBridges = map[string]string{
	"1a86:7523": "CH340",
	"10c4:ea60": "CP210x",
}

// Bridge names the USB-UART chip when it is one Dobot controllers ship with
func (p PortInfo) Bridge() string {
	return dobotBridges[strings.ToLower(p.VID+":"+p.PID)]
}

// ListPorts enumerates serial ports, falling back to bare names when the
// platform does not expose USB details.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil || len(details) == 0 {
		names, nerr := serial.GetPortsList()
		if nerr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", nerr)
		}
		ports := make([]PortInfo, 0, len(names))
		for _, name := range names {
			ports = append(ports, PortInfo{Name: name})
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
		return ports, nil
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}
