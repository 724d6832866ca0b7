// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dobot provides a Go implementation of the Dobot Magician serial protocol.
//
// The package covers frame encoding/decoding with checksum validation, typed
// parameter serialization, a static command table, and a synchronous
// transaction engine (Conn) that keeps exactly one request in flight per
// connection. The device does not tag replies, so replies are matched to
// requests by strict temporal order only.
package dobot

// Protocol framing bytes
const (
	MagicByte = 0xAA
)

// Frame size limits
const (
	HeaderSize     = 3   // magic (2) + length (1)
	MinLength      = 2   // id + control
	MaxPayloadSize = 253 // length byte also covers id and control
	MaxFrameSize   = HeaderSize + 0xFF + 1
)

// Serial line settings used by the controller (8N1)
const (
	DefaultBaudRate = 115200
)

// Control is the control byte of a frame
type Control uint8

// Control byte flags
const (
	ControlWrite  Control = 0x01 // bit 0: write (set) instead of read (get)
	ControlQueued Control = 0x02 // bit 1: enqueue on the device command queue
)

// Device information 0-9
const (
	CmdDeviceSN      = 0
	CmdDeviceName    = 1
	CmdDeviceVersion = 2
	CmdDeviceWithL   = 3
	CmdDeviceTime    = 4
	CmdDeviceID      = 5
)

// Pose and alarms 10-29
const (
	CmdPose                = 10
	CmdResetPose           = 11
	CmdPoseL               = 13
	CmdAlarmsState         = 20
	CmdClearAllAlarmsState = 21
)

// Homing, leveling and hand-hold teaching 30-49
const (
	CmdHomeParams           = 30
	CmdHomeCmd              = 31
	CmdAutoLeveling         = 32
	CmdHHTTrigMode          = 40
	CmdHHTTrigOutputEnabled = 41
	CmdHHTTrigOutput        = 42
)

// End effectors 60-69
const (
	CmdEndEffectorParams     = 60
	CmdEndEffectorLaser      = 61
	CmdEndEffectorSuctionCup = 62
	CmdEndEffectorGripper    = 63
)

// JOG 70-79
const (
	CmdJogJointParams      = 70
	CmdJogCoordinateParams = 71
	CmdJogCommonParams     = 72
	CmdJogCmd              = 73
	CmdJogLParams          = 74
)

// Point to point 80-89
const (
	CmdPTPJointParams      = 80
	CmdPTPCoordinateParams = 81
	CmdPTPJumpParams       = 82
	CmdPTPCommonParams     = 83
	CmdPTPCmd              = 84
	CmdPTPLParams          = 85
	CmdPTPWithLCmd         = 86
	CmdPTPJump2Params      = 87
	CmdPTPPOCmd            = 88
	CmdPTPPOWithLCmd       = 89
)

// Continuous path, arc, wait and trigger 90-129
const (
	CmdCPParams   = 90
	CmdCPCmd      = 91
	CmdCPLECmd    = 92
	CmdArcParams  = 100
	CmdArcCmd     = 101
	CmdWaitCmd    = 110
	CmdTriggerCmd = 120
)

// I/O and sensors 130-149
const (
	CmdIOMultiplexing         = 130
	CmdIODO                   = 131
	CmdIOPWM                  = 132
	CmdIODI                   = 133
	CmdIOADC                  = 134
	CmdEMotor                 = 135
	CmdColorSensor            = 137
	CmdIRSwitch               = 138
	CmdAngleSensorStaticError = 140
)

// WiFi 150-169
const (
	CmdWiFiConfigMode    = 150
	CmdWiFiSSID          = 151
	CmdWiFiPassword      = 152
	CmdWiFiIPAddress     = 153
	CmdWiFiNetmask       = 154
	CmdWiFiGateway       = 155
	CmdWiFiDNS           = 156
	CmdWiFiConnectStatus = 157
)

// Lost step detection 170-179
const (
	CmdLostStepParams = 170
	CmdLostStepCmd    = 171
)

// Command queue control 240-255
const (
	CmdQueueStartExec     = 240
	CmdQueueStopExec      = 241
	CmdQueueForceStopExec = 242
	CmdQueueStartDownload = 243
	CmdQueueStopDownload  = 244
	CmdQueueClear         = 245
	CmdQueueCurrentIndex  = 246
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateMagic2
	stateLength
	stateBody
)
