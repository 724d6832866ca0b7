// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

// get declares a read command with the given response layout
func get(id uint8, name, summary string, response ...any) CommandSpec {
	return CommandSpec{Name: name, ID: id, Response: Fields(response...), Summary: summary}
}

// set declares a write command with the given request layout
func set(id uint8, name, summary string, request ...any) CommandSpec {
	return CommandSpec{Name: name, ID: id, Write: true, Request: Fields(request...), Summary: summary}
}

// queued marks a write command as queued by default
func queued(c CommandSpec) CommandSpec {
	c.Queueable = true
	return c
}

// addressed gives a read command a request layout (e.g. an I/O address)
func addressed(c CommandSpec, request ...any) CommandSpec {
	c.Request = Fields(request...)
	return c
}

var (
	xyzr       = []Param{F32("x"), F32("y"), F32("z"), F32("r")}
	jointAccel = Fields(F32s("velocity", 4), F32s("acceleration", 4))
	coordAccel = Fields(F32("xyz_velocity"), F32("r_velocity"), F32("xyz_acceleration"), F32("r_acceleration"))
	ratios     = Fields(F32("velocity_ratio"), F32("acceleration_ratio"))
	railParams = Fields(F32("velocity"), F32("acceleration"))
	ipv4       = []Param{U8("a"), U8("b"), U8("c"), U8("d")}
	ipv4DHCP   = Fields(Bool("dhcp"), ipv4)
	effector   = Fields(Bool("enable_control"), Bool("on"))
	sensor     = Fields(Bool("enable"), U8("port"), U8("version"))
	cpParams   = Fields(F32("plan_acceleration"), F32("junction_velocity"), F32("acceleration"), U8("real_time"))
)

// commandTable lists every operation of the Dobot Magician protocol.
// Getters and setters sharing an id are distinguished by the write bit.
var commandTable = []CommandSpec{
	// Device information
	get(CmdDeviceSN, "get_device_serial_number", "Read the device serial number", Str("serial_number", 0)),
	set(CmdDeviceSN, "set_device_serial_number", "Write the device serial number", Str("serial_number", 0)),
	get(CmdDeviceName, "get_device_name", "Read the device name", Str("name", 0)),
	set(CmdDeviceName, "set_device_name", "Write the device name", Str("name", 0)),
	get(CmdDeviceVersion, "get_device_version", "Read the firmware version", U8("major"), U8("minor"), U8("revision")),
	get(CmdDeviceWithL, "get_sliding_rail_status", "Read whether the sliding rail is enabled", Bool("enabled")),
	set(CmdDeviceWithL, "set_sliding_rail_status", "Enable or disable the sliding rail", Bool("enable"), U8("version")),
	get(CmdDeviceTime, "get_device_time", "Read the device clock in milliseconds", U32("time_ms")),
	get(CmdDeviceID, "get_device_id", "Read the device id (undocumented layout, use Exchange for raw bytes)"),

	// Pose and alarms
	get(CmdPose, "get_pose", "Read the cartesian pose and joint angles", xyzr, F32s("joint", 4)),
	set(CmdResetPose, "reset_pose", "Reset the real-time pose", Bool("manual"), F32("rear_arm_angle"), F32("front_arm_angle")),
	get(CmdPoseL, "get_sliding_rail_pose", "Read the sliding rail position", F32("l")),
	get(CmdAlarmsState, "get_alarms_state", "Read the alarm bitmap", Raw("alarms", 0)),
	set(CmdClearAllAlarmsState, "clear_alarms_state", "Clear every alarm"),

	// Homing and leveling
	get(CmdHomeParams, "get_homing_parameters", "Read the homing position", xyzr),
	queued(set(CmdHomeParams, "set_homing_parameters", "Write the homing position", xyzr)),
	queued(set(CmdHomeCmd, "set_homing_command", "Run the homing procedure", U32("reserved"))),
	get(CmdAutoLeveling, "get_auto_leveling", "Read the auto leveling result", F32("result")),
	queued(set(CmdAutoLeveling, "set_auto_leveling", "Run auto leveling", Bool("enable"), F32("accuracy"))),

	// Hand-hold teaching
	get(CmdHHTTrigMode, "get_handheld_teaching_mode", "Read the hand-hold teaching trigger mode", U8("mode")),
	set(CmdHHTTrigMode, "set_handheld_teaching_mode", "Write the hand-hold teaching trigger mode", U8("mode")),
	get(CmdHHTTrigOutputEnabled, "get_handheld_teaching_state", "Read whether hand-hold teaching is enabled", Bool("enabled")),
	set(CmdHHTTrigOutputEnabled, "set_handheld_teaching_state", "Enable or disable hand-hold teaching", Bool("enable")),
	get(CmdHHTTrigOutput, "get_handheld_teaching_trigger", "Read the hand-hold teaching trigger", Bool("triggered")),

	// End effectors
	get(CmdEndEffectorParams, "get_end_effector_params", "Read the end effector offsets", F32("x_bias"), F32("y_bias"), F32("z_bias")),
	set(CmdEndEffectorParams, "set_end_effector_params", "Write the end effector offsets", F32("x_bias"), F32("y_bias"), F32("z_bias")),
	get(CmdEndEffectorLaser, "get_end_effector_laser", "Read the laser state", effector),
	queued(set(CmdEndEffectorLaser, "set_end_effector_laser", "Switch the laser", effector)),
	get(CmdEndEffectorSuctionCup, "get_end_effector_suction_cup", "Read the suction cup state", effector),
	queued(set(CmdEndEffectorSuctionCup, "set_end_effector_suction_cup", "Switch the suction cup", effector)),
	get(CmdEndEffectorGripper, "get_end_effector_gripper", "Read the gripper state", effector),
	queued(set(CmdEndEffectorGripper, "set_end_effector_gripper", "Switch the gripper", effector)),

	// JOG
	get(CmdJogJointParams, "get_jog_joint_params", "Read joint jog velocity and acceleration", jointAccel),
	queued(set(CmdJogJointParams, "set_jog_joint_params", "Write joint jog velocity and acceleration", jointAccel)),
	get(CmdJogCoordinateParams, "get_jog_coordinate_params", "Read coordinate jog velocity and acceleration", jointAccel),
	queued(set(CmdJogCoordinateParams, "set_jog_coordinate_params", "Write coordinate jog velocity and acceleration", jointAccel)),
	get(CmdJogCommonParams, "get_jog_common_params", "Read jog ratios", ratios),
	queued(set(CmdJogCommonParams, "set_jog_common_params", "Write jog ratios", ratios)),
	queued(set(CmdJogCmd, "set_jog_command", "Start or stop a jog", U8("jog_type"), U8("command"))),
	get(CmdJogLParams, "get_sliding_rail_jog_params", "Read sliding rail jog parameters", railParams),
	queued(set(CmdJogLParams, "set_sliding_rail_jog_params", "Write sliding rail jog parameters", railParams)),

	// Point to point
	get(CmdPTPJointParams, "get_point_to_point_joint_params", "Read PTP joint velocity and acceleration", jointAccel),
	queued(set(CmdPTPJointParams, "set_point_to_point_joint_params", "Write PTP joint velocity and acceleration", jointAccel)),
	get(CmdPTPCoordinateParams, "get_point_to_point_coordinate_params", "Read PTP coordinate parameters", coordAccel),
	queued(set(CmdPTPCoordinateParams, "set_point_to_point_coordinate_params", "Write PTP coordinate parameters", coordAccel)),
	get(CmdPTPJumpParams, "get_point_to_point_jump_params", "Read PTP jump parameters", F32("jump_height"), F32("z_limit")),
	queued(set(CmdPTPJumpParams, "set_point_to_point_jump_params", "Write PTP jump parameters", F32("jump_height"), F32("z_limit"))),
	get(CmdPTPCommonParams, "get_point_to_point_common_params", "Read PTP ratios", ratios),
	queued(set(CmdPTPCommonParams, "set_point_to_point_common_params", "Write PTP ratios", ratios)),
	queued(set(CmdPTPCmd, "set_point_to_point_command", "Move point to point", U8("mode"), xyzr)),
	get(CmdPTPLParams, "get_point_to_point_sliding_rail_params", "Read PTP sliding rail parameters", railParams),
	queued(set(CmdPTPLParams, "set_point_to_point_sliding_rail_params", "Write PTP sliding rail parameters", railParams)),
	queued(set(CmdPTPWithLCmd, "set_point_to_point_sliding_rail_command", "Move point to point with the sliding rail", U8("mode"), xyzr, F32("l"))),
	get(CmdPTPJump2Params, "get_point_to_point_jump2_params", "Read PTP jump2 parameters", F32("start_height"), F32("end_height"), F32("z_limit")),
	queued(set(CmdPTPJump2Params, "set_point_to_point_jump2_params", "Write PTP jump2 parameters", F32("start_height"), F32("end_height"), F32("z_limit"))),
	queued(set(CmdPTPPOCmd, "set_point_to_point_po_command", "Move point to point with parallel outputs", U8("mode"), xyzr, Raw("outputs", 0))),
	queued(set(CmdPTPPOWithLCmd, "set_point_to_point_sliding_rail_po_command", "Move point to point with the sliding rail and parallel outputs", U8("mode"), xyzr, F32("l"), Raw("outputs", 0))),

	// Continuous path
	get(CmdCPParams, "get_continuous_trajectory_params", "Read continuous path parameters", cpParams),
	queued(set(CmdCPParams, "set_continuous_trajectory_params", "Write continuous path parameters (real_time=1 makes acceleration a period)", cpParams)),
	queued(set(CmdCPCmd, "set_continuous_trajectory_command", "Move along a continuous path", U8("mode"), F32("x"), F32("y"), F32("z"), F32("velocity"))),
	queued(set(CmdCPLECmd, "set_continuous_trajectory_laser_engraver_command", "Move along a continuous path with laser power", U8("mode"), F32("x"), F32("y"), F32("z"), F32("power"))),

	// Arc
	get(CmdArcParams, "get_arc_params", "Read arc parameters", coordAccel),
	queued(set(CmdArcParams, "set_arc_params", "Write arc parameters", coordAccel)),
	queued(set(CmdArcCmd, "set_arc_command", "Move along an arc", F32s("via", 4), F32s("to", 4))),

	// Wait and trigger
	queued(set(CmdWaitCmd, "set_wait_command", "Queue a pause", U32("milliseconds"))),
	queued(set(CmdTriggerCmd, "set_trigger_command", "Queue a wait on an I/O condition", U8("address"), U8("mode"), U8("condition"), U16("threshold"))),

	// I/O
	addressed(get(CmdIOMultiplexing, "get_io_multiplexing", "Read the function of an I/O pin", U8("address"), U8("multiplex")), U8("address")),
	queued(set(CmdIOMultiplexing, "set_io_multiplexing", "Set the function of an I/O pin", U8("address"), U8("multiplex"))),
	addressed(get(CmdIODO, "get_io_do", "Read a digital output level", U8("address"), U8("level")), U8("address")),
	queued(set(CmdIODO, "set_io_do", "Set a digital output level", U8("address"), U8("level"))),
	addressed(get(CmdIOPWM, "get_io_pwm", "Read a PWM output", U8("address"), F32("frequency"), F32("duty_cycle")), U8("address")),
	queued(set(CmdIOPWM, "set_io_pwm", "Set a PWM output", U8("address"), F32("frequency"), F32("duty_cycle"))),
	addressed(get(CmdIODI, "get_io_di", "Read a digital input level", U8("address"), U8("level")), U8("address")),
	addressed(get(CmdIOADC, "get_io_adc", "Read an analog input", U8("address"), U16("value")), U8("address")),
	queued(set(CmdEMotor, "set_extended_motor_velocity", "Drive an extended stepper motor", U8("index"), Bool("enable"), I32("speed"))),

	// Sensors
	get(CmdColorSensor, "get_color_sensor", "Read the color sensor", U8("red"), U8("green"), U8("blue")),
	queued(set(CmdColorSensor, "set_color_sensor", "Enable the color sensor", sensor)),
	addressed(get(CmdIRSwitch, "get_ir_switch", "Read the infrared switch", U8("state")), U8("port")),
	queued(set(CmdIRSwitch, "set_ir_switch", "Enable the infrared switch", sensor)),
	get(CmdAngleSensorStaticError, "get_angle_sensor_static_error", "Read the angle sensor static error", F32("rear_arm_angle_error"), F32("front_arm_angle_error")),
	set(CmdAngleSensorStaticError, "set_angle_sensor_static_error", "Write the angle sensor static error", F32("rear_arm_angle_error"), F32("front_arm_angle_error")),

	// WiFi
	get(CmdWiFiConfigMode, "get_wifi_status", "Read whether WiFi configuration mode is on", Bool("enabled")),
	set(CmdWiFiConfigMode, "set_wifi_status", "Switch WiFi configuration mode", Bool("enable")),
	get(CmdWiFiSSID, "get_wifi_ssid", "Read the WiFi SSID", Str("ssid", 0)),
	set(CmdWiFiSSID, "set_wifi_ssid", "Write the WiFi SSID", Str("ssid", 0)),
	get(CmdWiFiPassword, "get_wifi_password", "Read the WiFi password", Str("password", 0)),
	set(CmdWiFiPassword, "set_wifi_password", "Write the WiFi password", Str("password", 0)),
	get(CmdWiFiIPAddress, "get_wifi_address", "Read the WiFi IP address", ipv4DHCP),
	set(CmdWiFiIPAddress, "set_wifi_address", "Write the WiFi IP address", ipv4DHCP),
	get(CmdWiFiNetmask, "get_wifi_netmask", "Read the WiFi netmask", ipv4),
	set(CmdWiFiNetmask, "set_wifi_netmask", "Write the WiFi netmask", ipv4),
	get(CmdWiFiGateway, "get_wifi_gateway", "Read the WiFi gateway", ipv4DHCP),
	set(CmdWiFiGateway, "set_wifi_gateway", "Write the WiFi gateway", ipv4DHCP),
	get(CmdWiFiDNS, "get_wifi_dns", "Read the WiFi DNS server", ipv4DHCP),
	set(CmdWiFiDNS, "set_wifi_dns", "Write the WiFi DNS server", ipv4DHCP),
	get(CmdWiFiConnectStatus, "get_wifi_connect_status", "Read whether WiFi is connected", Bool("connected")),

	// Lost step detection
	set(CmdLostStepParams, "set_lost_step_params", "Write the lost step threshold", F32("threshold")),
	set(CmdLostStepCmd, "set_lost_step_command", "Run lost step detection"),

	// Queue control
	set(CmdQueueStartExec, "start_queue", "Start executing the command queue"),
	set(CmdQueueStopExec, "stop_queue", "Stop the command queue after the current command"),
	set(CmdQueueForceStopExec, "force_stop_queue", "Stop the command queue immediately"),
	set(CmdQueueStartDownload, "start_queue_download", "Start downloading the queue for offline execution", U32("total_loop"), U32("line_per_loop")),
	set(CmdQueueStopDownload, "stop_queue_download", "Stop downloading the queue"),
	set(CmdQueueClear, "clear_queue", "Clear the command queue"),
	get(CmdQueueCurrentIndex, "get_current_queue_index", "Read the index of the executing queued command", U64("queued_index")),
}
