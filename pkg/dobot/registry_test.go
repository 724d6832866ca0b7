// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"errors"
	"testing"
)

func TestDefaultRegistry_Builds(t *testing.T) {
	r := DefaultRegistry()
	if r.Len() != len(commandTable) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(commandTable))
	}
	if r != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestDefaultRegistry_Lookup(t *testing.T) {
	tests := []struct {
		name      string
		id        uint8
		write     bool
		queueable bool
	}{
		{"get_device_id", CmdDeviceID, false, false},
		{"get_device_name", CmdDeviceName, false, false},
		{"set_device_name", CmdDeviceName, true, false},
		{"get_pose", CmdPose, false, false},
		{"set_io_do", CmdIODO, true, true},
		{"get_io_do", CmdIODO, false, false},
		{"set_jog_common_params", CmdJogCommonParams, true, true},
		{"set_jog_command", CmdJogCmd, true, true},
		{"set_point_to_point_common_params", CmdPTPCommonParams, true, true},
		{"set_point_to_point_command", CmdPTPCmd, true, true},
		{"set_continuous_trajectory_params", CmdCPParams, true, true},
		{"force_stop_queue", CmdQueueForceStopExec, true, false},
		{"get_current_queue_index", CmdQueueCurrentIndex, false, false},
	}

	r := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, ok := r.Lookup(tt.name)
			if !ok {
				t.Fatalf("Lookup(%q) missing", tt.name)
			}
			if spec.ID != tt.id || spec.Write != tt.write || spec.Queueable != tt.queueable {
				t.Errorf("Lookup(%q) = id %d write %v queueable %v, want %d %v %v",
					tt.name, spec.ID, spec.Write, spec.Queueable, tt.id, tt.write, tt.queueable)
			}
			byKey, ok := r.LookupKey(tt.id, tt.write)
			if !ok || byKey != spec {
				t.Errorf("LookupKey(%d, %v) = %v, want %q", tt.id, tt.write, byKey, tt.name)
			}
		})
	}
}

func TestRegistry_CommandUnknown(t *testing.T) {
	_, err := DefaultRegistry().Command("fly_to_the_moon")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Command() error = %v, want ErrUnknownCommand", err)
	}
	if _, ok := DefaultRegistry().Lookup("fly_to_the_moon"); ok {
		t.Error("Lookup() should miss")
	}
}

func TestRegistry_ByID(t *testing.T) {
	specs := DefaultRegistry().ByID(CmdDeviceName)
	if len(specs) != 2 {
		t.Fatalf("ByID(%d) returned %d commands, want 2", CmdDeviceName, len(specs))
	}
	if specs[0].Name != "get_device_name" || specs[1].Name != "set_device_name" {
		t.Errorf("ByID() = %s, %s", specs[0].Name, specs[1].Name)
	}
	if len(DefaultRegistry().ByID(255)) != 0 {
		t.Error("ByID(255) should be empty")
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	_, err := NewRegistry([]CommandSpec{
		get(1, "a", ""),
		set(2, "a", ""),
	})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Errorf("NewRegistry() error = %v, want ErrDuplicateCommand", err)
	}
}

func TestRegistry_DuplicateKey(t *testing.T) {
	// Two setters on one id, as in a mistyped table
	_, err := NewRegistry([]CommandSpec{
		set(73, "set_jog_common_params", ""),
		set(73, "set_jog_command", ""),
	})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Errorf("NewRegistry() error = %v, want ErrDuplicateCommand", err)
	}
}

func TestRegistry_GetterAndSetterShareID(t *testing.T) {
	r, err := NewRegistry([]CommandSpec{
		get(1, "get_x", "", U8("x")),
		set(1, "set_x", "", U8("x")),
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_InvalidSchema(t *testing.T) {
	_, err := NewRegistry([]CommandSpec{set(1, "bad", "", Str("name", 0), U8("after"))})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("NewRegistry() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestMustNewRegistry_Panic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNewRegistry() should panic on duplicates")
		}
	}()
	MustNewRegistry([]CommandSpec{get(1, "a", ""), get(1, "b", "")})
}

func TestRegistry_AllAndNames(t *testing.T) {
	r := DefaultRegistry()
	all := r.All()
	if len(all) != r.Len() || all[0].Name != "get_device_serial_number" {
		t.Errorf("All() first = %s, len %d", all[0].Name, len(all))
	}
	names := r.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted at %d: %s >= %s", i, names[i-1], names[i])
		}
	}
}

func TestCommandSpec_Control(t *testing.T) {
	r := DefaultRegistry()
	setIODO, _ := r.Lookup("set_io_do")
	getPose, _ := r.Lookup("get_pose")

	if got := setIODO.DefaultControl(); got != ControlWrite|ControlQueued {
		t.Errorf("set_io_do DefaultControl() = 0x%02X, want 0x03", got)
	}
	if got := setIODO.Control(false); got != ControlWrite {
		t.Errorf("set_io_do Control(false) = 0x%02X, want 0x01", got)
	}
	if got := getPose.DefaultControl(); got != 0 {
		t.Errorf("get_pose DefaultControl() = 0x%02X, want 0x00", got)
	}
}

func TestCommandSpec_ReplySchema(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("set_homing_parameters")
	if got := spec.ReplySchema(ControlWrite | ControlQueued); len(got) != 1 || got[0].Kind != KindU64 {
		t.Errorf("queued ReplySchema() = %s, want [queued_index:u64]", got)
	}
	if got := spec.ReplySchema(ControlWrite); len(got) != 0 {
		t.Errorf("ReplySchema() = %s, want empty", got)
	}
}

func TestCommandTable_Schemas(t *testing.T) {
	tests := []struct {
		name     string
		request  int
		response int
	}{
		{"get_pose", 0, 32},
		{"set_point_to_point_command", 17, 0},
		{"set_jog_joint_params", 32, 0},
		{"set_arc_command", 32, 0},
		{"set_trigger_command", 5, 0},
		{"set_extended_motor_velocity", 6, 0},
		{"get_io_adc", 1, 3},
		{"get_device_version", 0, 3},
		{"get_device_id", 0, 0},
		{"set_continuous_trajectory_params", 13, 0},
		{"start_queue_download", 8, 0},
		{"get_current_queue_index", 0, 8},
	}

	r := DefaultRegistry()
	for _, tt := range tests {
		spec, ok := r.Lookup(tt.name)
		if !ok {
			t.Errorf("Lookup(%q) missing", tt.name)
			continue
		}
		if spec.Request.MinSize() != tt.request || spec.Response.MinSize() != tt.response {
			t.Errorf("%s sizes = %d/%d, want %d/%d", tt.name,
				spec.Request.MinSize(), spec.Response.MinSize(), tt.request, tt.response)
		}
	}
}
