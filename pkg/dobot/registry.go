// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"sort"
	"sync"
)

// CommandSpec describes one protocol operation.
//
// ID and Write together form the wire key; Queueable sets the default of the
// queued bit. Request and Response describe the payloads in each direction.
type CommandSpec struct {
	Name      string `json:"name" yaml:"name"`
	ID        uint8  `json:"id" yaml:"id"`
	Write     bool   `json:"write" yaml:"write"`
	Queueable bool   `json:"queueable" yaml:"queueable"`
	Request   Schema `json:"request" yaml:"request"`
	Response  Schema `json:"response" yaml:"response"`
	Summary   string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Key returns the (id, direction) pair of the command
func (c *CommandSpec) Key() Key {
	return Key{ID: c.ID, Write: c.Write}
}

// Control returns the control byte for a call, with the queued bit
// set only when queue is true.
func (c *CommandSpec) Control(queue bool) Control {
	var ctrl Control
	if c.Write {
		ctrl |= ControlWrite
	}
	if queue {
		ctrl |= ControlQueued
	}
	return ctrl
}

// DefaultControl returns the control byte used when the caller does not override it
func (c *CommandSpec) DefaultControl() Control {
	return c.Control(c.Queueable)
}

// QueueIndexSchema is the reply layout of a command accepted into the device queue
var QueueIndexSchema = Schema{U64("queued_index")}

// ReplySchema returns the schema a reply to ctrl decodes against
func (c *CommandSpec) ReplySchema(ctrl Control) Schema {
	if ctrl&ControlQueued != 0 {
		return QueueIndexSchema
	}
	return c.Response
}

// Registry is a read-only command table indexed by name and by key.
// It is safe for concurrent use once built.
type Registry struct {
	byName map[string]*CommandSpec
	byKey  map[Key]*CommandSpec
	order  []*CommandSpec
}

// NewRegistry builds a registry from specs.
//
// Fails with ErrDuplicateCommand when two specs share a name or a key, and
// with ErrSchemaMismatch when a schema puts a variable-length field anywhere
// but last.
func NewRegistry(specs []CommandSpec) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*CommandSpec, len(specs)),
		byKey:  make(map[Key]*CommandSpec, len(specs)),
		order:  make([]*CommandSpec, 0, len(specs)),
	}

	for i := range specs {
		spec := specs[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrSchemaMismatch, i)
		}
		if prev, ok := r.byName[spec.Name]; ok {
			return nil, fmt.Errorf("%w: name %q used by %s and %s", ErrDuplicateCommand, spec.Name, prev.Key(), spec.Key())
		}
		if prev, ok := r.byKey[spec.Key()]; ok {
			return nil, fmt.Errorf("%w: %s used by %q and %q", ErrDuplicateCommand, spec.Key(), prev.Name, spec.Name)
		}
		if err := spec.Request.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s request: %v", ErrSchemaMismatch, spec.Name, err)
		}
		if err := spec.Response.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s response: %v", ErrSchemaMismatch, spec.Name, err)
		}

		r.byName[spec.Name] = &spec
		r.byKey[spec.Key()] = &spec
		r.order = append(r.order, &spec)
	}

	return r, nil
}

// MustNewRegistry is NewRegistry for static tables; it panics on error.
func MustNewRegistry(specs []CommandSpec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of every known Dobot Magician command.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = MustNewRegistry(commandTable)
	})
	return defaultRegistry
}

// Lookup returns the command with the given name
func (r *Registry) Lookup(name string) (*CommandSpec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// Command is Lookup returning ErrUnknownCommand on a miss
func (r *Registry) Command(name string) (*CommandSpec, error) {
	spec, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return spec, nil
}

// LookupKey returns the command sent with the given id and direction
func (r *Registry) LookupKey(id uint8, write bool) (*CommandSpec, bool) {
	spec, ok := r.byKey[Key{ID: id, Write: write}]
	return spec, ok
}

// ByID returns every command using id, getter first. The id alone does not
// identify a command; use LookupKey when the direction is known.
func (r *Registry) ByID(id uint8) []*CommandSpec {
	var out []*CommandSpec
	if spec, ok := r.byKey[Key{ID: id}]; ok {
		out = append(out, spec)
	}
	if spec, ok := r.byKey[Key{ID: id, Write: true}]; ok {
		out = append(out, spec)
	}
	return out
}

// All returns every command in table order
func (r *Registry) All() []*CommandSpec {
	out := make([]*CommandSpec, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns every command name, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of commands
func (r *Registry) Len() int {
	return len(r.order)
}
