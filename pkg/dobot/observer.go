// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"time"

	"github.com/google/uuid"
)

// TransactionEvent describes one completed or failed round trip
type TransactionEvent struct {
	Session  uuid.UUID
	Command  string
	Key      Key
	Control  Control
	Request  []byte // raw request frame
	Response []byte // raw reply frame, nil when none was read
	Started  time.Time
	Duration time.Duration
	Err      error
}

// OK returns true if the transaction succeeded
func (e TransactionEvent) OK() bool {
	return e.Err == nil
}

// Observer receives every transaction of a Conn. ObserveTransaction runs on
// the caller's goroutine while the connection is held, so it must not block.
type Observer interface {
	ObserveTransaction(TransactionEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(TransactionEvent)

// ObserveTransaction calls f(e)
func (f ObserverFunc) ObserveTransaction(e TransactionEvent) {
	f(e)
}

type multiObserver []Observer

func (m multiObserver) ObserveTransaction(e TransactionEvent) {
	for _, o := range m {
		o.ObserveTransaction(e)
	}
}

// MultiObserver fans events out to every non-nil observer
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
