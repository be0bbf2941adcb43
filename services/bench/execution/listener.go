// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
)

// Status is the terminal state of a finished node.
type Status int

const (
	StatusSuccessful Status = iota
	StatusFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSuccessful:
		return "successful"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome attached to a finished event.
type Result struct {
	Status Status
	Err    error
}

// Successful returns a successful result.
func Successful() Result {
	return Result{Status: StatusSuccessful}
}

// Failed returns a failed result carrying err.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Aborted returns an aborted result carrying err.
func Aborted(err error) Result {
	return Result{Status: StatusAborted, Err: err}
}

func (r Result) String() string {
	if r.Err == nil {
		return r.Status.String()
	}
	return r.Status.String() + ": " + r.Err.Error()
}

// Listener receives hierarchical execution events.
//
// Every node reported as started receives exactly one finished event.
// Skipped nodes are never started. Calls are made from one goroutine at a
// time.
type Listener interface {
	ExecutionStarted(n *descriptor.Node)
	ExecutionSkipped(n *descriptor.Node, reason string)
	ExecutionFinished(n *descriptor.Node, result Result)
}

// EventType names a recorded event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventSkipped  EventType = "skipped"
	EventFinished EventType = "finished"
)

// Event is one recorded listener call.
type Event struct {
	Type   EventType `json:"type"`
	Node   string    `json:"node"`
	Kind   string    `json:"kind"`
	Name   string    `json:"name"`
	Reason string    `json:"reason,omitempty"`
	Status string    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// Result is the full finished result; not serialized.
	Result Result `json:"-"`
}

// String renders "type name" plus the reason or status.
func (e Event) String() string {
	switch e.Type {
	case EventSkipped:
		return fmt.Sprintf("skipped %s: %s", e.Name, e.Reason)
	case EventFinished:
		return fmt.Sprintf("finished %s: %s", e.Name, e.Status)
	default:
		return fmt.Sprintf("%s %s", e.Type, e.Name)
	}
}

// NewEvent converts a listener call to an Event.
func NewEvent(typ EventType, n *descriptor.Node, reason string, result Result) Event {
	e := Event{
		Type:   typ,
		Node:   n.Key(),
		Kind:   n.Kind.String(),
		Name:   n.DisplayName,
		Reason: reason,
	}
	if typ == EventFinished {
		e.Status = result.Status.String()
		e.Result = result
		if result.Err != nil {
			e.Error = result.Err.Error()
		}
	}
	return e
}

// ListenerFuncs adapts a single event callback to a Listener.
type ListenerFuncs func(Event)

func (f ListenerFuncs) ExecutionStarted(n *descriptor.Node) {
	f(NewEvent(EventStarted, n, "", Result{}))
}

func (f ListenerFuncs) ExecutionSkipped(n *descriptor.Node, reason string) {
	f(NewEvent(EventSkipped, n, reason, Result{}))
}

func (f ListenerFuncs) ExecutionFinished(n *descriptor.Node, result Result) {
	f(NewEvent(EventFinished, n, "", result))
}

// Recorder is a Listener that keeps every event.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) ExecutionStarted(n *descriptor.Node) {
	r.record(NewEvent(EventStarted, n, "", Result{}))
}

func (r *Recorder) ExecutionSkipped(n *descriptor.Node, reason string) {
	r.record(NewEvent(EventSkipped, n, reason, Result{}))
}

func (r *Recorder) ExecutionFinished(n *descriptor.Node, result Result) {
	r.record(NewEvent(EventFinished, n, "", result))
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Strings returns Event.String for every recorded event.
func (r *Recorder) Strings() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// Multi fans events out to several listeners in order.
type Multi []Listener

func (m Multi) ExecutionStarted(n *descriptor.Node) {
	for _, l := range m {
		l.ExecutionStarted(n)
	}
}

func (m Multi) ExecutionSkipped(n *descriptor.Node, reason string) {
	for _, l := range m {
		l.ExecutionSkipped(n, reason)
	}
}

func (m Multi) ExecutionFinished(n *descriptor.Node, result Result) {
	for _, l := range m {
		l.ExecutionFinished(n, result)
	}
}
