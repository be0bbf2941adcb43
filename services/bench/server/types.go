// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// DiscoverRequest is the body of POST /v1/bench/discover.
type DiscoverRequest struct {
	Selectors []string `json:"selectors,omitempty"`
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`

	// SourceDir discovers from Go source on the server's filesystem.
	SourceDir string `json:"source_dir,omitempty"`
}

func (r DiscoverRequest) engineRequest() engine.Request {
	return engine.Request{
		Selectors: r.Selectors,
		Include:   r.Include,
		Exclude:   r.Exclude,
		SourceDir: r.SourceDir,
	}
}

// DiscoverResponse describes a discovered tree.
type DiscoverResponse struct {
	Tree     NodeView `json:"tree"`
	Classes  int      `json:"classes"`
	Leaves   int      `json:"leaves"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NodeView is the JSON form of a tree node.
type NodeView struct {
	UniqueID    string            `json:"unique_id"`
	Kind        string            `json:"kind"`
	DisplayName string            `json:"display_name"`
	Params      map[string]string `json:"params,omitempty"`
	Children    []NodeView        `json:"children,omitempty"`
}

// ExecuteRequest is the body of POST /v1/bench/execute and the first
// message of the execute stream.
type ExecuteRequest struct {
	DiscoverRequest

	// Properties override the server's run configuration for this run.
	Properties map[string]string `json:"properties,omitempty"`
}

// ExecuteResponse is the outcome of one run.
type ExecuteResponse struct {
	// Status is "successful", "skipped" or "failed".
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	RunID   string            `json:"run_id,omitempty"`
	Events  []execution.Event `json:"events,omitempty"`
	Results []harness.Result  `json:"results,omitempty"`
}

// StreamMessage is one websocket message of the execute stream.
type StreamMessage struct {
	// Type is "event" or "done".
	Type  string           `json:"type"`
	Event *execution.Event `json:"event,omitempty"`
	Done  *ExecuteResponse `json:"done,omitempty"`
}

// RunSummary lists one stored run.
type RunSummary struct {
	ID      string    `json:"id"`
	Project string    `json:"project,omitempty"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time"`
	OS      string    `json:"os,omitempty"`
	Records int       `json:"records"`
}

// HealthResponse is the body of GET /v1/bench/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

// ErrorResponse is returned with every 4xx and 5xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TreeView converts the subtree under n into its wire form.
func TreeView(tree *descriptor.Tree, n *descriptor.Node) NodeView {
	v := NodeView{
		UniqueID:    n.Key(),
		Kind:        n.Kind.String(),
		DisplayName: n.DisplayName,
	}
	if len(n.Params) > 0 {
		v.Params = n.Params.Map()
	}
	for _, c := range tree.Children(n) {
		v.Children = append(v.Children, TreeView(tree, c))
	}
	return v
}
