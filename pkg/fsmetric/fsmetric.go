// Copyright 2025 The Warden Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fsmetric defines Prometheus metrics for the filesystem namespace.
package fsmetric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace operation metrics, incremented from pkg/fs hot paths.
var (
	Walks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_walks_total",
		Help: "Number of single-component lookups.",
	})

	WalkCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_walk_cache_hits_total",
		Help: "Number of lookups served from the dentry cache.",
	})

	WalkCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_walk_cache_misses_total",
		Help: "Number of lookups that had to consult the backing store.",
	})

	WalkNegativeHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_walk_negative_hits_total",
		Help: "Number of lookups answered by a cached negative entry.",
	})

	Creates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_creates_total",
		Help: "Number of successful node creations.",
	})

	Removes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_removes_total",
		Help: "Number of successful unlink and rmdir operations.",
	})

	Renames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_fs_renames_total",
		Help: "Number of successful renames.",
	})
)

func init() {
	prometheus.MustRegister(
		Walks,
		WalkCacheHits,
		WalkCacheMisses,
		WalkNegativeHits,
		Creates,
		Removes,
		Renames,
	)
}
