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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/wardenos/warden/pkg/auth"
	"github.com/wardenos/warden/pkg/fs"
	"github.com/wardenos/warden/pkg/ramfs"
)

// treeCmd implements subcommands.Command for the "tree" command.
type treeCmd struct{}

// Name implements subcommands.Command.Name.
func (*treeCmd) Name() string {
	return "tree"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*treeCmd) Synopsis() string {
	return "build an in-memory directory skeleton and resolve each path against it"
}

// Usage implements subcommands.Command.Usage.
func (*treeCmd) Usage() string {
	return `tree <subdir> [<subdir>...]

Builds a ramfs directory skeleton containing every given subdir, mounts it
as the root of a namespace, and resolves each path back through the dentry
cache.

`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*treeCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*treeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	ctx := auth.ContextWithCredentials(context.Background(), auth.NewRootCredentials())

	msrc := fs.NewNonCachingMountSource("ramfs", fs.MountSourceFlags{})
	inode, err := ramfs.MakeDirectoryTree(msrc, f.Args())
	if err != nil {
		logrus.WithError(err).Error("building directory tree")
		return subcommands.ExitFailure
	}

	mns := fs.NewMountNamespace(inode)
	defer mns.DecRef()
	root := mns.Root()
	defer root.DecRef()

	for _, p := range f.Args() {
		maxTraversals := uint(fs.DefaultTraversalLimit)
		d, err := mns.FindDentry(ctx, root, nil, p, &maxTraversals)
		if err != nil {
			logrus.WithError(err).WithField("path", p).Error("resolving path")
			return subcommands.ExitFailure
		}
		fmt.Println(d.FullName(root))
		d.DecRef()
	}
	return subcommands.ExitSuccess
}
