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
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wardenos/warden/pkg/auth"
	"github.com/wardenos/warden/pkg/fs"
	"github.com/wardenos/warden/pkg/ramfs"
)

// churnCmd implements subcommands.Command for the "churn" command.
type churnCmd struct {
	workers int
	rounds  int
}

// Name implements subcommands.Command.Name.
func (*churnCmd) Name() string {
	return "churn"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*churnCmd) Synopsis() string {
	return "hammer a writable ramfs with concurrent create/rename/remove cycles"
}

// Usage implements subcommands.Command.Usage.
func (*churnCmd) Usage() string {
	return `churn [-workers N] [-rounds N]

Runs concurrent create/rename/remove cycles against a writable ramfs, one
directory per worker, then prints the namespace operation counters.

`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *churnCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 4, "number of concurrent workers")
	f.IntVar(&c.rounds, "rounds", 1000, "create/rename/remove cycles per worker")
}

// Execute implements subcommands.Command.Execute.
func (c *churnCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx := auth.ContextWithCredentials(context.Background(), auth.NewRootCredentials())

	msrc := fs.NewCachingMountSource("ramfs", fs.MountSourceFlags{})
	mns := fs.NewMountNamespace(ramfs.NewRootInode(msrc, fs.RootOwner, fs.FilePermsFromMode(0755)))
	defer mns.DecRef()
	root := mns.Root()
	defer root.DecRef()

	var g errgroup.Group
	for i := 0; i < c.workers; i++ {
		name := fmt.Sprintf("w%02d", i)
		if err := root.CreateDirectory(ctx, root, name, fs.FilePermsFromMode(0755)); err != nil {
			logrus.WithError(err).WithField("dir", name).Error("creating worker directory")
			return subcommands.ExitFailure
		}
		dir, err := root.Walk(ctx, root, name)
		if err != nil {
			logrus.WithError(err).WithField("dir", name).Error("walking worker directory")
			return subcommands.ExitFailure
		}

		g.Go(func() error {
			defer dir.DecRef()
			for r := 0; r < c.rounds; r++ {
				file, err := dir.Create(ctx, root, "data", fs.FileFlags{Write: true}, fs.FilePermsFromMode(0644))
				if err != nil {
					return fmt.Errorf("create: %w", err)
				}
				file.DecRef()
				if err := fs.Rename(ctx, root, dir, "data", dir, "renamed"); err != nil {
					return fmt.Errorf("rename: %w", err)
				}
				if err := dir.Remove(ctx, root, "renamed"); err != nil {
					return fmt.Errorf("remove: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("churn failed")
		return subcommands.ExitFailure
	}

	if err := dumpMetrics(os.Stdout); err != nil {
		logrus.WithError(err).Error("gathering metrics")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// dumpMetrics writes the namespace operation counters to w.
func dumpMetrics(w io.Writer) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "warden_fs_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s %v\n", mf.GetName(), m.GetCounter().GetValue())
		}
	}
	return nil
}
