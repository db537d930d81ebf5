// Taganrog Catalog
// Copyright (c) 2026 The Taganrog Catalog Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Taganrog Catalog.
//
// Taganrog Catalog is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Taganrog Catalog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Taganrog Catalog.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/afero"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/taganrog-go/catalog/pkg/catalog/engine"
	"github.com/taganrog-go/catalog/pkg/catalog/store"
	"github.com/taganrog-go/catalog/pkg/catalog/vault"
	"github.com/taganrog-go/catalog/pkg/catalog/walog"
	"github.com/taganrog-go/catalog/pkg/config"
	"github.com/taganrog-go/catalog/pkg/httpapi"
)

func main() {
	workdir := flag.String("workdir", ".", "catalog root directory: holds the log, uploads and thumbnails")
	asDaemon := flag.Bool("daemon", false, "run without pretty console logging")
	importDir := flag.String("import", "", "walk a directory and ingest every file it contains, then exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		os.Exit(0)
	}

	abs, err := filepath.Abs(*workdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve workdir: %v\n", err)
		os.Exit(1)
	}

	logWriters := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if *asDaemon {
		logWriters = []io.Writer{os.Stderr}
	}
	if err := initLogging(abs, logWriters); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	cfgDefaults := config.BaseDefaults
	cfgDefaults.Workdir = abs
	cfg, err := config.NewConfig(abs, cfgDefaults)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}
	cfg.SetDebugLogging(cfg.DebugLogging())

	osFs := afero.NewOsFs()
	v := vault.New(osFs, cfg.Workdir(), log.Logger)
	if err := v.EnsureDirs(); err != nil {
		log.Error().Err(err).Msg("failed to create vault directories")
		os.Exit(1)
	}

	logPath := filepath.Join(cfg.Workdir(), "taganrog.db.json")
	wal, err := walog.Open(osFs, logPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open log")
		os.Exit(1)
	}
	defer func() {
		if err := wal.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close log")
		}
	}()

	records, err := walog.Replay(osFs, logPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to replay log")
		os.Exit(1)
	}

	eng := engine.New(wal, log.Logger)
	if err := eng.Start(records); err != nil {
		log.Error().Err(err).Msg("failed to replay catalog state")
		os.Exit(1)
	}
	log.Info().Int("media", len(eng.Export())).Msg("catalog loaded")

	if *importDir != "" {
		if err := runImport(eng, v, *importDir); err != nil {
			log.Error().Err(err).Msg("import failed")
			os.Exit(1)
		}
		os.Exit(0)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer close(sigs)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigs
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	srv := httpapi.New(eng, v, cfg, log.Logger)
	if err := srv.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

func initLogging(workdir string, writers []io.Writer) error {
	logsDir := filepath.Join(workdir, config.LogsDir)
	if err := os.MkdirAll(logsDir, 0o750); err != nil {
		return err
	}

	allWriters := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(logsDir, config.LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}
	allWriters = append(allWriters, writers...)

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = log.Output(io.MultiWriter(allWriters...)).
		With().Timestamp().Caller().Logger()
	return nil
}

// runImport walks dir and catalogs every regular file it contains by path
// reference (no bytes are copied), cataloging anything not already known
// by content hash. dir must resolve under the catalog workdir, per
// FileVault.IngestByPath's path-escape rule.
func runImport(eng *engine.Engine, v *vault.Vault, dir string) error {
	ctx := context.Background()
	var ingested, skipped int

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		cand, err := v.IngestByPath(ctx, path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipped file during import")
			skipped++
			return nil
		}

		_, res, err := eng.CreateMedia(store.Media{
			ID:          cand.Hash,
			Filename:    cand.Filename,
			ContentType: cand.ContentType,
			Size:        cand.Size,
			Location:    cand.Location,
			CreatedAt:   time.Now().UTC(),
			WasUploaded: false,
		})
		if err != nil {
			return fmt.Errorf("catalog %q: %w", path, err)
		}
		if res == store.Inserted {
			ingested++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("ingested", ingested).Int("skipped", skipped).Msg("import complete")
	return nil
}
