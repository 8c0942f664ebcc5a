// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

/*
Package archive keeps the terminal metrics of finished evaluation runs in
BadgerDB.

A Recorder is registered on the evaluator as a queued EvaluatorListener. When
a run fires its done event the Recorder flattens the metrics snapshot into a
Run and stores it under the run identifier:

	store, err := archive.Open(archive.Config{Path: "/data/archive"})
	if err != nil {
	    return err
	}
	defer store.Close()

	controller.AddEvaluatorListener(archive.NewRecorder(store, logger))

Runs are stored as JSON (goccy/go-json) under "run:<id>" keys. List returns
them newest first.

Because registering a Recorder makes the controller see an evaluator
listener, text backups are only written alongside the archive when
evaluator.backup_enabled is set.
*/
package archive
