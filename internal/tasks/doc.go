// Package tasks runs background downloads of archive tracks.
//
// # Orchestration
//
// [Orchestrator] owns every in-flight [Task]. All task bookkeeping happens on a single goroutine;
// public operations and transport callbacks post work to it, so the task table has one writer.
//
//  1. [Orchestrator.Start] : begins a transfer unless one is already active for the URL
//  2. [Orchestrator.Pause] / [Orchestrator.Resume] : suspend and continue without losing bytes
//  3. [Orchestrator.Cancel] : aborts the transfer and forgets the task before returning
//
// Completed and failed tasks stay visible for a grace period and are then purged.
//
// # Transport
//
// A [Transport] moves the bytes. [HTTPTransport] writes into a .part file under a temp directory and
// resumes with a Range request after a pause.
//
// # Notifications
//
// Finished downloads are announced as [Completion] values on a [Subscription]. The orchestrator does
// not touch the record store; [PersistCompletions] is the consumer that marks records downloaded.
// [Orchestrator.Updates] carries [ProgressUpdate] snapshots for interfaces. Updates use select with
// default so a slow reader never stalls the loop.
package tasks
