// Package taskruns keeps a local journal of executed client tasks.
//
// Every batch passed to RecordTaskRun gets a fresh run id and is written in
// one transaction, so a run is either fully journaled or not at all. The
// vault only remembers the latest state of a task; the journal keeps the
// history, including failure reasons that never leave the client.
package taskruns
