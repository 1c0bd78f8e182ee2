// Package dispatch turns translation requests into provider submissions.
//
// It maps the input file category to a per-format output profile (viewer
// derivatives, extraction options, timeout ceiling), persists the job in
// pending state with the input reference encrypted at rest, and submits
// the translation to the remote conversion service.
package dispatch
