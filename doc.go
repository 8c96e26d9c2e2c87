/*
Package project-portal keeps a project status dashboard in sync with a Google
Sheets spreadsheet-of-record.

Edits to the projects worksheet are reconciled into a PostgREST-style backing
store table keyed by project serial, and the dashboard viewer reads the store
through a TTL'd snapshot cache so that rendering never issues per-render
network calls and survives transient backing store outages.

project-portal can be used from the command line but is really intended to be
run as a daemon (watch) alongside the viewer API (serve).

project-portal supports the following commands:

  - authorise, to authorise application access to the projects worksheet
  - get, to download the projects worksheet as a TSV file
  - sync, to run a single worksheet/backing store reconciliation
  - watch, to reconcile continuously on edit and on a fixed interval
  - serve, to expose the cached project records over HTTP for the viewer
  - version
*/
package portal
