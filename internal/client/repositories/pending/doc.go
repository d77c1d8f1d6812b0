// Package pending is the offline queue: captures that could not reach the
// transport yet, stored in the local SQLite database until a sync pass
// uploads and removes them.
//
// Rows are indexed by owner and by status. A capture never reaches a done
// state here; a successful sync deletes it.
package pending
