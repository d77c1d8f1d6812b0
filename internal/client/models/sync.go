package models

// SyncStatus is the snapshot published while a sync pass runs.
type SyncStatus struct {
	IsSyncing       bool
	TotalItems      int
	CompletedItems  int
	ProgressPercent int
	Error           string
}

// PassReport summarises one finished sync pass.
type PassReport struct {
	Total    int
	Uploaded int
	Failed   int
	// Parked counts items moved to the error state after hitting the retry cap.
	Parked int
}
