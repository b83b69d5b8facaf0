package main

import "time"

// tickMsg drives the periodic snapshot refresh of the watch view.
type tickMsg time.Time
