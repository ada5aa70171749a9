package models

import "time"

// Activity statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Access methods recorded in the activity log.
const (
	AccessCLI      = "cli"
	AccessFunction = "function"
)

// ActivityRecord is one entry of the operation activity log in Firestore.
type ActivityRecord struct {
	ID             string    `firestore:"id"`
	Operation      string    `firestore:"operation"`
	Inputs         []string  `firestore:"inputs"`
	Output         string    `firestore:"output,omitempty"`
	Pages          string    `firestore:"pages,omitempty"`
	Status         string    `firestore:"status"`
	ErrorKind      string    `firestore:"errorKind,omitempty"`
	ErrorDetails   string    `firestore:"errorDetails,omitempty"`
	ExitCode       int       `firestore:"exitCode"`
	DurationMillis int64     `firestore:"durationMillis"`
	AccessMethod   string    `firestore:"accessMethod"`
	CreatedAt      time.Time `firestore:"createdAt"`
}
