package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// ActivityLog appends operation records to a Firestore collection.
type ActivityLog struct {
	client     *firestore.Client
	collection string
}

// NewActivityLog returns an ActivityLog writing to collection in projectID.
func NewActivityLog(ctx context.Context, projectID, collection string) (*ActivityLog, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ActivityLog{client: client, collection: collection}, nil
}

// Record stores rec under its ID.
func (a *ActivityLog) Record(ctx context.Context, rec models.ActivityRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("activity record has no id")
	}
	if _, err := a.client.Collection(a.collection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write activity record %s: %w", rec.ID, err)
	}
	return nil
}

// Close releases the Firestore client.
func (a *ActivityLog) Close() error {
	return a.client.Close()
}
