package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// NewClient creates a Firestore client for the given project. If
// credsPath is empty, Application Default Credentials are used (this
// also covers the emulator via FIRESTORE_EMULATOR_HOST).
func NewClient(ctx context.Context, projectID, credsPath string) (*firestore.Client, error) {
	if credsPath == "" {
		return firestore.NewClient(ctx, projectID)
	}
	return firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credsPath))
}
