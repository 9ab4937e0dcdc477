package repository

import (
	"context"

	"resourcebooking/pkg/db"
	"resourcebooking/pkg/model"
)

const (
	CollectionName = "Resources"
	TableName      = "resources"
)

type ResourceRepository interface {
	// Create assigns ID, Version and CreatedAt.
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	// FindByIDs skips unknown or malformed IDs.
	FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error)
	// FindIDsByName matches fragment case-insensitively anywhere in the name.
	FindIDsByName(ctx context.Context, fragment string) ([]string, error)
	Count(ctx context.Context) (int64, error)
	// Update writes resource only if the stored version still equals
	// resource.Version, then bumps resource.Version.
	Update(ctx context.Context, resource *model.Resource) error
	Delete(ctx context.Context, id string) error

	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}
