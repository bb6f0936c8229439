package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/infra/database/models"
)

// PostRepository owns persistence for posts and their edges. external_id is
// the stable dedup key: hydration always lands on the existing row.
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) GetPost(ctx context.Context, serviceID, externalID string) (domain.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND external_id = ?", serviceID, externalID).
		Take(&post).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Post{}, domain.NotFoundError{Resource: "post"}
	}
	if err != nil {
		return domain.Post{}, errors.Wrap(err, "fetch post")
	}
	return postToDomain(post), nil
}

// PostOrPlaceholder returns the post for an external id, creating an
// unhydrated placeholder row if none exists yet.
func (r *PostRepository) PostOrPlaceholder(ctx context.Context, serviceID, externalID string) (domain.Post, error) {
	placeholder := models.Post{
		ID:         uuid.NewString(),
		ServiceID:  serviceID,
		ExternalID: externalID,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(&placeholder).Error
	if err != nil {
		return domain.Post{}, errors.Wrap(err, "create placeholder post")
	}

	return r.GetPost(ctx, serviceID, externalID)
}

// HydratePost fills poster/timestamp/text/payload onto the row for an
// external id, creating it first if needed. Hydrating the same external id
// twice updates one row; it never creates a second.
func (r *PostRepository) HydratePost(ctx context.Context, serviceID, externalID string, posterID string, when time.Time, text string, more *string) (domain.Post, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder := models.Post{
			ID:         uuid.NewString(),
			ServiceID:  serviceID,
			ExternalID: externalID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&placeholder).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Post{}).
			Where("service_id = ? AND external_id = ?", serviceID, externalID).
			Updates(map[string]any{
				"poster_id": posterID,
				"when":      when,
				"text":      text,
				"more":      more,
			}).Error
	})
	if err != nil {
		return domain.Post{}, errors.Wrap(err, "hydrate post")
	}

	return r.GetPost(ctx, serviceID, externalID)
}

// SetTombstone marks the post for an external id as deleted, creating a
// placeholder first if the post was never seen. Idempotent.
func (r *PostRepository) SetTombstone(ctx context.Context, serviceID, externalID string) (domain.Post, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder := models.Post{
			ID:         uuid.NewString(),
			ServiceID:  serviceID,
			ExternalID: externalID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&placeholder).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Post{}).
			Where("service_id = ? AND external_id = ?", serviceID, externalID).
			Updates(map[string]any{
				"tombstone": true,
				"text":      nil,
			}).Error
	})
	if err != nil {
		return domain.Post{}, errors.Wrap(err, "tombstone post")
	}

	return r.GetPost(ctx, serviceID, externalID)
}

func (r *PostRepository) GetOrCreatePostRelationship(ctx context.Context, leftID, rightID string, rel domain.PostRelKind) error {
	row := models.PostRelationship{
		ID:      uuid.NewString(),
		LeftID:  leftID,
		RightID: rightID,
		Rel:     string(rel),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "left_id"}, {Name: "right_id"}, {Name: "rel"}},
		DoNothing: true,
	}).Create(&row).Error
	return errors.Wrap(err, "create post relationship")
}

func (r *PostRepository) CreatePostDistribution(ctx context.Context, postID, recipientID string, dist domain.Distribution) error {
	row := models.PostDistribution{
		ID:          uuid.NewString(),
		PostID:      postID,
		RecipientID: recipientID,
		Dist:        string(dist),
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	return errors.Wrap(err, "create post distribution")
}

// UnresolvedPostIDs lists external ids of placeholder posts: referenced but
// never hydrated and not tombstoned. Feeds the requeue sweep.
func (r *PostRepository) UnresolvedPostIDs(ctx context.Context, serviceID string, limit int) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("service_id = ? AND poster_id IS NULL AND tombstone = false", serviceID).
		Order("c_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var ids []string
	if err := query.Pluck("external_id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list unresolved posts")
	}
	return ids, nil
}

// DeleteTombstonedRelationships removes post edges referencing a tombstoned
// post on either side. First scrub phase.
func (r *PostRepository) DeleteTombstonedRelationships(ctx context.Context, serviceID string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM post_relationships
		 WHERE left_id IN (SELECT id FROM posts WHERE service_id = ? AND tombstone = true)
		    OR right_id IN (SELECT id FROM posts WHERE service_id = ? AND tombstone = true)`,
		serviceID, serviceID)
	return result.RowsAffected, errors.Wrap(result.Error, "scrub relationships")
}

// DeleteTombstonedDistributions removes distribution records referencing a
// tombstoned post. Second scrub phase.
func (r *PostRepository) DeleteTombstonedDistributions(ctx context.Context, serviceID string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM post_distributions
		 WHERE post_id IN (SELECT id FROM posts WHERE service_id = ? AND tombstone = true)`,
		serviceID)
	return result.RowsAffected, errors.Wrap(result.Error, "scrub distributions")
}

// ScrubTombstonedContent nulls text and extension payload on tombstoned
// posts in a single bulk update. Third scrub phase.
func (r *PostRepository) ScrubTombstonedContent(ctx context.Context, serviceID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("service_id = ? AND tombstone = true AND (text IS NOT NULL OR more IS NOT NULL)", serviceID).
		Updates(map[string]any{"text": nil, "more": nil})
	return result.RowsAffected, errors.Wrap(result.Error, "scrub content")
}

func postToDomain(row models.Post) domain.Post {
	return domain.Post{
		ID:         row.ID,
		ServiceID:  row.ServiceID,
		ExternalID: row.ExternalID,
		PosterID:   row.PosterID,
		When:       row.When,
		Text:       row.Text,
		Tombstone:  row.Tombstone,
		More:       row.More,
	}
}
