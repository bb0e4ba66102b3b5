package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"myblog-restful/auth"
	"myblog-restful/media"
	"myblog-restful/models"
	"myblog-restful/repositories"

	"gorm.io/gorm"
)

// The PostService interface defines the methods that post services need to implement
type PostService interface {
	CreatePost(ctx context.Context, caller *auth.Principal, input *CreatePostInput) (*models.Post, error)
	GetPosts() ([]models.Post, error)
	GetPost(id uint) (*models.Post, error)
	UpdatePost(ctx context.Context, caller *auth.Principal, id uint, input *UpdatePostInput) (*models.Post, string, error)
	DeletePost(ctx context.Context, caller *auth.Principal, id uint) (string, error)
	PreviewOrphans(ctx context.Context, caller *auth.Principal) (*OrphanReport, error)
	CleanupOrphans(ctx context.Context, caller *auth.Principal) (*CleanupReport, error)
	DeleteImage(ctx context.Context, caller *auth.Principal, publicID, coverURL string) (string, error)
}

// --- Structs for Input/Output ---

type CreatePostInput struct {
	Title   string
	Summary string
	Content string
	// Cover image, required on creation.
	CoverFilename string
	CoverFile     io.Reader
}

type UpdatePostInput struct {
	Title   string
	Summary string
	Content string
	// Replacement cover; both nil/empty when the cover stays as-is.
	CoverFilename string
	CoverFile     io.Reader
}

// OrphanReport is the preview variant: what would be deleted, without
// deleting anything.
type OrphanReport struct {
	TotalImages   int           `json:"totalImages"`
	OrphanedCount int           `json:"orphanedCount"`
	Orphaned      []media.Asset `json:"orphanedImages"`
	TotalBytes    int64         `json:"totalBytes"`
}

// CleanupReport is what the execute variant actually did. Per-object delete
// failures are collected, never fatal.
type CleanupReport struct {
	TotalImages   int           `json:"totalImages"`
	OrphanedCount int           `json:"orphanedCount"`
	Deleted       []string      `json:"deletedImages"`
	Errors        []SweepError  `json:"errors"`
	Orphaned      []media.Asset `json:"orphanedImages"`
}

type SweepError struct {
	PublicID string `json:"public_id"`
	Error    string `json:"error"`
}

// The postService structure is the implementation of the PostService interface
type postService struct {
	repo     repositories.PostRepository
	host     media.Host
	resolver *media.Resolver
}

var _ PostService = (*postService)(nil)

// NewPostService creates a new PostService instance
func NewPostService(repo repositories.PostRepository, host media.Host, resolver *media.Resolver) PostService {
	return &postService{repo: repo, host: host, resolver: resolver}
}

// CreatePost uploads the cover and stores the post under the caller's
// identity. Readers cannot create posts.
func (s *postService) CreatePost(ctx context.Context, caller *auth.Principal, input *CreatePostInput) (*models.Post, error) {
	if !auth.CanCreatePost(caller) {
		return nil, fmt.Errorf("%w: readers cannot create posts", ErrForbidden)
	}
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.CoverFile == nil {
		return nil, fmt.Errorf("%w: no image file provided", ErrValidation)
	}

	coverURL, err := s.host.Upload(ctx, input.CoverFilename, input.CoverFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	post := models.Post{
		Title:    input.Title,
		Summary:  input.Summary,
		Content:  input.Content,
		Cover:    coverURL,
		AuthorID: caller.ID,
	}

	if err := s.repo.Create(&post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	created, err := s.repo.FindByID(post.ID)
	if err != nil {
		return &post, nil
	}
	return created, nil
}

// GetPosts lists the 20 most recent posts with the author's username.
func (s *postService) GetPosts() ([]models.Post, error) {
	posts, err := s.repo.FindRecent(20)
	if err != nil {
		return nil, fmt.Errorf("database error retrieving posts: %w", err)
	}
	return posts, nil
}

// GetPost fetches a single post by id.
func (s *postService) GetPost(id uint) (*models.Post, error) {
	post, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post", ErrNotFound)
		}
		return nil, fmt.Errorf("database error retrieving post: %w", err)
	}
	return post, nil
}

// UpdatePost edits a post. Only its author or an admin may edit; the author
// reference itself never changes. When a replacement cover arrives, the old
// one is destroyed on the host after the new upload succeeds; a failed
// destroy is reported as a warning but never blocks the update.
func (s *postService) UpdatePost(ctx context.Context, caller *auth.Principal, id uint, input *UpdatePostInput) (*models.Post, string, error) {
	post, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: post", ErrNotFound)
		}
		return nil, "", fmt.Errorf("database error retrieving post: %w", err)
	}

	if !auth.CanEditPost(caller, post) {
		return nil, "", fmt.Errorf("%w: not the author", ErrForbidden)
	}

	warning := ""
	if input.CoverFile != nil {
		newCover, err := s.host.Upload(ctx, input.CoverFilename, input.CoverFile)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrExternalService, err)
		}

		if oldID, ok := s.resolver.PublicIDFromURL(post.Cover); ok {
			if _, err := s.host.Destroy(ctx, oldID); err != nil {
				warning = fmt.Sprintf("old cover %s could not be deleted: %v", oldID, err)
			}
		}
		post.Cover = newCover
	}

	post.Title = input.Title
	post.Summary = input.Summary
	post.Content = input.Content

	if err := s.repo.Update(post); err != nil {
		return nil, "", fmt.Errorf("failed to save post updates: %w", err)
	}

	return post, warning, nil
}

// DeletePost removes a post and its cover from the media host. Admin only.
// The two steps are not atomic: a failed media destroy still lets the record
// delete proceed and is surfaced as a warning (the reconciliation sweep picks
// up the leftover).
func (s *postService) DeletePost(ctx context.Context, caller *auth.Principal, id uint) (string, error) {
	post, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: post", ErrNotFound)
		}
		return "", fmt.Errorf("database error retrieving post: %w", err)
	}

	if !auth.CanDeletePost(caller, post) {
		return "", fmt.Errorf("%w: only admins can delete posts", ErrForbidden)
	}

	warning := ""
	if publicID, ok := s.resolver.PublicIDFromURL(post.Cover); ok {
		if _, err := s.host.Destroy(ctx, publicID); err != nil {
			warning = fmt.Sprintf("cover %s could not be deleted: %v", publicID, err)
		}
	}

	if err := s.repo.Delete(post); err != nil {
		return "", fmt.Errorf("failed to delete post: %w", err)
	}

	return warning, nil
}

// orphans lists all host assets under the folder and returns those whose URL
// no post references.
func (s *postService) orphans(ctx context.Context) ([]media.Asset, int, error) {
	assets, err := s.host.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	covers, err := s.repo.AllCovers()
	if err != nil {
		return nil, 0, fmt.Errorf("database error listing covers: %w", err)
	}

	used := make(map[string]struct{}, len(covers))
	for _, c := range covers {
		used[c] = struct{}{}
	}

	orphaned := make([]media.Asset, 0)
	for _, asset := range assets {
		if _, ok := used[asset.URL]; !ok {
			orphaned = append(orphaned, asset)
		}
	}
	return orphaned, len(assets), nil
}

// PreviewOrphans reports which media objects no post references, without
// touching anything.
func (s *postService) PreviewOrphans(ctx context.Context, caller *auth.Principal) (*OrphanReport, error) {
	if !auth.CanManageMedia(caller) {
		return nil, fmt.Errorf("%w: admins only", ErrForbidden)
	}

	orphaned, total, err := s.orphans(ctx)
	if err != nil {
		return nil, err
	}

	report := &OrphanReport{
		TotalImages:   total,
		OrphanedCount: len(orphaned),
		Orphaned:      orphaned,
	}
	for _, asset := range orphaned {
		report.TotalBytes += asset.Bytes
	}
	return report, nil
}

// CleanupOrphans deletes every orphaned media object. Failures are collected
// per object; the sweep keeps going.
func (s *postService) CleanupOrphans(ctx context.Context, caller *auth.Principal) (*CleanupReport, error) {
	if !auth.CanManageMedia(caller) {
		return nil, fmt.Errorf("%w: admins only", ErrForbidden)
	}

	orphaned, total, err := s.orphans(ctx)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{
		TotalImages:   total,
		OrphanedCount: len(orphaned),
		Deleted:       make([]string, 0, len(orphaned)),
		Errors:        make([]SweepError, 0),
		Orphaned:      orphaned,
	}

	for _, asset := range orphaned {
		found, err := s.host.Destroy(ctx, asset.PublicID)
		if err != nil {
			report.Errors = append(report.Errors, SweepError{PublicID: asset.PublicID, Error: err.Error()})
			continue
		}
		if !found {
			report.Errors = append(report.Errors, SweepError{PublicID: asset.PublicID, Error: "not found"})
			continue
		}
		report.Deleted = append(report.Deleted, asset.PublicID)
	}

	return report, nil
}

// DeleteImage removes one media object directly, addressed either by public
// id or by its delivery URL. Admin only.
func (s *postService) DeleteImage(ctx context.Context, caller *auth.Principal, publicID, coverURL string) (string, error) {
	if !auth.CanManageMedia(caller) {
		return "", fmt.Errorf("%w: admins only", ErrForbidden)
	}

	if publicID == "" && coverURL != "" {
		extracted, ok := s.resolver.PublicIDFromURL(coverURL)
		if !ok {
			return "", fmt.Errorf("%w: could not extract public_id from URL", ErrValidation)
		}
		publicID = extracted
	}
	if publicID == "" {
		return "", fmt.Errorf("%w: public_id or url required", ErrValidation)
	}

	found, err := s.host.Destroy(ctx, publicID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	if !found {
		return "", fmt.Errorf("%w: image not found or already deleted", ErrNotFound)
	}

	return publicID, nil
}
