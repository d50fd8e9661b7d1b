// Package post は投稿の作成・一覧・削除のビジネスロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/realtime"
	"github.com/hitoshi/loreboard/internal/repository"
)

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	postRepo repository.PostRepository
	hub      *realtime.Hub
	metrics  *metrics.Recorder
}

// NewService はServiceを生成する。hubとmetricsはnilでもよい（通知・計測を無効化）。
func NewService(postRepo repository.PostRepository, hub *realtime.Hub, rec *metrics.Recorder) *Service {
	return &Service{
		postRepo: postRepo,
		hub:      hub,
		metrics:  rec,
	}
}

// List はスコープに従って投稿一覧を返す（新しい順）。
func (s *Service) List(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
	posts, err := s.postRepo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// Create は投稿を検証して保存する。
// 空白のみの本文と文字数超過はリポジトリに触れる前に拒否する。
// 新規投稿は必ず作者を持つ。作者無しの行は移行前の遺産データのみ。
func (s *Service) Create(ctx context.Context, userID, body string) (*model.Post, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if strings.TrimSpace(body) == "" {
		return nil, model.NewEmptyPostError()
	}
	// 文字数はバイト長ではなくルーン数で数える
	if utf8.RuneCountInString(body) > model.PostMaxLength {
		return nil, model.NewPostTooLongError(model.PostMaxLength)
	}

	post := &model.Post{
		ID:     uuid.New().String(),
		UserID: userID,
		Body:   body,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", userID),
	)

	if s.metrics != nil {
		s.metrics.PostCreated()
	}
	if s.hub != nil {
		s.hub.Publish(realtime.PostEvent{
			Type:   realtime.EventPostCreated,
			Post:   post,
			PostID: post.ID,
		})
	}

	return post, nil
}

// Delete は投稿を削除する。本人の投稿のみ削除できる。
// 匿名投稿（UserIDが空）は誰も削除できない。
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return model.NewPostNotFoundError(postID)
	}
	if post.UserID == "" || post.UserID != userID {
		return model.NewNotPostAuthorError()
	}

	deleted, err := s.postRepo.DeleteByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if !deleted {
		// FindByIDとDeleteの間で消えた場合
		return model.NewPostNotFoundError(postID)
	}

	slog.Info("post deleted", slog.String("post_id", postID), slog.String("user_id", userID))

	if s.metrics != nil {
		s.metrics.PostDeleted()
	}
	if s.hub != nil {
		s.hub.Publish(realtime.PostEvent{
			Type:   realtime.EventPostDeleted,
			PostID: postID,
		})
	}

	return nil
}
