package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/loreboard/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	var userID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, body, created_at FROM posts WHERE id = $1`,
		id,
	).Scan(&post.ID, &userID, &post.Body, &post.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	post.UserID = userID.String
	return post, nil
}

// List はスコープに従って投稿を作成日時の降順で取得する。
// FeedScopeAllはLimit > 0の場合のみ件数を制限する。
// FeedScopeByAuthorは対象ユーザーの全投稿を返す（上限なし）。
func (r *PostgresPostRepo) List(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
	var (
		rows *sql.Rows
		err  error
	)

	switch scope.Kind {
	case model.FeedScopeByAuthor:
		rows, err = r.db.QueryContext(ctx,
			`SELECT id, user_id, body, created_at
			 FROM posts
			 WHERE user_id = $1
			 ORDER BY created_at DESC`,
			scope.AuthorID,
		)
	case model.FeedScopeAll:
		if scope.Limit > 0 {
			rows, err = r.db.QueryContext(ctx,
				`SELECT id, user_id, body, created_at
				 FROM posts
				 ORDER BY created_at DESC
				 LIMIT $1`,
				scope.Limit,
			)
		} else {
			rows, err = r.db.QueryContext(ctx,
				`SELECT id, user_id, body, created_at
				 FROM posts
				 ORDER BY created_at DESC`,
			)
		}
	default:
		return nil, fmt.Errorf("unknown feed scope kind: %q", scope.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var (
			post   model.Post
			userID sql.NullString
		)
		if err := rows.Scan(&post.ID, &userID, &post.Body, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		post.UserID = userID.String
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return posts, nil
}

// Create は投稿を作成する。作成日時はデータベース側のnow()で割り当てる。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	var userID any
	if post.UserID != "" {
		userID = post.UserID
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (id, user_id, body)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		post.ID, userID, post.Body,
	).Scan(&post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの投稿を削除する。削除された場合はtrueを返す。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
