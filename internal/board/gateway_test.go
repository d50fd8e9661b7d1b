package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/loreboard/internal/model"
)

// mockAuthGateway は関数フィールドで挙動を差し替えられるAuthGatewayモック。
type mockAuthGateway struct {
	getSessionFunc func(ctx context.Context) (*model.SessionUser, error)
	signUpFunc     func(ctx context.Context, email, password string) (*model.SessionUser, error)
	signInFunc     func(ctx context.Context, email, password string) (*model.SessionUser, error)
	signOutFunc    func(ctx context.Context) error
	updateUserFunc func(ctx context.Context, displayName, bio string) (*model.User, error)
	changes        chan AuthChange
}

func (m *mockAuthGateway) GetSession(ctx context.Context) (*model.SessionUser, error) {
	if m.getSessionFunc != nil {
		return m.getSessionFunc(ctx)
	}
	return nil, nil
}

func (m *mockAuthGateway) SignUp(ctx context.Context, email, password string) (*model.SessionUser, error) {
	if m.signUpFunc != nil {
		return m.signUpFunc(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthGateway) SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error) {
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthGateway) SignOut(ctx context.Context) error {
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx)
	}
	return nil
}

func (m *mockAuthGateway) UpdateUser(ctx context.Context, displayName, bio string) (*model.User, error) {
	if m.updateUserFunc != nil {
		return m.updateUserFunc(ctx, displayName, bio)
	}
	return &model.User{DisplayName: displayName, Bio: bio}, nil
}

func (m *mockAuthGateway) AuthStateChanges() <-chan AuthChange {
	if m.changes == nil {
		m.changes = make(chan AuthChange, 16)
	}
	return m.changes
}

// mockPostGateway は関数フィールドで挙動を差し替えられるPostGatewayモック。
type mockPostGateway struct {
	listFunc    func(ctx context.Context, scope model.FeedScope) ([]model.Post, error)
	createFunc  func(ctx context.Context, body string) (*model.Post, error)
	deleteFunc  func(ctx context.Context, id string) error
	changesFunc func(ctx context.Context) (<-chan struct{}, error)
}

func (m *mockPostGateway) ListPosts(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, scope)
	}
	return nil, nil
}

func (m *mockPostGateway) CreatePost(ctx context.Context, body string) (*model.Post, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, body)
	}
	return &model.Post{ID: "post-1", Body: body, CreatedAt: time.Now()}, nil
}

func (m *mockPostGateway) DeletePost(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockPostGateway) Changes(ctx context.Context) (<-chan struct{}, error) {
	if m.changesFunc != nil {
		return m.changesFunc(ctx)
	}
	ch := make(chan struct{})
	return ch, nil
}

// compile-time interface check
var (
	_ AuthGateway = (*mockAuthGateway)(nil)
	_ PostGateway = (*mockPostGateway)(nil)
)

// fakeBackend はエンドツーエンドシナリオ用のインメモリバックエンド。
// 認証とデータの両コラボレーターをひとつのプロセス内状態で実装する。
type fakeBackend struct {
	mu          sync.Mutex
	users       map[string]model.User // email → user
	session     *model.SessionUser
	posts       []model.Post
	nextID      int
	authChanges chan AuthChange
	postChanges chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:       make(map[string]model.User),
		authChanges: make(chan AuthChange, 16),
		postChanges: make(chan struct{}, 16),
	}
}

func (f *fakeBackend) GetSession(ctx context.Context) (*model.SessionUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*model.SessionUser, error) {
	f.mu.Lock()
	if _, exists := f.users[email]; exists {
		f.mu.Unlock()
		return nil, model.NewEmailTakenError()
	}
	f.nextID++
	user := model.User{
		ID:    fmt.Sprintf("user-%d", f.nextID),
		Email: email,
	}
	f.users[email] = user
	session := &model.SessionUser{
		Session: model.Session{UserID: user.ID},
		User:    user,
	}
	f.session = session
	f.mu.Unlock()

	f.authChanges <- AuthChange{Event: AuthEventSignedIn, Session: session}
	return session, nil
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error) {
	f.mu.Lock()
	user, exists := f.users[email]
	if !exists {
		f.mu.Unlock()
		return nil, model.NewInvalidCredentialsError()
	}
	session := &model.SessionUser{
		Session: model.Session{UserID: user.ID},
		User:    user,
	}
	f.session = session
	f.mu.Unlock()

	f.authChanges <- AuthChange{Event: AuthEventSignedIn, Session: session}
	return session, nil
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()

	f.authChanges <- AuthChange{Event: AuthEventSignedOut}
	return nil
}

func (f *fakeBackend) UpdateUser(ctx context.Context, displayName, bio string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, model.NewUnauthorizedError()
	}
	user := f.session.User
	user.DisplayName = displayName
	user.Bio = bio
	f.users[user.Email] = user
	f.session = &model.SessionUser{Session: f.session.Session, User: user}
	return &user, nil
}

func (f *fakeBackend) AuthStateChanges() <-chan AuthChange {
	return f.authChanges
}

func (f *fakeBackend) ListPosts(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var posts []model.Post
	for _, p := range f.posts {
		if scope.Kind == model.FeedScopeByAuthor && p.UserID != scope.AuthorID {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if scope.Kind == model.FeedScopeAll && scope.Limit > 0 && len(posts) > scope.Limit {
		posts = posts[:scope.Limit]
	}
	return posts, nil
}

func (f *fakeBackend) CreatePost(ctx context.Context, body string) (*model.Post, error) {
	f.mu.Lock()
	f.nextID++
	// 連続作成でも並び順が安定するよう単調増加の時刻を割り当てる
	post := model.Post{
		ID:        fmt.Sprintf("post-%d", f.nextID),
		Body:      body,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.nextID) * time.Second),
	}
	if f.session != nil {
		post.UserID = f.session.User.ID
	}
	f.posts = append(f.posts, post)
	f.mu.Unlock()

	f.notifyPosts()
	return &post, nil
}

func (f *fakeBackend) DeletePost(ctx context.Context, id string) error {
	f.mu.Lock()
	var userID string
	if f.session != nil {
		userID = f.session.User.ID
	}
	for i, p := range f.posts {
		if p.ID != id {
			continue
		}
		if p.UserID == "" || p.UserID != userID {
			f.mu.Unlock()
			return model.NewNotPostAuthorError()
		}
		f.posts = append(f.posts[:i], f.posts[i+1:]...)
		f.mu.Unlock()
		f.notifyPosts()
		return nil
	}
	f.mu.Unlock()
	return model.NewPostNotFoundError(id)
}

func (f *fakeBackend) Changes(ctx context.Context) (<-chan struct{}, error) {
	return f.postChanges, nil
}

func (f *fakeBackend) notifyPosts() {
	select {
	case f.postChanges <- struct{}{}:
	default:
	}
}

// compile-time interface check
var (
	_ AuthGateway = (*fakeBackend)(nil)
	_ PostGateway = (*fakeBackend)(nil)
)
