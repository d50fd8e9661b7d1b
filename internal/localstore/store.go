// Package localstore はファイルベースの永続キー/値ストアを提供する。
// 1キー=1ファイルで、書き込みはlast-write-wins。別プロセスが同じ
// ディレクトリを書き換えた場合はWatcherが変更イベントを通知する。
package localstore

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// itemExt はキー/値エントリのファイル拡張子。
const itemExt = ".item"

// fileStamp はファイルの変更検知に使うメタデータ。
type fileStamp struct {
	modTime time.Time
	size    int64
}

// Store はディレクトリをバックエンドとするキー/値ストア。
type Store struct {
	dir string

	mu sync.Mutex
	// seen は自プロセスが把握している各キーのファイル状態。
	// Watcherはこれと実ファイルの差分だけを外部変更として報告する。
	seen map[string]fileStamp
}

// NewStore は指定ディレクトリをバックエンドとするStoreを生成する。
// ディレクトリは必要に応じて作成する。
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	s := &Store{
		dir:  dir,
		seen: make(map[string]fileStamp),
	}
	// 既存エントリを既知状態として取り込む
	s.mu.Lock()
	defer s.mu.Unlock()
	stamps, err := s.scan()
	if err != nil {
		return nil, err
	}
	s.seen = stamps
	return s, nil
}

// Get はキーの値を返す。キーが存在しない場合は第2戻り値がfalse。
func (s *Store) Get(key string) (string, bool, error) {
	raw, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(raw), true, nil
}

// Set はキーに値を書き込む。既存の値は上書きされる。
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.filePath(key)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	// 自分の書き込みをWatcherが外部変更と誤認しないよう既知状態を更新する
	if info, err := os.Stat(path); err == nil {
		s.seen[key] = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}
	return nil
}

// Delete はキーを削除する。存在しないキーの削除はエラーにならない。
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	delete(s.seen, key)
	return nil
}

// Keys は保存されている全キーを返す。順序は不定。
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), itemExt) {
			continue
		}
		key, err := decodeKey(strings.TrimSuffix(entry.Name(), itemExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// filePath はキーをファイルパスに変換する。
// キーは任意の文字（コロンやスラッシュ）を含めるためエンコードする。
func (s *Store) filePath(key string) string {
	return filepath.Join(s.dir, encodeKey(key)+itemExt)
}

// scan は現在のディレクトリ内容のファイル状態を収集する。
// 呼び出し側がs.muを保持していること。
func (s *Store) scan() (map[string]fileStamp, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan store directory: %w", err)
	}

	stamps := make(map[string]fileStamp, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), itemExt) {
			continue
		}
		key, err := decodeKey(strings.TrimSuffix(entry.Name(), itemExt))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stamps[key] = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}
	return stamps, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(name string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
