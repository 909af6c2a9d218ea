package packaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rushteam/modelwrap/core"
)

const keyPrefix = "modelwrap"

// Manifest 记录导出到 Store 的模型目录包含哪些文件
type Manifest struct {
	Name      string    `json:"name"`
	ModelUUID string    `json:"model_uuid"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

// ManifestKey 模型清单的 key
func ManifestKey(name string) string {
	return keyPrefix + ":" + name
}

// FileKey 模型目录中单个文件的 key，rel 使用 / 分隔
func FileKey(name, rel string) string {
	return keyPrefix + ":" + name + ":" + rel
}

// ValidName 校验模型名。模型名既是 Store key 的一段，也是本地目录名，
// 不能为空，不能以 "." 开头，不能含路径分隔符或 ":"。
func ValidName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\:`) || !filepath.IsLocal(name) {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeInvalidInput,
			fmt.Sprintf("packaging: illegal model name %q", name))
	}
	return nil
}

// Export 把模型目录写入 Store：先批量写文件，最后写清单。
func Export(ctx context.Context, s core.Store, name, dir string, ttl ...int) (*Manifest, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	meta, err := ReadMLmodel(dir)
	if err != nil {
		return nil, err
	}

	kvs := make(map[string][]byte)
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(filepath.Base(rel), ".") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		kvs[FileKey(name, rel)] = data
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	if err := s.BatchSet(ctx, kvs, ttl...); err != nil {
		return nil, fmt.Errorf("export files to %s: %w", s.Name(), err)
	}
	m := &Manifest{
		Name:      name,
		ModelUUID: meta.ModelUUID,
		Files:     files,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := s.Set(ctx, ManifestKey(name), data, ttl...); err != nil {
		return nil, fmt.Errorf("export manifest to %s: %w", s.Name(), err)
	}
	return m, nil
}

// ReadManifest 读取模型清单，不存在时返回 NOT_FOUND
func ReadManifest(ctx context.Context, s core.Store, name string) (*Manifest, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	data, err := s.Get(ctx, ManifestKey(name))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotFound,
				fmt.Sprintf("packaging: model %q not found in %s", name, s.Name()))
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", name, err)
	}
	return &m, nil
}

// Import 把 Store 中的模型还原到 dir。dir 已存在且非空时，除非 overwrite 否则返回错误。
// 清单与文件全部校验并在同级临时目录写好之后才会改动 dir。
func Import(ctx context.Context, s core.Store, name, dir string, overwrite bool) (*Manifest, error) {
	m, err := ReadManifest(ctx, s, name)
	if err != nil {
		return nil, err
	}
	hasMeta := false
	for _, f := range m.Files {
		if err := localPathCheck(f); err != nil {
			return nil, err
		}
		if f == MLmodelFile {
			hasMeta = true
		}
	}
	if !hasMeta {
		return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotFound,
			fmt.Sprintf("packaging: model %q has no %s", name, MLmodelFile))
	}
	if err := checkDir(dir, overwrite); err != nil {
		return nil, err
	}

	keys := make([]string, len(m.Files))
	for i, f := range m.Files {
		keys[i] = FileKey(name, f)
	}
	got, err := s.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("import files from %s: %w", s.Name(), err)
	}
	for i, f := range m.Files {
		if _, ok := got[keys[i]]; !ok {
			return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotFound,
				fmt.Sprintf("packaging: file %q of model %q missing in %s", f, name, s.Name()))
		}
	}

	staging, err := stageDir(dir)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)
	for i, f := range m.Files {
		path := filepath.Join(staging, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := writeFileAtomic(path, got[keys[i]]); err != nil {
			return nil, err
		}
	}
	if err := commitDir(staging, dir, overwrite); err != nil {
		return nil, err
	}
	return m, nil
}

// localPathCheck 拒绝跳出模型目录的路径
func localPathCheck(rel string) error {
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeInvalidInput,
			fmt.Sprintf("packaging: illegal file path %q", rel))
	}
	return nil
}
