package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"zenai/internal/command"
	"zenai/internal/domain"

	"github.com/google/uuid"
)

const (
	maxFileRead      = 1 << 20
	maxSearchResults = 1000
)

// resolvePath resolves a file path relative to the workspace and prevents traversal.
func resolvePath(workspace, path string) (string, error) {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) && workspace != "" {
		path = filepath.Join(workspace, path)
	}
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if workspace != "" {
		wsAbs, err := filepath.Abs(workspace)
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		if !within(resolved, wsAbs) {
			return "", fmt.Errorf("path %q is outside workspace %q", resolved, wsAbs)
		}
		wsReal, err := evalExisting(wsAbs)
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		target, err := evalExisting(resolved)
		if err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		if !within(target, wsReal) {
			return "", fmt.Errorf("path %q resolves outside workspace %q", resolved, wsAbs)
		}
	}
	return resolved, nil
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// evalExisting follows symlinks through the deepest existing ancestor of p
// and appends the parts that do not exist yet. A dangling link is an error.
func evalExisting(p string) (string, error) {
	rest := ""
	for {
		target, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(target, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(p); lerr == nil {
			return "", fmt.Errorf("dangling symlink %q", p)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(p, rest), nil
		}
		rest = filepath.Join(filepath.Base(p), rest)
		p = parent
	}
}

// FilesTool is main.files: list, read, write, create, delete and search
// inside the workspace. Anything overwritten or deleted is copied to
// backupDir/<uuid>/ first.
type FilesTool struct {
	workspace string
	backupDir string
	logger    *slog.Logger
}

func NewFilesTool(workspace, backupDir string, logger *slog.Logger) *FilesTool {
	return &FilesTool{workspace: workspace, backupDir: backupDir, logger: logger}
}

func (t *FilesTool) Execute(ctx context.Context, raw string) (any, error) {
	args := command.ParseArgs(raw)
	switch {
	case args.Has("list"):
		return t.list(args.String("list")), nil
	case args.Has("read"):
		return t.read(args.String("read"), args), nil
	case args.Has("write") && args.Has("content"):
		return t.write(args.String("write"), args.String("content")), nil
	case args.Has("create"):
		return t.create(args.String("create"), args.String("type")), nil
	case args.Has("delete"):
		return t.remove(args.String("delete")), nil
	case args.Has("search") && args.Has("pattern"):
		return t.search(ctx, args.String("search"), args.String("pattern")), nil
	}
	return domain.Fail("invalid or missing parameters for files tool"), nil
}

func (t *FilesTool) list(path string) domain.ToolResult {
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return domain.Fail("%v", err)
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return domain.Fail("%s is not a directory", path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return domain.OK(names)
}

func (t *FilesTool) read(path string, args command.Args) domain.ToolResult {
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return domain.Fail("%v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return domain.Fail("%s is not a file", path)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return domain.Fail("open %s: %v", path, err)
	}
	defer f.Close()

	if args.Has("lines") {
		start, end, ok := parseLineRange(args.String("lines"))
		if !ok {
			return domain.Fail("invalid lines parameter: %s", args.String("lines"))
		}
		var selected []string
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxFileRead)
		for n := 1; sc.Scan() && n <= end; n++ {
			if n >= start {
				selected = append(selected, sc.Text())
			}
		}
		if err := sc.Err(); err != nil {
			return domain.Fail("read %s: %v", path, err)
		}
		return domain.OK(strings.Join(selected, "\n"))
	}

	data, err := io.ReadAll(io.LimitReader(f, maxFileRead))
	if err != nil {
		return domain.Fail("read %s: %v", path, err)
	}
	return domain.OK(string(data))
}

// parseLineRange parses "a-b" with 1 <= a <= b.
func parseLineRange(s string) (int, int, bool) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(lo))
	end, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || start < 1 || end < start {
		return 0, 0, false
	}
	return start, end, true
}

func (t *FilesTool) write(path, content string) domain.ToolResult {
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return domain.Fail("%v", err)
	}
	result := map[string]any{}
	if _, err := os.Stat(resolved); err == nil {
		b, err := t.backup(resolved)
		if err != nil {
			return domain.Fail("backup %s: %v", path, err)
		}
		result["backup"] = b
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return domain.Fail("create directory: %v", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return domain.Fail("write file: %v", err)
	}
	result["message"] = fmt.Sprintf("Wrote %d bytes to %s", len(content), path)
	return domain.OK(result)
}

func (t *FilesTool) create(path, typ string) domain.ToolResult {
	if typ == "" {
		typ = "file"
	}
	if typ != "file" && typ != "dir" {
		return domain.Fail("invalid type %q: want file or dir", typ)
	}
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return domain.Fail("%v", err)
	}
	result := map[string]any{}
	if _, err := os.Stat(resolved); err == nil {
		b, err := t.backup(resolved)
		if err != nil {
			return domain.Fail("backup %s: %v", path, err)
		}
		result["backup"] = b
	}
	if typ == "dir" {
		err = os.MkdirAll(resolved, 0o755)
	} else if err = os.MkdirAll(filepath.Dir(resolved), 0o755); err == nil {
		var f *os.File
		if f, err = os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			err = f.Close()
		}
	}
	if err != nil {
		return domain.Fail("create %s: %v", path, err)
	}
	result["message"] = fmt.Sprintf("Created %s at %s", typ, path)
	return domain.OK(result)
}

func (t *FilesTool) remove(path string) domain.ToolResult {
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return domain.Fail("%v", err)
	}
	if ws, err := filepath.Abs(t.workspace); err == nil && ws == resolved {
		return domain.Fail("refusing to delete the workspace root")
	}
	if _, err := os.Stat(resolved); err != nil {
		return domain.Fail("%s does not exist", path)
	}
	b, err := t.backup(resolved)
	if err != nil {
		return domain.Fail("backup %s: %v", path, err)
	}
	if err := os.RemoveAll(resolved); err != nil {
		return domain.Fail("delete %s: %v", path, err)
	}
	return domain.OK(map[string]any{"message": fmt.Sprintf("Deleted %s", path), "backup": b})
}

func (t *FilesTool) search(ctx context.Context, root, pattern string) domain.ToolResult {
	resolved, err := resolvePath(t.workspace, root)
	if err != nil {
		return domain.Fail("%v", err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return domain.Fail("%s does not exist", root)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return domain.Fail("invalid pattern: %v", err)
	}

	matches := []string{}
	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p == resolved || !re.MatchString(d.Name()) {
			return nil
		}
		rel, relErr := filepath.Rel(resolved, p)
		if relErr != nil {
			rel = p
		}
		matches = append(matches, filepath.Join(root, rel))
		if len(matches) >= maxSearchResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return domain.Fail("search %s: %v", root, err)
	}
	return domain.OK(matches)
}

// backup copies src under backupDir/<uuid>/ keeping its workspace-relative path.
func (t *FilesTool) backup(src string) (map[string]string, error) {
	id := uuid.NewString()
	rel := filepath.Base(src)
	if ws, err := filepath.Abs(t.workspace); err == nil {
		if r, err := filepath.Rel(ws, src); err == nil {
			rel = r
		}
	}
	dest := filepath.Join(t.backupDir, id, rel)

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		r, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, r)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
	if err != nil {
		return nil, err
	}
	t.logger.Debug("backed up", "src", src, "backup_id", id)
	return map[string]string{"backup_id": id, "backup_path": dest}, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
