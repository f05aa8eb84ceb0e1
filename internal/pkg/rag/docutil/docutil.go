// Package docutil 提供文档读取与 PDF 文本抽取工具。
package docutil

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pdfMagic 是 PDF 文件头。
var pdfMagic = []byte("%PDF")

// IsPDF 检查内容是否以 PDF 文件头开始。
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// HasPDFExtension 检查文件名是否以 .pdf 结尾（不区分大小写）。
func HasPDFExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// FindFiles 展开文件路径与 doublestar 模式（如 docs/**/*.pdf），
// 返回去重且排序后的 PDF 文件列表。目录按 **/*.pdf 递归展开。
func FindFiles(patterns []string, excludes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) {
		if !HasPDFExtension(path) || matchAny(excludes, path) {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, pattern := range patterns {
		if isDir(pattern) {
			pattern = filepath.Join(pattern, "**", "*.pdf")
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	slices.Sort(files)
	return files, nil
}

func matchAny(patterns []string, path string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, err := doublestar.PathMatch(p, path)
		return err == nil && ok
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
