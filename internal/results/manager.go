package results

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// DefaultOutputDir is used when no output directory is configured.
const DefaultOutputDir = "output"

// sampleRunes is the length of the text samples in the CSV projection.
const sampleRunes = 200

// CSVHeader is the first row of the CSV projection.
var CSVHeader = []string{"Page", "Original_Sample", "Translation", "Original_Length", "Translation_Length", "Status"}

// OutputFiles lists the files written for one session. Excel is empty when
// no workbook was requested.
type OutputFiles struct {
	JSON  string
	CSV   string
	Excel string
}

// SaveOptions controls the optional outputs.
type SaveOptions struct {
	Excel    bool
	Sections []SectionRow
}

// ResultManager 管理输出目录中的翻译结果文件
type ResultManager struct {
	baseDir string
}

// NewResultManager creates the output directory if needed.
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		baseDir = DefaultOutputDir
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrOutput, "无法创建输出目录", err)
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the output directory.
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

// BaseName derives the output file stem from the input path,
// e.g. "docs/需求 v2.pdf" -> "需求_v2_translation".
func BaseName(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = sanitizeName(stem)
	if stem == "" || stem == "." {
		stem = "document"
	}
	return stem + "_translation"
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}

// Paths returns the output paths for stem.
func (m *ResultManager) Paths(stem string) OutputFiles {
	return OutputFiles{
		JSON:  filepath.Join(m.baseDir, stem+".json"),
		CSV:   filepath.Join(m.baseDir, stem+".csv"),
		Excel: filepath.Join(m.baseDir, stem+"_readable.xlsx"),
	}
}

// SaveSession writes the session as JSON and CSV, plus an Excel workbook
// when requested. Each file is replaced atomically.
func (m *ResultManager) SaveSession(s *Session, stem string, opts SaveOptions) (OutputFiles, error) {
	files := m.Paths(stem)
	if err := WriteJSON(files.JSON, s); err != nil {
		return OutputFiles{}, err
	}
	if err := WriteCSV(files.CSV, s); err != nil {
		return OutputFiles{}, err
	}
	if opts.Excel {
		if err := WriteExcel(files.Excel, s, opts.Sections); err != nil {
			return OutputFiles{}, err
		}
	} else {
		files.Excel = ""
	}

	logger.Info("results saved",
		logger.String("json", files.JSON),
		logger.String("csv", files.CSV),
		logger.Int("pages", s.TotalPages),
		logger.Int("successful", s.SuccessfulCount))
	return files, nil
}

// WriteJSON writes s as indented JSON.
func WriteJSON(path string, s *Session) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	})
}

// WriteCSV writes one row per page in page order.
func WriteCSV(path string, s *Session) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(CSVHeader); err != nil {
			return err
		}
		for _, p := range s.Pages {
			row := []string{
				strconv.Itoa(p.PageNumber),
				Sample(p.OriginalText, sampleRunes),
				Sample(p.TranslatedText, sampleRunes),
				strconv.Itoa(p.OriginalCharCount),
				strconv.Itoa(p.TranslatedCharCount),
				string(p.Status),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Sample truncates text to n runes and marks the cut with "...".
func Sample(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// writeAtomic writes to a temporary file next to path and renames it over
// path, so readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.NewAppError(types.ErrOutput, "无法创建输出目录", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return types.NewAppError(types.ErrOutput, "无法创建临时文件", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return types.NewAppErrorWithDetails(types.ErrOutput, "写入结果失败", path, err)
	}
	if err := tmp.Close(); err != nil {
		return types.NewAppErrorWithDetails(types.ErrOutput, "写入结果失败", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrOutput, "写入结果失败", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return types.NewAppErrorWithDetails(types.ErrOutput, "写入结果失败", path, err)
	}
	return nil
}

// LoadSession reads a session previously written by WriteJSON and
// recomputes its counters.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "结果文件不存在", path, err)
		}
		return nil, types.NewAppError(types.ErrOutput, "无法读取结果文件", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "结果文件格式错误", path, err)
	}
	s.Recount()
	return &s, nil
}

// SessionInfo describes a session file found in the output directory.
type SessionInfo struct {
	Path            string
	Source          string
	Timestamp       string
	TotalPages      int
	SuccessfulCount int
	ModTime         time.Time
}

// ListSessions returns the session files in the output directory, newest
// first. Files that are not sessions are skipped.
func (m *ResultManager) ListSessions() ([]SessionInfo, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionInfo{}, nil
		}
		return nil, types.NewAppError(types.ErrOutput, "无法读取输出目录", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		s, err := LoadSession(path)
		if err != nil || s.Timestamp == "" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, SessionInfo{
			Path:            path,
			Source:          s.Source,
			Timestamp:       s.Timestamp,
			TotalPages:      s.TotalPages,
			SuccessfulCount: s.SuccessfulCount,
			ModTime:         fi.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
	return sessions, nil
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", filePath, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
