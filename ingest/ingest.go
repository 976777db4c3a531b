// Package ingest reads the tabular inputs: the reference signature table, the
// server log export and plain URL lists.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"geo-insights/models"
	"geo-insights/utils"
)

var ErrInput = errors.New("ingest: malformed input")

// Header aliases in priority order. Different exports spell the same field
// differently; the first alias present with a non-empty value wins.
var (
	signatureNameHeaders     = []string{"name", "Bot", "bot", "bot_name", "agent", "Agent"}
	signatureProviderHeaders = []string{"provider", "Provider", "company", "operator"}
	signatureCategoryHeaders = []string{"category", "Category", "type", "Type"}
	signaturePatternHeaders  = []string{"user_agent_pattern", "pattern", "ua_pattern"}
	signatureRangeHeaders    = []string{"ip_ranges", "ip_range", "IP ranges", "cidr"}

	logTimestampHeaders = []string{"timestamp", "time", "date", "Date", "Timestamp"}
	logUserAgentHeaders = []string{"user_agent", "User-Agent", "useragent", "user agent"}
	logLabelHeaders     = []string{"Bot", "bot", "bot_name"}
	logURLHeaders       = []string{"url", "URL", "Page path", "path", "request", "Request"}
	logStatusHeaders    = []string{"status", "status_code", "Response status codes", "Response Status", "code"}
	logMethodHeaders    = []string{"method", "Method", "http_method"}
	logIPHeaders        = []string{"ip", "IP", "remote_addr", "client"}
	logRefererHeaders   = []string{"referer", "Referer", "referrer"}
	logDurationHeaders  = []string{"response_time_ms", "response_time", "duration_ms", "latency_ms"}
)

// header resolves alias lists against one table's header row.
type header struct {
	exact map[string]int
	fold  map[string]int
}

func newHeader(row []string) header {
	h := header{exact: make(map[string]int), fold: make(map[string]int)}
	for i, name := range row {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := h.exact[name]; !ok {
			h.exact[name] = i
		}
		key := strings.ToLower(name)
		if _, ok := h.fold[key]; !ok {
			h.fold[key] = i
		}
	}
	return h
}

// columns returns the indexes of every alias present, in alias order. Exact
// spellings are preferred; a case-insensitive hit is used otherwise.
func (h header) columns(aliases []string) []int {
	var idx []int
	used := make(map[int]bool)
	for _, alias := range aliases {
		i, ok := h.exact[alias]
		if !ok {
			i, ok = h.fold[strings.ToLower(alias)]
		}
		if ok && !used[i] {
			used[i] = true
			idx = append(idx, i)
		}
	}
	return idx
}

func value(row []string, cols []int) string {
	for _, i := range cols {
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func readTable(r io.Reader) (header, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return header{}, nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if len(rows) == 0 {
		return header{}, nil, fmt.Errorf("%w: missing header row", ErrInput)
	}
	return newHeader(rows[0]), rows[1:], nil
}

// ReadSignatureTable requires a name column; every other column is optional.
func ReadSignatureTable(r io.Reader) ([]models.SignatureRow, error) {
	h, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	nameCols := h.columns(signatureNameHeaders)
	if len(nameCols) == 0 {
		return nil, fmt.Errorf("%w: signature table needs one of %v", ErrInput, signatureNameHeaders)
	}
	providerCols := h.columns(signatureProviderHeaders)
	categoryCols := h.columns(signatureCategoryHeaders)
	patternCols := h.columns(signaturePatternHeaders)
	rangeCols := h.columns(signatureRangeHeaders)

	out := make([]models.SignatureRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.SignatureRow{
			Name:     value(row, nameCols),
			Provider: value(row, providerCols),
			Category: value(row, categoryCols),
			Pattern:  value(row, patternCols),
			IPRanges: value(row, rangeCols),
		})
	}
	return out, nil
}

// LogOptions controls row conversion; Now stamps rows whose timestamp is
// missing or unparseable.
type LogOptions struct {
	Now func() time.Time
}

// ReadLogTable requires a URL column and either a user-agent or a bot label
// column. Column checks happen before any row is converted.
func ReadLogTable(r io.Reader, opts LogOptions) ([]models.LogRecord, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	urlCols := h.columns(logURLHeaders)
	uaCols := h.columns(logUserAgentHeaders)
	labelCols := h.columns(logLabelHeaders)
	if len(urlCols) == 0 {
		return nil, fmt.Errorf("%w: log table needs one of %v", ErrInput, logURLHeaders)
	}
	if len(uaCols) == 0 && len(labelCols) == 0 {
		return nil, fmt.Errorf("%w: log table needs a user agent or bot column", ErrInput)
	}
	tsCols := h.columns(logTimestampHeaders)
	statusCols := h.columns(logStatusHeaders)
	methodCols := h.columns(logMethodHeaders)
	ipCols := h.columns(logIPHeaders)
	refCols := h.columns(logRefererHeaders)
	durCols := h.columns(logDurationHeaders)

	ingestedAt := opts.Now().UTC()
	out := make([]models.LogRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.LogRecord{
			Timestamp:      parseTimestamp(value(row, tsCols), ingestedAt),
			StatusCode:     parseStatus(value(row, statusCols)),
			Method:         strings.ToUpper(value(row, methodCols)),
			UserAgent:      value(row, uaCols),
			AgentLabel:     value(row, labelCols),
			IP:             value(row, ipCols),
			Referer:        value(row, refCols),
			ResponseTimeMS: parseInt(value(row, durCols)),
		}
		if rec.UserAgent == "" {
			rec.UserAgent = rec.AgentLabel
		}

		method, target := parseRequest(value(row, urlCols))
		rec.URL = target
		if rec.Method == "" {
			rec.Method = method
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTimestamp(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// parseStatus accepts "200" as well as "200 OK".
func parseStatus(raw string) int {
	if raw == "" {
		return 0
	}
	if code, err := strconv.Atoi(raw); err == nil {
		return code
	}
	fields := strings.Fields(raw)
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return code
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// parseRequest splits a request line such as "GET /path HTTP/1.1". Plain
// URLs and paths are returned unchanged; an empty value becomes "/".
func parseRequest(raw string) (method, target string) {
	fields := strings.Fields(raw)
	switch {
	case len(fields) == 0:
		return "", "/"
	case len(fields) >= 2 && isMethod(fields[0]):
		return strings.ToUpper(fields[0]), fields[1]
	default:
		return "", raw
	}
}

func isMethod(s string) bool {
	switch strings.ToUpper(s) {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "CONNECT", "TRACE":
		return true
	}
	return false
}

// ReadURLList reads one URL per line, or the first column of a CSV. Comment
// lines, header rows and non-crawlable URLs are dropped, as are repeats.
func ReadURLList(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var urls []string
	seen := make(map[string]bool)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInput, err)
		}
		if len(row) == 0 {
			continue
		}
		u := strings.TrimSpace(row[0])
		if !utils.IsValidURL(u) {
			continue
		}
		key := utils.NormalizeURL(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		urls = append(urls, u)
	}
	return urls, nil
}
