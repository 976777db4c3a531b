package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-insights/models"
)

var ingestClock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestReadSignatureTable(t *testing.T) {
	in := "Bot,Provider,Type,cidr\n" +
		"GPTBot,OpenAI,training,20.15.240.64/28\n" +
		"ClaudeBot,Anthropic,,\n" +
		",,,\n"
	rows, err := ReadSignatureTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.SignatureRow{Name: "GPTBot", Provider: "OpenAI", Category: "training", IPRanges: "20.15.240.64/28"}, rows[0])
	assert.Equal(t, models.SignatureRow{Name: "ClaudeBot", Provider: "Anthropic"}, rows[1])
	assert.Empty(t, rows[2].Name)
}

func TestReadSignatureTable_PrefersEarlierAlias(t *testing.T) {
	in := "agent,NAME\nfallback-agent,Primary\n,OnlyName\n"
	rows, err := ReadSignatureTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Primary", rows[0].Name)
	assert.Equal(t, "OnlyName", rows[1].Name)
}

func TestReadSignatureTable_MissingName(t *testing.T) {
	_, err := ReadSignatureTable(strings.NewReader("provider,category\nOpenAI,training\n"))
	assert.ErrorIs(t, err, ErrInput)

	_, err = ReadSignatureTable(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInput)
}

func TestReadLogTable(t *testing.T) {
	in := "timestamp,request,status,user_agent,ip,response_time_ms\n" +
		"2026-05-01T12:00:00Z,GET /products/shoe?ref=ad HTTP/1.1,200 OK,GPTBot/1.0,20.15.240.70,35\n" +
		"not a date,/faq,404,ClaudeBot/1.0,,\n" +
		"05/02/2026 08:30,,,Mozilla/5.0,,\n"

	recs, err := ReadLogTable(strings.NewReader(in), LogOptions{Now: func() time.Time { return ingestClock }})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, models.LogRecord{
		Timestamp:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Method:         "GET",
		URL:            "/products/shoe?ref=ad",
		StatusCode:     200,
		UserAgent:      "GPTBot/1.0",
		IP:             "20.15.240.70",
		ResponseTimeMS: 35,
	}, recs[0])

	assert.Equal(t, ingestClock, recs[1].Timestamp)
	assert.Equal(t, "/faq", recs[1].URL)
	assert.Equal(t, 404, recs[1].StatusCode)
	assert.Empty(t, recs[1].Method)

	assert.Equal(t, time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC), recs[2].Timestamp)
	assert.Equal(t, "/", recs[2].URL)
	assert.Zero(t, recs[2].StatusCode)
}

func TestReadLogTable_BotColumnExport(t *testing.T) {
	in := "Date,Bot,Page path,Response status codes\n" +
		"2026-05-01,PerplexityBot,/blog/mud,200\n"
	recs, err := ReadLogTable(strings.NewReader(in), LogOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "PerplexityBot", recs[0].AgentLabel)
	assert.Equal(t, "PerplexityBot", recs[0].UserAgent)
	assert.Equal(t, "/blog/mud", recs[0].URL)
	assert.Equal(t, 200, recs[0].StatusCode)
}

func TestReadLogTable_MissingColumns(t *testing.T) {
	_, err := ReadLogTable(strings.NewReader("timestamp,user_agent\n2026-05-01,GPTBot\n"), LogOptions{})
	assert.ErrorIs(t, err, ErrInput)

	_, err = ReadLogTable(strings.NewReader("timestamp,url\n2026-05-01,/a\n"), LogOptions{})
	assert.ErrorIs(t, err, ErrInput)
}

func TestReadURLList(t *testing.T) {
	in := "url\n" +
		"# owned pages\n" +
		"https://acme.example/products/shoe\n" +
		"https://acme.example/products/shoe#reviews\n" +
		"https://acme.example/logo.png\n" +
		"ftp://acme.example/file\n" +
		"\n" +
		"https://acme.example/faq,extra column\n"
	urls, err := ReadURLList(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://acme.example/products/shoe",
		"https://acme.example/faq",
	}, urls)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, 200, parseStatus("200"))
	assert.Equal(t, 301, parseStatus("301 Moved Permanently"))
	assert.Zero(t, parseStatus("OK"))
	assert.Zero(t, parseStatus(""))
}
