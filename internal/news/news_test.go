package news

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/newswire/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryOptionNames(t *testing.T) {
	cases := map[string]Query{
		"keyword":          Headlines(protocol.FilterKeyword, "football"),
		"category":         Headlines(protocol.FilterCategory, "sports"),
		"country":          Headlines(protocol.FilterCountry, "sa"),
		"all_headlines":    Headlines(protocol.FilterAll, ""),
		"sources_category": Sources(protocol.FilterCategory, "health"),
		"sources_country":  Sources(protocol.FilterCountry, "ae"),
		"sources_language": Sources(protocol.FilterLanguage, "ar"),
		"all_sources":      Sources(protocol.FilterAll, ""),
	}
	for want, q := range cases {
		assert.Equal(t, want, q.Option(), q.String())
		assert.NoError(t, q.Validate(), q.String())
	}
}

func TestQueryValidateRejectsMismatchedFilters(t *testing.T) {
	bad := []Query{
		Sources(protocol.FilterKeyword, "x"),
		Headlines(protocol.FilterLanguage, "en"),
		Headlines(protocol.FilterCategory, "politics"),
		{Target: "weather", Filter: protocol.FilterAll},
	}
	for _, q := range bad {
		err := q.Validate()
		require.Error(t, err, q.String())
		assert.True(t, errors.Is(err, protocol.ErrInvalidFilter), q.String())
	}
}

func TestErrorPayloadHasStatus(t *testing.T) {
	raw := ErrorPayload(`boom "quoted"`)
	status, err := PayloadStatus(raw)
	require.NoError(t, err)
	assert.Equal(t, StatusError, status)

	res, err := DecodeResult(raw)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, `boom "quoted"`, res.Message)
}

func TestPayloadStatusMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"articles":[]}`, `[1,2]`} {
		_, err := PayloadStatus([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedPayload, raw)
	}
}

func TestDecodeResultArticles(t *testing.T) {
	raw := []byte(`{"status":"ok","totalResults":1,"articles":[{"source":{"id":null,"name":"BBC"},"author":"A","title":"T","publishedAt":"2025-11-03T14:05:09Z"}]}`)
	res, err := DecodeResult(raw)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "BBC", res.Articles[0].Source.Name)

	ts, ok := res.Articles[0].Published()
	require.True(t, ok)
	assert.Equal(t, "2025-11-03", ts.Format("2006-01-02"))
	assert.Equal(t, "14:05:09", ts.Format("15:04:05"))

	_, ok = Article{PublishedAt: "yesterday"}.Published()
	assert.False(t, ok)
}

func TestFetcherFunc(t *testing.T) {
	var seen Query
	f := FetcherFunc(func(_ context.Context, q Query) (json.RawMessage, error) {
		seen = q
		return json.RawMessage(`{"status":"ok"}`), nil
	})
	out, err := f.Fetch(context.Background(), Sources(protocol.FilterLanguage, "en"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(out))
	assert.Equal(t, protocol.FilterLanguage, seen.Filter)
}
